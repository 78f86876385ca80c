// Package inmemory provides a map-backed storage driver.
package inmemory

import (
	"context"
	"slices"
	"sync"

	"github.com/papercomputeco/streamchat/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu guards exchanges and order
	mu sync.RWMutex

	// exchanges is keyed by exchange ID
	exchanges map[string]*storage.Exchange

	// order holds exchange IDs in insertion order
	order []string
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		exchanges: make(map[string]*storage.Exchange),
	}
}

var _ storage.Driver = (*Driver)(nil)

// Put stores a copy of ex. Returns false if the ID was already stored.
func (d *Driver) Put(_ context.Context, ex *storage.Exchange) (bool, error) {
	if ex == nil {
		return false, storage.ErrNilExchange
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.exchanges[ex.ID]; ok {
		return false, nil
	}

	cp := *ex
	d.exchanges[ex.ID] = &cp
	d.order = append(d.order, ex.ID)
	return true, nil
}

// Get retrieves an exchange by ID.
func (d *Driver) Get(_ context.Context, id string) (*storage.Exchange, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ex, ok := d.exchanges[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	cp := *ex
	return &cp, nil
}

// List returns the exchanges of sessionID, or all of them, oldest first.
func (d *Driver) List(_ context.Context, sessionID string) ([]*storage.Exchange, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*storage.Exchange
	for _, id := range d.order {
		ex := d.exchanges[id]
		if sessionID != "" && ex.SessionID != sessionID {
			continue
		}
		cp := *ex
		out = append(out, &cp)
	}

	slices.SortStableFunc(out, func(a, b *storage.Exchange) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return out, nil
}

// Sessions summarizes every session, most recently active first.
func (d *Driver) Sessions(_ context.Context) ([]storage.SessionSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	index := make(map[string]int)
	var out []storage.SessionSummary
	for _, id := range d.order {
		ex := d.exchanges[id]
		i, ok := index[ex.SessionID]
		if !ok {
			index[ex.SessionID] = len(out)
			out = append(out, storage.SessionSummary{SessionID: ex.SessionID})
			i = len(out) - 1
		}
		out[i].Exchanges++
		if ex.EndedAt.After(out[i].LastActive) {
			out[i].LastActive = ex.EndedAt
		}
	}

	slices.SortStableFunc(out, func(a, b storage.SessionSummary) int {
		return b.LastActive.Compare(a.LastActive)
	})
	return out, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
