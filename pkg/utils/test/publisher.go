package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/streamchat/pkg/eventstream"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.ExchangeConcludedEvent

	// Fail causes PublishExchange to return an error.
	Fail bool
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishExchange(_ context.Context, event *eventstream.ExchangeConcludedEvent) error {
	if m.Fail {
		return errors.New("mock publish failure")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns the published events in order.
func (m *MockPublisher) Events() []*eventstream.ExchangeConcludedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.ExchangeConcludedEvent(nil), m.events...)
}

func (m *MockPublisher) Close() error {
	return nil
}
