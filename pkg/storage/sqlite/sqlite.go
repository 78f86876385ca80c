// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/streamchat/pkg/chat"
	"github.com/papercomputeco/streamchat/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	prompt      TEXT NOT NULL,
	reply       TEXT NOT NULL,
	disposition TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	ended_at    INTEGER NOT NULL,
	frames      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id, started_at);
`

const exchangeColumns = `id, session_id, prompt, reply, disposition, error, started_at, ended_at, frames`

// Driver implements storage.Driver on a SQLite database.
type Driver struct {
	db *sql.DB
}

var _ storage.Driver = (*Driver)(nil)

// NewDriver opens (and migrates) the SQLite database at dbPath.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to ":memory:" is a separate database.
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// Put stores an exchange. Inserts are idempotent by exchange ID.
func (d *Driver) Put(ctx context.Context, ex *storage.Exchange) (bool, error) {
	if ex == nil {
		return false, storage.ErrNilExchange
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO exchanges (`+exchangeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ID, ex.SessionID, ex.Prompt, ex.Reply, string(ex.Disposition), ex.Error,
		ex.StartedAt.UnixNano(), ex.EndedAt.UnixNano(), ex.Frames,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert exchange: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return n == 1, nil
}

// Get retrieves an exchange by ID.
func (d *Driver) Get(ctx context.Context, id string) (*storage.Exchange, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+exchangeColumns+` FROM exchanges WHERE id = ?`, id)

	ex, err := scanExchange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return ex, nil
}

// List returns exchanges oldest first, optionally scoped to one session.
func (d *Driver) List(ctx context.Context, sessionID string) ([]*storage.Exchange, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchanges`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY started_at, rowid`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer rows.Close()

	var out []*storage.Exchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// Sessions summarizes every session, most recently active first.
func (d *Driver) Sessions(ctx context.Context) ([]storage.SessionSummary, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT session_id, COUNT(*), MAX(ended_at)
		FROM exchanges
		GROUP BY session_id
		ORDER BY MAX(ended_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []storage.SessionSummary
	for rows.Next() {
		var (
			s    storage.SessionSummary
			last int64
		)
		if err := rows.Scan(&s.SessionID, &s.Exchanges, &last); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.LastActive = time.Unix(0, last)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExchange(row scanner) (*storage.Exchange, error) {
	var (
		ex                 storage.Exchange
		disposition        string
		startedAt, endedAt int64
	)

	err := row.Scan(&ex.ID, &ex.SessionID, &ex.Prompt, &ex.Reply, &disposition, &ex.Error,
		&startedAt, &endedAt, &ex.Frames)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan exchange: %w", err)
	}

	ex.Disposition = chat.Disposition(disposition)
	ex.StartedAt = time.Unix(0, startedAt)
	ex.EndedAt = time.Unix(0, endedAt)
	return &ex, nil
}
