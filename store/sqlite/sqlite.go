/*
Package sqlite provides a SQLite-backed implementation of bankroll.Store.

PURPOSE:
  Persists sessions, participants and buy-in requests as JSON documents,
  with the columns the engine filters on (status, names, ordering) kept
  alongside the document.

CONDITIONAL UPDATES:
  Update* runs inside a single SQL transaction:
    1. SELECT doc_json
    2. fn(copy)          -- fn's error rolls the transaction back
    3. UPDATE doc_json + mirrored columns
    4. COMMIT
  Combined with the store mutex this gives the per-document atomicity the
  engine relies on for its status guards.

KEY TABLES:
  sessions:     One row per session, bank totals inside doc_json
  participants: (session_id, token), join order is insertion order
  requests:     Buy-in requests, creation order is insertion order

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single open connection, which
  also keeps ":memory:" databases shared across calls.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/bankroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := bankroll.NewEngine(store, notifier)

MIGRATION:
  Schema is auto-migrated on New(). NewWithDB skips migration and is used
  with an externally managed *sql.DB (tests use go-sqlmock).

SEE ALSO:
  - bankroll/store.go: Interface definitions
  - bankroll/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/bankroll/bankroll"
)

// Store implements bankroll.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ bankroll.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewWithDB wraps an already-open database whose schema is managed elsewhere.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		doc_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_status
		ON sessions(status);

	CREATE TABLE IF NOT EXISTS participants (
		session_id TEXT NOT NULL REFERENCES sessions(id),
		token TEXT NOT NULL,
		name TEXT NOT NULL,
		checkout_status TEXT NOT NULL,
		doc_json TEXT NOT NULL,
		joined_at TEXT NOT NULL,
		PRIMARY KEY (session_id, token)
	);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		beneficiary TEXT NOT NULL,
		status TEXT NOT NULL,
		doc_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Pending-request sweeps at checkout and settle
	CREATE INDEX IF NOT EXISTS idx_requests_session_status
		ON requests(session_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DOCUMENT HELPERS
// =============================================================================

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// loadDoc reads one doc_json column into dst. Missing rows become a
// bankroll.NotFoundError.
func loadDoc(ctx context.Context, q queryer, kind, id string, dst any, query string, args ...any) error {
	var raw string
	err := q.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return &bankroll.NotFoundError{Kind: kind, ID: id}
	}
	if err != nil {
		return fmt.Errorf("failed to load %s %s: %w", kind, id, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}
	return nil
}

func listDocs[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []T{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var doc T
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		result = append(result, doc)
	}
	return result, rows.Err()
}

// update runs load -> fn -> save inside one SQL transaction.
func (s *Store) update(ctx context.Context, load func(*sql.Tx) error, apply func() error, save func(*sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := load(sqlTx); err != nil {
		return err
	}
	if err := apply(); err != nil {
		return err
	}
	if err := save(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	return string(b), nil
}

// =============================================================================
// SESSIONS
// =============================================================================

func (s *Store) CreateSession(ctx context.Context, sess bankroll.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := marshal(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, status, doc_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.Name, sess.Status, doc,
		sess.CreatedAt.Format(time.RFC3339Nano), sess.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("session %s already exists", sess.ID)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id bankroll.SessionID) (*bankroll.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sess bankroll.Session
	if err := loadDoc(ctx, s.db, "session", string(id), &sess,
		`SELECT doc_json FROM sessions WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions returns sessions in creation order.
func (s *Store) ListSessions(ctx context.Context) ([]bankroll.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listDocs[bankroll.Session](ctx, s.db, `SELECT doc_json FROM sessions ORDER BY rowid ASC`)
}

func (s *Store) UpdateSession(ctx context.Context, id bankroll.SessionID, fn func(*bankroll.Session) error) (*bankroll.Session, error) {
	var sess bankroll.Session
	err := s.update(ctx,
		func(tx *sql.Tx) error {
			return loadDoc(ctx, tx, "session", string(id), &sess, `SELECT doc_json FROM sessions WHERE id = ?`, id)
		},
		func() error { return fn(&sess) },
		func(tx *sql.Tx) error {
			doc, err := marshal(sess)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				UPDATE sessions SET name = ?, status = ?, doc_json = ?, updated_at = ? WHERE id = ?
			`, sess.Name, sess.Status, doc, sess.UpdatedAt.Format(time.RFC3339Nano), id)
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// =============================================================================
// PARTICIPANTS
// =============================================================================

func (s *Store) CreateParticipant(ctx context.Context, p bankroll.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO participants (session_id, token, name, checkout_status, doc_json, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.SessionID, p.Token, p.Name, p.Checkout, doc, p.JoinedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("participant %s already exists", p.Token)
		}
		if isForeignKeyError(err) {
			return &bankroll.NotFoundError{Kind: "session", ID: string(p.SessionID)}
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

func (s *Store) GetParticipant(ctx context.Context, sessionID bankroll.SessionID, token bankroll.Token) (*bankroll.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p bankroll.Participant
	if err := loadDoc(ctx, s.db, "participant", string(token), &p,
		`SELECT doc_json FROM participants WHERE session_id = ? AND token = ?`, sessionID, token); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListParticipants(ctx context.Context, sessionID bankroll.SessionID) ([]bankroll.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listDocs[bankroll.Participant](ctx, s.db,
		`SELECT doc_json FROM participants WHERE session_id = ? ORDER BY rowid ASC`, sessionID)
}

func (s *Store) UpdateParticipant(ctx context.Context, sessionID bankroll.SessionID, token bankroll.Token, fn func(*bankroll.Participant) error) (*bankroll.Participant, error) {
	var p bankroll.Participant
	err := s.update(ctx,
		func(tx *sql.Tx) error {
			return loadDoc(ctx, tx, "participant", string(token), &p,
				`SELECT doc_json FROM participants WHERE session_id = ? AND token = ?`, sessionID, token)
		},
		func() error { return fn(&p) },
		func(tx *sql.Tx) error {
			doc, err := marshal(p)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				UPDATE participants SET name = ?, checkout_status = ?, doc_json = ?
				WHERE session_id = ? AND token = ?
			`, p.Name, p.Checkout, doc, sessionID, token)
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *Store) CreateRequest(ctx context.Context, r bankroll.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO requests (id, session_id, beneficiary, status, doc_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.SessionID, r.Beneficiary, r.Status, doc, r.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("request %s already exists", r.ID)
		}
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id bankroll.RequestID) (*bankroll.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r bankroll.Request
	if err := loadDoc(ctx, s.db, "request", string(id), &r,
		`SELECT doc_json FROM requests WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListRequests(ctx context.Context, sessionID bankroll.SessionID) ([]bankroll.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listDocs[bankroll.Request](ctx, s.db,
		`SELECT doc_json FROM requests WHERE session_id = ? ORDER BY rowid ASC`, sessionID)
}

func (s *Store) UpdateRequest(ctx context.Context, id bankroll.RequestID, fn func(*bankroll.Request) error) (*bankroll.Request, error) {
	var r bankroll.Request
	err := s.update(ctx,
		func(tx *sql.Tx) error {
			return loadDoc(ctx, tx, "request", string(id), &r, `SELECT doc_json FROM requests WHERE id = ?`, id)
		},
		func() error { return fn(&r) },
		func(tx *sql.Tx) error {
			doc, err := marshal(r)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `UPDATE requests SET status = ?, doc_json = ? WHERE id = ?`, r.Status, doc, id)
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Helper functions

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
