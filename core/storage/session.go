package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoSession is returned when a request context carries no session.
var ErrNoSession = errors.New("no persistence session in context")

// WriteObserver is notified once per committed write.
type WriteObserver func(table, op string)

// Session is a unit of work over one database transaction.
//
// Reads go to the database until the first write begins a transaction;
// from then on every statement runs inside it, so a session observes its
// own uncommitted changes. A Session is owned by a single request and is
// not safe for concurrent use.
type Session struct {
	db       *sql.DB
	tx       *sql.Tx
	pending  []write
	observer WriteObserver
}

type write struct {
	table string
	op    string
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithObserver registers a callback invoked for each write after a successful commit.
func WithObserver(fn WriteObserver) SessionOption {
	return func(s *Session) {
		s.observer = fn
	}
}

// NewSession creates a session on db.
func NewSession(db *sql.DB, opts ...SessionOption) *Session {
	s := &Session{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Querier returns the transaction when one is open, the database otherwise.
func (s *Session) Querier() Querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// InTransaction reports whether the session holds uncommitted writes.
func (s *Session) InTransaction() bool {
	return s.tx != nil
}

// Exec runs a write statement inside the session transaction, beginning it if needed.
// table and op describe the write for observers.
func (s *Session) Exec(ctx context.Context, table, op, query string, args ...any) (sql.Result, error) {
	if s.tx == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin transaction: %w", err)
		}
		s.tx = tx
	}

	res, err := s.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	s.pending = append(s.pending, write{table: table, op: op})
	return res, nil
}

// Commit commits pending writes. Committing a session without writes is a no-op.
func (s *Session) Commit() error {
	if s.tx == nil {
		return nil
	}

	tx := s.tx
	pending := s.pending
	s.tx = nil
	s.pending = nil

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if s.observer != nil {
		for _, w := range pending {
			s.observer(w.table, w.op)
		}
	}
	return nil
}

// Rollback discards pending writes.
func (s *Session) Rollback() error {
	if s.tx == nil {
		return nil
	}

	tx := s.tx
	s.tx = nil
	s.pending = nil

	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Close releases the session, discarding anything not committed.
func (s *Session) Close() error {
	return s.Rollback()
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFrom returns the session stored in ctx.
func SessionFrom(ctx context.Context) (*Session, error) {
	sess, ok := ctx.Value(sessionKey{}).(*Session)
	if !ok || sess == nil {
		return nil, ErrNoSession
	}
	return sess, nil
}
