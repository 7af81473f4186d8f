// Package session implements the reservations engine's two logical
// sessions — a serializable write session and a read-only session — and
// the guard between them (spec §4.2, §5, §9). No in-process locks are held
// across I/O: correctness under concurrency comes from the database's
// serializable isolation, and from the bounded retry loop around it.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/cohub/reservations/internal/metrics"
	"github.com/cohub/reservations/reserveerr"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// RetryPolicy bounds the serializable write transaction's retry loop.
// Defaults follow spec §4.2/§9: "a handful" of attempts, exponential
// backoff "capped low (a few tens of ms)". The shape echoes
// sapcc/go-bits/retry's ExponentialBackoff (factor-based growth capped at a
// MaxInterval), adapted to retry a bounded number of times instead of
// forever, and only on a serialization failure rather than unconditionally.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is used when a Sessions is built without an explicit
// policy.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 5,
	BaseDelay:   10 * time.Millisecond,
	MaxDelay:    80 * time.Millisecond,
}

// Sessions binds the write and read sessions to one connection pool.
type Sessions struct {
	db      *gorm.DB
	readDB  *gorm.DB
	guard   *Guard
	retry   RetryPolicy
	metrics *metrics.Session
	now     func() time.Time
}

// Option customizes a Sessions at construction time.
type Option func(*Sessions)

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Sessions) { s.retry = p }
}

// WithRegisterer plugs the session's retry/rollback counters into reg
// instead of the default registerer — tests should pass
// prometheus.NewRegistry() to avoid collector name collisions across
// parallel test packages.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Sessions) { s.metrics = metrics.NewSession(reg) }
}

// New builds a Sessions over db, with its own read-only clone and guard.
func New(db *gorm.DB, opts ...Option) (*Sessions, error) {
	ro, err := newReadOnlyDB(db)
	if err != nil {
		return nil, fmt.Errorf("session: building read-only session: %w", err)
	}

	s := &Sessions{
		db:     db,
		readDB: ro,
		guard:  NewGuard(),
		retry:  DefaultRetryPolicy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewSession(prometheus.DefaultRegisterer)
	}
	return s, nil
}

// WriteTx runs fn inside exactly one serializable transaction. spec §5:
// "Every mutating scheduler call is wrapped in exactly one serializable
// transaction." On a serialization failure the whole transaction — and fn —
// is retried with a freshly opened transaction (fn must not depend on
// state from a previous failed attempt beyond what it reads through tx
// itself). Non-serialization errors propagate immediately, unretried.
func (s *Sessions) WriteTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	started := s.now()
	defer func() {
		s.metrics.TxDuration.Observe(s.now().Sub(started).Seconds())
	}()

	delay := s.retry.BaseDelay
	var lastErr error

	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		s.guard.MarkDirty()
		err := s.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
		s.guard.Clear()

		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}

		lastErr = err
		if attempt == s.retry.MaxAttempts-1 {
			break
		}
		s.metrics.TxRetries.Inc()
		slog.Warn("reservations: retrying serializable write transaction", "attempt", attempt+1, "error", err)

		sleep(ctx, jitter(delay))
		delay *= 2
		if delay > s.retry.MaxDelay {
			delay = s.retry.MaxDelay
		}
	}

	s.metrics.TxRollbacks.Inc()
	return fmt.Errorf("%w: %v", reserveerr.ErrTransactionRollback, lastErr)
}

// ReadTx runs fn against the read-only session. It refuses to run at all
// while the write session has uncommitted work (ErrDirtyReadOnlySession),
// and any write fn attempts through tx fails with
// ErrModifiedReadOnlySession without touching the database.
func (s *Sessions) ReadTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.guard.IsDirty() {
		return reserveerr.ErrDirtyReadOnlySession
	}
	return s.readDB.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
}

// sleep waits for d, honoring ctx cancellation.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// jitter adds up to 20% random jitter to d, so concurrent retriers don't
// lock-step.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(int64(d)/5+1))
}

// sqlStater is implemented by pgx/v5's pgconn.PgError (and by lib/pq's
// pq.Error), exposing the Postgres SQLSTATE code without this package
// importing either driver directly.
type sqlStater interface {
	SQLState() string
}

// isSerializationFailure reports whether err is a Postgres serialization
// failure (40001) or deadlock (40P01) — the two SQLSTATEs a serializable
// transaction can legitimately lose to a concurrent writer on, and the only
// ones the write-transaction retry loop should retry.
func isSerializationFailure(err error) bool {
	var sse sqlStater
	if errors.As(err, &sse) {
		switch sse.SQLState() {
		case "40001", "40P01":
			return true
		}
	}
	return false
}
