package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/lawgate/consult-server-go/internal/config"
	"github.com/lawgate/consult-server-go/internal/metrics"
)

// ErrUnavailable is returned when no live connection can be obtained or
// connectivity errors outlast the retry budget.
var ErrUnavailable = errors.New("database unavailable")

// DBTX is an interface that both *sqlx.DB and *sqlx.Tx satisfy.
// Operations run by the Store receive it instead of the raw handle.
type DBTX interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Handle is a connection owned by the Store.
type Handle interface {
	DBTX
	PingContext(ctx context.Context) error
	Close() error
}

var _ DBTX = (*sqlx.DB)(nil)
var _ DBTX = (*sqlx.Tx)(nil)
var _ Handle = (*sqlx.DB)(nil)

// Opener dials a fresh handle.
type Opener func(ctx context.Context) (Handle, error)

// Operation is a unit of work executed under the Store's retry policy.
type Operation func(ctx context.Context, q DBTX) error

type Options struct {
	MaxRetries  int
	RetryDelay  time.Duration
	PingTimeout time.Duration

	// EnsureSchema applies the schema before the first operation that finds
	// it not yet applied, e.g. when the database was down at startup.
	EnsureSchema bool
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:   config.DBMaxRetries,
		RetryDelay:   config.DBRetryDelay,
		PingTimeout:  config.DBPingTimeout,
		EnsureSchema: true,
	}
}

// Store owns exactly one database handle. Every call that touches the
// handle holds guard, so operations from concurrent goroutines are queued
// rather than interleaved on the same connection.
type Store struct {
	open   Opener
	opts   Options
	guard  *semaphore.Weighted
	handle Handle

	// migrated is set once the schema has been applied on some handle.
	migrated bool
}

func NewStore(open Opener, opts Options) *Store {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = config.DBMaxRetries
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = config.DBPingTimeout
	}
	return &Store{
		open:  open,
		opts:  opts,
		guard: semaphore.NewWeighted(1),
	}
}

// Connect dials a new handle, replacing any existing one.
func (s *Store) Connect(ctx context.Context) error {
	if err := s.guard.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.guard.Release(1)

	return s.connect(ctx)
}

func (s *Store) connect(ctx context.Context) error {
	s.teardown()

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		handle, err := s.open(ctx)
		if err == nil {
			s.handle = handle
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("database connection established")
			}
			return nil
		}

		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("maxRetries", s.opts.MaxRetries).
			Msg("database connect attempt failed")

		if attempt < s.opts.MaxRetries {
			if err := sleepContext(ctx, s.opts.RetryDelay); err != nil {
				return err
			}
		}
	}

	log.Error().Err(lastErr).Int("attempts", s.opts.MaxRetries).Msg("database connection failed")
	return fmt.Errorf("connect after %d attempts: %w", s.opts.MaxRetries, lastErr)
}

// EnsureConnection repairs the handle if it is missing or no longer answers
// a ping. It reports whether a live handle is available afterwards.
func (s *Store) EnsureConnection(ctx context.Context) bool {
	if err := s.guard.Acquire(ctx, 1); err != nil {
		return false
	}
	defer s.guard.Release(1)

	return s.ensureConnection(ctx)
}

func (s *Store) ensureConnection(ctx context.Context) bool {
	if s.handle != nil {
		pingCtx, cancel := context.WithTimeout(ctx, s.opts.PingTimeout)
		err := s.handle.PingContext(pingCtx)
		cancel()
		if err == nil {
			return true
		}
		log.Warn().Err(err).Msg("database ping failed, reconnecting")
	} else {
		log.Info().Msg("restoring database connection")
	}

	return s.connect(ctx) == nil
}

// RunWithRetry is the only sanctioned way to use the handle. Connectivity
// errors tear the handle down and retry up to MaxRetries attempts in total;
// any other error is returned as is.
func (s *Store) RunWithRetry(ctx context.Context, op Operation) error {
	return s.runWithRetry(ctx, op, s.opts.EnsureSchema)
}

func (s *Store) runWithRetry(ctx context.Context, op Operation, ensureSchema bool) error {
	if err := s.guard.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.guard.Release(1)

	if ensureSchema && !s.migrated {
		op = s.withSchema(op)
	}

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		if !s.ensureConnection(ctx) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return ErrUnavailable
		}

		err := op(ctx, s.handle)
		if err == nil {
			return nil
		}
		if !IsConnectivityError(err) {
			return err
		}

		lastErr = err
		metrics.StoreRetries.Inc()
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("maxRetries", s.opts.MaxRetries).
			Msg("database operation hit a connection error")

		s.teardown()
		if attempt < s.opts.MaxRetries {
			if err := sleepContext(ctx, s.opts.RetryDelay); err != nil {
				return err
			}
		}
	}

	log.Error().Err(lastErr).Int("attempts", s.opts.MaxRetries).Msg("database operation failed")
	return fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, s.opts.MaxRetries, lastErr)
}

// Close releases the handle. The Store may be reconnected afterwards.
func (s *Store) Close() error {
	if err := s.guard.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer s.guard.Release(1)

	if s.handle == nil {
		return nil
	}
	err := s.handle.Close()
	s.handle = nil
	return err
}

func (s *Store) teardown() {
	if s.handle == nil {
		return
	}
	if err := s.handle.Close(); err != nil {
		log.Debug().Err(err).Msg("closing broken database handle")
	}
	s.handle = nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
