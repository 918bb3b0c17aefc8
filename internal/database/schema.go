package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// schema only creates or adds. Every statement is safe to repeat.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS clients (
		client_id BIGINT PRIMARY KEY,
		username VARCHAR(255),
		first_name VARCHAR(255),
		last_name VARCHAR(255),
		phone VARCHAR(32),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS consultations (
		id BIGSERIAL PRIMARY KEY,
		client_id BIGINT NOT NULL,
		kind VARCHAR(32) NOT NULL,
		amount NUMERIC(10,2) NOT NULL,
		payment_ref VARCHAR(255) NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE consultations ADD COLUMN IF NOT EXISTS secret VARCHAR(64) NOT NULL DEFAULT ''`,
	`ALTER TABLE consultations ADD COLUMN IF NOT EXISTS contact_email VARCHAR(255)`,
	`ALTER TABLE consultations ADD COLUMN IF NOT EXISTS updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()`,
	`CREATE UNIQUE INDEX IF NOT EXISTS consultations_payment_ref_key ON consultations (payment_ref)`,
	`CREATE INDEX IF NOT EXISTS consultations_client_recent_idx ON consultations (client_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS consultations_pending_idx ON consultations (created_at) WHERE status = 'pending'`,
}

// Migrate applies the schema through the retry wrapper.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.runWithRetry(ctx, func(ctx context.Context, q DBTX) error {
		if err := applySchema(ctx, q); err != nil {
			return err
		}
		s.migrated = true
		return nil
	}, false)
	if err != nil {
		return err
	}
	log.Info().Int("statements", len(schema)).Msg("database schema verified")
	return nil
}

// withSchema runs the schema ahead of op until it has succeeded once.
// Callers hold the guard.
func (s *Store) withSchema(op Operation) Operation {
	return func(ctx context.Context, q DBTX) error {
		if !s.migrated {
			if err := applySchema(ctx, q); err != nil {
				return err
			}
			s.migrated = true
			log.Info().Int("statements", len(schema)).Msg("database schema applied after reconnect")
		}
		return op(ctx, q)
	}
}

func applySchema(ctx context.Context, q DBTX) error {
	for i, stmt := range schema {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
