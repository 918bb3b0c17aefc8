package repository

import (
	"context"

	"github.com/lawgate/consult-server-go/internal/database"
	"github.com/lawgate/consult-server-go/internal/model"
)

type ClientRepository interface {
	Upsert(ctx context.Context, params model.UpsertClientParams) error
	FindByID(ctx context.Context, clientID int64) (*model.Client, error)
}

type clientRepo struct {
	db Runner
}

func NewClientRepository(db Runner) ClientRepository {
	return &clientRepo{db: db}
}

// Upsert records the latest profile seen for a client. Name and handle
// fields are last-write-wins; a known phone is not erased by an empty one.
func (r *clientRepo) Upsert(ctx context.Context, params model.UpsertClientParams) error {
	return r.db.RunWithRetry(ctx, func(ctx context.Context, q database.DBTX) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO clients (client_id, username, first_name, last_name, phone)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (client_id) DO UPDATE SET
				username = EXCLUDED.username,
				first_name = EXCLUDED.first_name,
				last_name = EXCLUDED.last_name,
				phone = COALESCE(EXCLUDED.phone, clients.phone),
				updated_at = NOW()
		`, params.ClientID, params.Username, params.FirstName, params.LastName, params.Phone)
		return err
	})
}

func (r *clientRepo) FindByID(ctx context.Context, clientID int64) (*model.Client, error) {
	var found *model.Client
	err := r.db.RunWithRetry(ctx, func(ctx context.Context, q database.DBTX) error {
		var c model.Client
		err := q.GetContext(ctx, &c, `SELECT * FROM clients WHERE client_id = $1`, clientID)
		found, err = HandleNotFound(&c, err)
		return err
	})
	return found, err
}
