package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lawgate/consult-server-go/internal/database"
)

// HandleNotFound converts sql.ErrNoRows into a nil result without error.
// A missing row is not an error condition for Find* style reads.
//
// Usage:
//
//	var rec model.ConsultationRecord
//	err := q.GetContext(ctx, &rec, query, args...)
//	found, err = HandleNotFound(&rec, err)
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Runner is the part of database.Store the repositories depend on.
type Runner interface {
	RunWithRetry(ctx context.Context, op database.Operation) error
}
