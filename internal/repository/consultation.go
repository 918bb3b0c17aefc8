package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lawgate/consult-server-go/internal/database"
	"github.com/lawgate/consult-server-go/internal/model"
)

var ErrInvalidRecord = errors.New("invalid consultation record")

// ConsultationRepository is the payment ledger. Every method goes through
// the store's retry wrapper.
type ConsultationRepository interface {
	RecordPurchase(ctx context.Context, params model.RecordPurchaseParams) error
	LatestFor(ctx context.Context, clientID int64) (*model.ConsultationRecord, error)
	HasSecret(ctx context.Context, clientID int64, secret string) (bool, error)
	FindBySecret(ctx context.Context, clientID int64, secret string) (*model.ConsultationRecord, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (*model.ConsultationRecord, error)
	EmailForPayment(ctx context.Context, paymentRef string) (*string, error)
	AdvanceStatus(ctx context.Context, paymentRef string, status model.PaymentStatus) (bool, error)
	ListPending(ctx context.Context, olderThan time.Duration, limit int) ([]model.ConsultationRecord, error)
	Stats(ctx context.Context, clientID int64) (*model.ClientStats, error)
}

type consultationRepo struct {
	db Runner
}

func NewConsultationRepository(db Runner) ConsultationRepository {
	return &consultationRepo{db: db}
}

const selectRecord = `
	SELECT c.id, c.client_id, c.kind, c.amount, c.payment_ref, c.status,
		c.secret, c.contact_email, c.created_at, c.updated_at,
		cl.username, cl.first_name, cl.last_name, cl.phone
	FROM consultations c
	LEFT JOIN clients cl ON cl.client_id = c.client_id
`

func (r *consultationRepo) RecordPurchase(ctx context.Context, params model.RecordPurchaseParams) error {
	if !params.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, params.Kind)
	}
	if params.Status != model.PaymentStatusPending && params.Status != model.PaymentStatusSucceeded {
		return fmt.Errorf("%w: initial status %q", ErrInvalidRecord, params.Status)
	}
	if params.PaymentRef == "" {
		return fmt.Errorf("%w: empty payment ref", ErrInvalidRecord)
	}
	amount := params.Amount
	if amount.IsZero() {
		amount = params.Kind.Price()
	}

	return r.db.RunWithRetry(ctx, func(ctx context.Context, q database.DBTX) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO consultations (client_id, kind, amount, payment_ref, status, secret, contact_email)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, params.ClientID, params.Kind, amount, params.PaymentRef, params.Status, params.Secret, params.ContactEmail)
		return err
	})
}

func (r *consultationRepo) LatestFor(ctx context.Context, clientID int64) (*model.ConsultationRecord, error) {
	return r.getOne(ctx, selectRecord+`
		WHERE c.client_id = $1
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT 1
	`, clientID)
}

// HasSecret is true only for a succeeded record of this client carrying secret.
func (r *consultationRepo) HasSecret(ctx context.Context, clientID int64, secret string) (bool, error) {
	if secret == "" {
		return false, nil
	}
	var ok bool
	err := r.db.RunWithRetry(ctx, func(ctx context.Context, q database.DBTX) error {
		return q.GetContext(ctx, &ok, `
			SELECT EXISTS (
				SELECT 1 FROM consultations
				WHERE client_id = $1 AND secret = $2 AND status = 'succeeded'
			)
		`, clientID, secret)
	})
	return ok, err
}

func (r *consultationRepo) FindBySecret(ctx context.Context, clientID int64, secret string) (*model.ConsultationRecord, error) {
	if secret == "" {
		return nil, nil
	}
	return r.getOne(ctx, selectRecord+`
		WHERE c.client_id = $1 AND c.secret = $2 AND c.status = 'succeeded'
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT 1
	`, clientID, secret)
}

func (r *consultationRepo) FindByPaymentRef(ctx context.Context, paymentRef string) (*model.ConsultationRecord, error) {
	return r.getOne(ctx, selectRecord+`WHERE c.payment_ref = $1`, paymentRef)
}

func (r *consultationRepo) EmailForPayment(ctx context.Context, paymentRef string) (*string, error) {
	var email *string
	err := r.db.RunWithRetry(ctx, func(ctx context.Context, q database.DBTX) error {
		var row struct {
			ContactEmail *string `db:"contact_email"`
		}
		err := q.GetContext(ctx, &row, `
			SELECT contact_email FROM consultations WHERE payment_ref = $1
		`, paymentRef)
		found, err := HandleNotFound(&row, err)
		if found != nil {
			email = found.ContactEmail
		}
		return err
	})
	return email, err
}

// AdvanceStatus moves a pending record to a terminal status. It reports
// false when the record is unknown or already terminal.
func (r *consultationRepo) AdvanceStatus(ctx context.Context, paymentRef string, status model.PaymentStatus) (bool, error) {
	if !model.PaymentStatusPending.CanAdvanceTo(status) {
		return false, fmt.Errorf("%w: cannot advance to %q", ErrInvalidRecord, status)
	}
	var advanced bool
	err := r.db.RunWithRetry(ctx, func(ctx context.Context, q database.DBTX) error {
		result, err := q.ExecContext(ctx, `
			UPDATE consultations SET status = $2, updated_at = NOW()
			WHERE payment_ref = $1 AND status = 'pending'
		`, paymentRef, status)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		advanced = n > 0
		return nil
	})
	return advanced, err
}

// ListPending returns pending records created at least olderThan ago, oldest first.
func (r *consultationRepo) ListPending(ctx context.Context, olderThan time.Duration, limit int) ([]model.ConsultationRecord, error) {
	var records []model.ConsultationRecord
	err := r.db.RunWithRetry(ctx, func(ctx context.Context, q database.DBTX) error {
		records = nil
		return q.SelectContext(ctx, &records, selectRecord+`
			WHERE c.status = 'pending' AND c.created_at <= NOW() - ($1 * INTERVAL '1 second')
			ORDER BY c.created_at ASC, c.id ASC
			LIMIT $2
		`, olderThan.Seconds(), limit)
	})
	return records, err
}

func (r *consultationRepo) Stats(ctx context.Context, clientID int64) (*model.ClientStats, error) {
	var stats model.ClientStats
	err := r.db.RunWithRetry(ctx, func(ctx context.Context, q database.DBTX) error {
		return q.GetContext(ctx, &stats, `
			SELECT COUNT(*) AS total_consultations,
				COALESCE(SUM(amount), 0) AS total_amount
			FROM consultations
			WHERE client_id = $1
		`, clientID)
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *consultationRepo) getOne(ctx context.Context, query string, args ...interface{}) (*model.ConsultationRecord, error) {
	var found *model.ConsultationRecord
	err := r.db.RunWithRetry(ctx, func(ctx context.Context, q database.DBTX) error {
		var rec model.ConsultationRecord
		err := q.GetContext(ctx, &rec, query, args...)
		found, err = HandleNotFound(&rec, err)
		return err
	})
	return found, err
}
