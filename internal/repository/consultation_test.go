package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawgate/consult-server-go/internal/database"
	"github.com/lawgate/consult-server-go/internal/model"
)

const testSecret = "ЮРИСТ2024"

func recordPurchase(t *testing.T, repo ConsultationRepository, clientID int64, ref string, status model.PaymentStatus) {
	t.Helper()
	err := repo.RecordPurchase(context.Background(), model.RecordPurchaseParams{
		ClientID:   clientID,
		Kind:       model.ConsultationKindOral,
		Amount:     model.ConsultationKindOral.Price(),
		PaymentRef: ref,
		Status:     status,
		Secret:     testSecret,
	})
	require.NoError(t, err)
}

func TestConsultationRepository_HasSecret(t *testing.T) {
	store := setupTestStore(t)
	repo := NewConsultationRepository(store)
	ctx := context.Background()

	recordPurchase(t, repo, 12345678, "pay-pending", model.PaymentStatusPending)

	t.Run("pending record with correct secret is not authorized", func(t *testing.T) {
		ok, err := repo.HasSecret(ctx, 12345678, testSecret)
		require.NoError(t, err)
		assert.False(t, ok)

		rec, err := repo.FindBySecret(ctx, 12345678, testSecret)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("succeeded record authorizes", func(t *testing.T) {
		advanced, err := repo.AdvanceStatus(ctx, "pay-pending", model.PaymentStatusSucceeded)
		require.NoError(t, err)
		assert.True(t, advanced)

		ok, err := repo.HasSecret(ctx, 12345678, testSecret)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("wrong secret or identity is rejected", func(t *testing.T) {
		ok, err := repo.HasSecret(ctx, 12345678, "WRONG")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.HasSecret(ctx, 87654321, testSecret)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.HasSecret(ctx, 12345678, "")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestConsultationRepository_LatestFor(t *testing.T) {
	store := setupTestStore(t)
	repo := NewConsultationRepository(store)
	clients := NewClientRepository(store)
	ctx := context.Background()

	require.NoError(t, clients.Upsert(ctx, model.UpsertClientParams{
		ClientID:  12345678,
		Username:  strPtr("ivanp"),
		FirstName: strPtr("Иван"),
	}))

	recordPurchase(t, repo, 12345678, "pay-old", model.PaymentStatusSucceeded)
	time.Sleep(10 * time.Millisecond)
	recordPurchase(t, repo, 12345678, "pay-new", model.PaymentStatusPending)

	latest, err := repo.LatestFor(ctx, 12345678)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "pay-new", latest.PaymentRef)
	assert.Equal(t, model.PaymentStatusPending, latest.Status)
	assert.Equal(t, "@ivanp", latest.Handle())

	t.Run("later created_at wins over later insertion", func(t *testing.T) {
		recordPurchase(t, repo, 23456789, "pay-recent", model.PaymentStatusSucceeded)
		recordPurchase(t, repo, 23456789, "pay-backdated", model.PaymentStatusPending)
		require.NoError(t, store.RunWithRetry(ctx, func(ctx context.Context, q database.DBTX) error {
			_, err := q.ExecContext(ctx,
				`UPDATE consultations SET created_at = NOW() - INTERVAL '1 hour' WHERE payment_ref = $1`,
				"pay-backdated")
			return err
		}))

		rec, err := repo.LatestFor(ctx, 23456789)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "pay-recent", rec.PaymentRef)
	})

	t.Run("unknown client has no record", func(t *testing.T) {
		rec, err := repo.LatestFor(ctx, 11111111)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("record without client row still resolves", func(t *testing.T) {
		recordPurchase(t, repo, 99999999, "pay-orphan", model.PaymentStatusPending)
		rec, err := repo.LatestFor(ctx, 99999999)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "Не указано", rec.DisplayName())
	})
}

func TestConsultationRepository_AdvanceStatus(t *testing.T) {
	store := setupTestStore(t)
	repo := NewConsultationRepository(store)
	ctx := context.Background()

	recordPurchase(t, repo, 12345678, "pay-1", model.PaymentStatusPending)

	advanced, err := repo.AdvanceStatus(ctx, "pay-1", model.PaymentStatusFailed)
	require.NoError(t, err)
	assert.True(t, advanced)

	t.Run("terminal status never moves", func(t *testing.T) {
		advanced, err := repo.AdvanceStatus(ctx, "pay-1", model.PaymentStatusSucceeded)
		require.NoError(t, err)
		assert.False(t, advanced)

		rec, err := repo.FindByPaymentRef(ctx, "pay-1")
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusFailed, rec.Status)
	})

	t.Run("back to pending is refused", func(t *testing.T) {
		_, err := repo.AdvanceStatus(ctx, "pay-1", model.PaymentStatusPending)
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("unknown ref", func(t *testing.T) {
		advanced, err := repo.AdvanceStatus(ctx, "missing", model.PaymentStatusSucceeded)
		require.NoError(t, err)
		assert.False(t, advanced)
	})
}

func TestConsultationRepository_RecordPurchase(t *testing.T) {
	store := setupTestStore(t)
	repo := NewConsultationRepository(store)
	ctx := context.Background()

	t.Run("amount defaults to the tier price", func(t *testing.T) {
		require.NoError(t, repo.RecordPurchase(ctx, model.RecordPurchaseParams{
			ClientID:     12345678,
			Kind:         model.ConsultationKindFull,
			PaymentRef:   "pay-full",
			Status:       model.PaymentStatusPending,
			Secret:       testSecret,
			ContactEmail: strPtr("client@example.com"),
		}))

		rec, err := repo.FindByPaymentRef(ctx, "pay-full")
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("13650").Equal(rec.Amount))

		email, err := repo.EmailForPayment(ctx, "pay-full")
		require.NoError(t, err)
		require.NotNil(t, email)
		assert.Equal(t, "client@example.com", *email)
	})

	t.Run("duplicate payment ref is an integrity error", func(t *testing.T) {
		err := repo.RecordPurchase(ctx, model.RecordPurchaseParams{
			ClientID:   12345678,
			Kind:       model.ConsultationKindOral,
			PaymentRef: "pay-full",
			Status:     model.PaymentStatusPending,
		})
		require.Error(t, err)
		assert.NotErrorIs(t, err, database.ErrUnavailable)
	})

	t.Run("invalid params never reach the database", func(t *testing.T) {
		err := repo.RecordPurchase(ctx, model.RecordPurchaseParams{
			ClientID: 1, Kind: "premium", PaymentRef: "x", Status: model.PaymentStatusPending,
		})
		assert.ErrorIs(t, err, ErrInvalidRecord)

		err = repo.RecordPurchase(ctx, model.RecordPurchaseParams{
			ClientID: 1, Kind: model.ConsultationKindOral, PaymentRef: "x", Status: model.PaymentStatusFailed,
		})
		assert.ErrorIs(t, err, ErrInvalidRecord)
	})

	t.Run("no email recorded", func(t *testing.T) {
		recordPurchase(t, repo, 12345678, "pay-no-email", model.PaymentStatusPending)
		email, err := repo.EmailForPayment(ctx, "pay-no-email")
		require.NoError(t, err)
		assert.Nil(t, email)

		email, err = repo.EmailForPayment(ctx, "unknown")
		require.NoError(t, err)
		assert.Nil(t, email)
	})
}

func TestConsultationRepository_ListPendingAndStats(t *testing.T) {
	store := setupTestStore(t)
	repo := NewConsultationRepository(store)
	ctx := context.Background()

	recordPurchase(t, repo, 12345678, "pay-a", model.PaymentStatusPending)
	recordPurchase(t, repo, 12345678, "pay-b", model.PaymentStatusSucceeded)
	recordPurchase(t, repo, 12345678, "pay-c", model.PaymentStatusPending)

	pending, err := repo.ListPending(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "pay-a", pending[0].PaymentRef)
	assert.Equal(t, "pay-c", pending[1].PaymentRef)

	none, err := repo.ListPending(ctx, time.Hour, 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	stats, err := repo.Stats(ctx, 12345678)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalConsultations)
	assert.True(t, decimal.RequireFromString("9450").Equal(stats.TotalAmount))

	empty, err := repo.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalConsultations)
	assert.True(t, empty.TotalAmount.IsZero())
}

func TestStore_MigrateTwice(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))
}
