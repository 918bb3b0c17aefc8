package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestConsultationKind(t *testing.T) {
	t.Run("tiers have fixed prices", func(t *testing.T) {
		assert.True(t, decimal.RequireFromString("3150").Equal(ConsultationKindOral.Price()))
		assert.True(t, decimal.RequireFromString("13650").Equal(ConsultationKindFull.Price()))
	})

	t.Run("unknown kind is invalid", func(t *testing.T) {
		assert.True(t, ConsultationKindOral.Valid())
		assert.True(t, ConsultationKindFull.Valid())
		assert.False(t, ConsultationKind("premium").Valid())
		assert.True(t, ConsultationKind("premium").Price().IsZero())
	})
}

func TestClassifyProviderStatus(t *testing.T) {
	tests := []struct {
		raw      string
		expected PaymentState
		ledger   PaymentStatus
	}{
		{"succeeded", PaymentStateSucceeded, PaymentStatusSucceeded},
		{"pending", PaymentStatePending, PaymentStatusPending},
		{"waiting_for_capture", PaymentStatePending, PaymentStatusPending},
		{"canceled", PaymentStateFailed, PaymentStatusFailed},
		{"refunded", PaymentStateFailed, PaymentStatusFailed},
		{"", PaymentStateCreated, PaymentStatusPending},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			state := ClassifyProviderStatus(tc.raw)
			assert.Equal(t, tc.expected, state)
			assert.Equal(t, tc.ledger, state.LedgerStatus())
		})
	}
}

func TestPaymentStatusTransitions(t *testing.T) {
	assert.True(t, PaymentStatusPending.CanAdvanceTo(PaymentStatusSucceeded))
	assert.True(t, PaymentStatusPending.CanAdvanceTo(PaymentStatusFailed))
	assert.False(t, PaymentStatusPending.CanAdvanceTo(PaymentStatusPending))
	assert.False(t, PaymentStatusSucceeded.CanAdvanceTo(PaymentStatusPending))
	assert.False(t, PaymentStatusSucceeded.CanAdvanceTo(PaymentStatusFailed))
	assert.False(t, PaymentStatusFailed.CanAdvanceTo(PaymentStatusSucceeded))
}

func TestClientFields(t *testing.T) {
	first, last, user := "Иван", "Петров", "ivanp"

	t.Run("full name and handle", func(t *testing.T) {
		f := ClientFields{FirstName: &first, LastName: &last, Username: &user}
		assert.Equal(t, "Иван Петров", f.DisplayName())
		assert.Equal(t, "@ivanp", f.Handle())
	})

	t.Run("missing fields fall back to placeholders", func(t *testing.T) {
		f := ClientFields{}
		assert.Equal(t, "Не указано", f.DisplayName())
		assert.Equal(t, "Не указан", f.Handle())
	})
}
