package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lawgate/consult-server-go/internal/audit"
	"github.com/lawgate/consult-server-go/internal/database"
	apperrors "github.com/lawgate/consult-server-go/internal/errors"
	"github.com/lawgate/consult-server-go/internal/model"
)

const testCodeWord = "ЮРИСТ2024"

func TestExtractCredentials(t *testing.T) {
	svc := NewAuthorizationService(nil, nil, testCodeWord)

	tests := []struct {
		name        string
		text        string
		clientID    int64
		hasIdentity bool
		hasSecret   bool
	}{
		{"both present", "12345678 ЮРИСТ2024", 12345678, true, true},
		{"lowercase secret", "мой id 12345678, код юрист2024", 12345678, true, true},
		{"secret first", "ЮРИСТ2024 and my id is 987654321", 987654321, true, true},
		{"first identity wins", "11111111 22222222 ЮРИСТ2024", 11111111, true, true},
		{"seven digits is not an identity", "1234567 ЮРИСТ2024", 0, false, true},
		{"no secret", "12345678 hello", 12345678, true, false},
		{"nothing", "добрый день", 0, false, false},
		{"secret embedded in a word", "xxЮРИСТ2024yy 12345678", 12345678, true, true},
		{"identity too long for int64", "99999999999999999999 ЮРИСТ2024", 0, false, true},
		{"overflowing run before a real identity", "ref 99999999999999999999 client 12345678 юрист2024", 12345678, true, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			creds := svc.ExtractCredentials(tc.text)
			assert.Equal(t, tc.hasIdentity, creds.HasIdentity)
			assert.Equal(t, tc.hasSecret, creds.HasSecret)
			assert.Equal(t, tc.clientID, creds.ClientID)
			if tc.hasSecret {
				assert.Equal(t, testCodeWord, creds.Secret)
			}
		})
	}

	t.Run("deterministic", func(t *testing.T) {
		text := "12345678 юрист2024 87654321 ЮРИСТ2024"
		first := svc.ExtractCredentials(text)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, svc.ExtractCredentials(text))
		}
	})
}

func TestParseCheckArgs(t *testing.T) {
	id, secret, err := ParseCheckArgs("12345678 юрист2024")
	require.NoError(t, err)
	assert.Equal(t, int64(12345678), id)
	assert.Equal(t, "юрист2024", secret)

	_, _, err = ParseCheckArgs("12345678")
	assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))

	_, _, err = ParseCheckArgs("abc ЮРИСТ2024")
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
}

func paidRecord() *model.ConsultationRecord {
	first, user := "Иван", "ivanp"
	return &model.ConsultationRecord{
		ID:         1,
		ClientID:   12345678,
		Kind:       model.ConsultationKindOral,
		Amount:     model.ConsultationKindOral.Price(),
		PaymentRef: "pay-1",
		Status:     model.PaymentStatusSucceeded,
		Secret:     testCodeWord,
		CreatedAt:  time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC),
		ClientFields: model.ClientFields{
			FirstName: &first,
			Username:  &user,
		},
	}
}

func TestAuthorizationService_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("paid client is verified with a receipt", func(t *testing.T) {
		ledger := new(mockLedger)
		contacts := new(mockContacts)
		svc := NewAuthorizationService(ledger, contacts, testCodeWord)

		rec := paidRecord()
		ledger.On("HasSecret", ctx, int64(12345678), testCodeWord).Return(true, nil)
		ledger.On("FindBySecret", ctx, int64(12345678), testCodeWord).Return(rec, nil)
		ledger.On("Stats", ctx, int64(12345678)).Return(&model.ClientStats{TotalConsultations: 1, TotalAmount: rec.Amount}, nil)
		contacts.On("Record", ctx, mock.MatchedBy(func(e ContactEntry) bool {
			return e.ClientID == 12345678 && e.Handle == "@ivanp"
		})).Return(nil)

		result, err := svc.Verify(ctx, 12345678, "юрист2024", ChannelCommand)
		require.NoError(t, err)
		assert.Equal(t, OutcomeVerified, result.Outcome)
		assert.Same(t, rec, result.Record)

		receipt := OperatorReceipt(result.ClientID, result.Record, result.Stats)
		assert.Contains(t, receipt, "3150.00₽")
		assert.Contains(t, receipt, "pay-1")
		assert.Contains(t, receipt, "01.03.2026 14:30")
		assert.Contains(t, receipt, "@ivanp")
		assert.Contains(t, receipt, "Иван")

		ledger.AssertExpectations(t)
		contacts.AssertExpectations(t)
	})

	t.Run("pending payment with correct secret is rejected generically", func(t *testing.T) {
		ledger := new(mockLedger)
		svc := NewAuthorizationService(ledger, nil, testCodeWord)

		ledger.On("HasSecret", ctx, int64(12345678), testCodeWord).Return(false, nil)

		result, err := svc.Verify(ctx, 12345678, testCodeWord, ChannelCommand)
		require.NoError(t, err)
		assert.Equal(t, OutcomeRejected, result.Outcome)
		assert.Nil(t, result.Record)
		ledger.AssertNotCalled(t, "FindBySecret", mock.Anything, mock.Anything, mock.Anything)

		for _, cause := range []string{"Неправильное кодовое слово", "Платеж не был совершен", "Неправильный Telegram ID", "Консультация уже использована"} {
			assert.Contains(t, RejectionText, cause)
		}
	})

	t.Run("rejection audit masks the attempted secret", func(t *testing.T) {
		ledger := new(mockLedger)
		svc := NewAuthorizationService(ledger, nil, testCodeWord)
		ledger.On("HasSecret", ctx, int64(12345678), "НЕВЕРНОЕ-СЛОВО").Return(false, nil)

		var events []audit.Event
		audit.SetSink(func(_ context.Context, e audit.Event) { events = append(events, e) })
		t.Cleanup(func() { audit.SetSink(nil) })

		_, err := svc.Verify(ctx, 12345678, "НЕВЕРНОЕ-СЛОВО", ChannelOperator)
		require.NoError(t, err)

		require.Len(t, events, 1)
		assert.Equal(t, audit.EventVerificationRejected, events[0].Type)
		assert.Equal(t, "НЕ****", events[0].Details["attempt"])
		assert.Equal(t, ChannelOperator, events[0].Details["channel"])
	})

	t.Run("storage outage is not a rejection", func(t *testing.T) {
		ledger := new(mockLedger)
		svc := NewAuthorizationService(ledger, nil, testCodeWord)

		outage := fmt.Errorf("%w after 3 attempts: %w", database.ErrUnavailable, errors.New("connection reset"))
		ledger.On("HasSecret", ctx, int64(12345678), testCodeWord).Return(false, outage)

		result, err := svc.Verify(ctx, 12345678, testCodeWord, ChannelCommand)
		assert.Nil(t, result)
		require.Error(t, err)
		assert.True(t, errors.Is(err, database.ErrUnavailable))
		assert.Equal(t, apperrors.ErrCodeUnavailable, apperrors.GetCode(err))
	})

	t.Run("other storage errors are database errors", func(t *testing.T) {
		ledger := new(mockLedger)
		svc := NewAuthorizationService(ledger, nil, testCodeWord)

		ledger.On("HasSecret", ctx, int64(12345678), testCodeWord).Return(true, nil)
		ledger.On("FindBySecret", ctx, int64(12345678), testCodeWord).Return(nil, errors.New("syntax error"))

		_, err := svc.Verify(ctx, 12345678, testCodeWord, ChannelCommand)
		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
	})

	t.Run("verified without a record still succeeds", func(t *testing.T) {
		ledger := new(mockLedger)
		svc := NewAuthorizationService(ledger, nil, testCodeWord)

		ledger.On("HasSecret", ctx, int64(12345678), testCodeWord).Return(true, nil)
		ledger.On("FindBySecret", ctx, int64(12345678), testCodeWord).Return(nil, nil)

		result, err := svc.Verify(ctx, 12345678, testCodeWord, ChannelCommand)
		require.NoError(t, err)
		assert.Equal(t, OutcomeVerified, result.Outcome)
		assert.Contains(t, OperatorReceipt(result.ClientID, nil, nil), "информация о консультации не найдена")
	})

	t.Run("contact book failure does not fail verification", func(t *testing.T) {
		ledger := new(mockLedger)
		contacts := new(mockContacts)
		svc := NewAuthorizationService(ledger, contacts, testCodeWord)

		ledger.On("HasSecret", ctx, int64(12345678), testCodeWord).Return(true, nil)
		ledger.On("FindBySecret", ctx, int64(12345678), testCodeWord).Return(paidRecord(), nil)
		ledger.On("Stats", ctx, int64(12345678)).Return(nil, errors.New("timeout"))
		contacts.On("Record", ctx, mock.Anything).Return(errors.New("redis down"))

		result, err := svc.Verify(ctx, 12345678, testCodeWord, ChannelCommand)
		require.NoError(t, err)
		assert.Equal(t, OutcomeVerified, result.Outcome)
		assert.Nil(t, result.Stats)
	})
}

func TestAuthorizationService_VerifyText(t *testing.T) {
	ctx := context.Background()
	ledger := new(mockLedger)
	svc := NewAuthorizationService(ledger, nil, testCodeWord)

	t.Run("missing secret asks for format", func(t *testing.T) {
		result, err := svc.VerifyText(ctx, "Клиент 12345678 просит консультацию", ChannelBotText)
		require.NoError(t, err)
		assert.Equal(t, OutcomeNeedsSecret, result.Outcome)
	})

	t.Run("missing identity asks for format", func(t *testing.T) {
		result, err := svc.VerifyText(ctx, "код ЮРИСТ2024", ChannelBotText)
		require.NoError(t, err)
		assert.Equal(t, OutcomeNeedsIdentity, result.Outcome)
	})

	t.Run("both present reaches the ledger", func(t *testing.T) {
		ledger.On("HasSecret", ctx, int64(12345678), testCodeWord).Return(false, nil).Once()

		result, err := svc.VerifyText(ctx, "Клиент ID: 12345678, код: юрист2024", ChannelBotText)
		require.NoError(t, err)
		assert.Equal(t, OutcomeRejected, result.Outcome)
	})

	ledger.AssertExpectations(t)
}
