package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/lawgate/consult-server-go/internal/model"
)

// PaymentProvider is the external checkout the client pays through.
type PaymentProvider interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*ProviderPayment, error)
	CheckStatus(ctx context.Context, paymentRef string) (*ProviderPayment, error)
}

type CreatePaymentRequest struct {
	ClientID int64
	Kind     model.ConsultationKind
	Amount   decimal.Decimal
	Email    *string
}

// ProviderPayment is the provider's view of a payment. Status is the raw
// provider string; classify it with model.ClassifyProviderStatus.
type ProviderPayment struct {
	ID              string
	Status          string
	ConfirmationURL string
	Amount          decimal.Decimal
	Metadata        map[string]string
}

// Notifier delivers plain text to a chat. chatID is either a numeric id
// or a channel handle.
type Notifier interface {
	SendText(ctx context.Context, chatID string, text string) error
}
