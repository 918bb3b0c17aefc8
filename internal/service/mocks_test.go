package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/lawgate/consult-server-go/internal/model"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) RecordPurchase(ctx context.Context, params model.RecordPurchaseParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *mockLedger) LatestFor(ctx context.Context, clientID int64) (*model.ConsultationRecord, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ConsultationRecord), args.Error(1)
}

func (m *mockLedger) HasSecret(ctx context.Context, clientID int64, secret string) (bool, error) {
	args := m.Called(ctx, clientID, secret)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedger) FindBySecret(ctx context.Context, clientID int64, secret string) (*model.ConsultationRecord, error) {
	args := m.Called(ctx, clientID, secret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ConsultationRecord), args.Error(1)
}

func (m *mockLedger) FindByPaymentRef(ctx context.Context, paymentRef string) (*model.ConsultationRecord, error) {
	args := m.Called(ctx, paymentRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ConsultationRecord), args.Error(1)
}

func (m *mockLedger) EmailForPayment(ctx context.Context, paymentRef string) (*string, error) {
	args := m.Called(ctx, paymentRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

func (m *mockLedger) AdvanceStatus(ctx context.Context, paymentRef string, status model.PaymentStatus) (bool, error) {
	args := m.Called(ctx, paymentRef, status)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedger) ListPending(ctx context.Context, olderThan time.Duration, limit int) ([]model.ConsultationRecord, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ConsultationRecord), args.Error(1)
}

func (m *mockLedger) Stats(ctx context.Context, clientID int64) (*model.ClientStats, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ClientStats), args.Error(1)
}

type mockClients struct {
	mock.Mock
}

func (m *mockClients) Upsert(ctx context.Context, params model.UpsertClientParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *mockClients) FindByID(ctx context.Context, clientID int64) (*model.Client, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Client), args.Error(1)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*ProviderPayment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProviderPayment), args.Error(1)
}

func (m *mockProvider) CheckStatus(ctx context.Context, paymentRef string) (*ProviderPayment, error) {
	args := m.Called(ctx, paymentRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ProviderPayment), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendText(ctx context.Context, chatID string, text string) error {
	args := m.Called(ctx, chatID, text)
	return args.Error(0)
}

type mockContacts struct {
	mock.Mock
}

func (m *mockContacts) Record(ctx context.Context, entry ContactEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func strPtr(s string) *string {
	return &s
}
