package handler

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/lawgate/consult-server-go/internal/model"
	"github.com/lawgate/consult-server-go/internal/service"
	"github.com/lawgate/consult-server-go/internal/telegram"
)

type sentMessage struct {
	ChatID string
	Text   string
	Markup *telegram.InlineKeyboardMarkup
}

type fakeBot struct {
	mu       sync.Mutex
	sent     []sentMessage
	answered []string
}

func (b *fakeBot) SendMessage(_ context.Context, chatID string, text string, markup *telegram.InlineKeyboardMarkup) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentMessage{ChatID: chatID, Text: text, Markup: markup})
	return nil
}

func (b *fakeBot) AnswerCallback(_ context.Context, callbackID string, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answered = append(b.answered, callbackID)
	return nil
}

func (b *fakeBot) last() sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sent) == 0 {
		return sentMessage{}
	}
	return b.sent[len(b.sent)-1]
}

func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.sent))
	for i, m := range b.sent {
		out[i] = m.Text
	}
	return out
}

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) CodeWord() string {
	return "ЮРИСТ2024"
}

func (m *mockVerifier) Verify(ctx context.Context, clientID int64, secret, channel string) (*service.VerifyResult, error) {
	args := m.Called(ctx, clientID, secret, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VerifyResult), args.Error(1)
}

func (m *mockVerifier) VerifyText(ctx context.Context, text, channel string) (*service.VerifyResult, error) {
	args := m.Called(ctx, text, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VerifyResult), args.Error(1)
}

type mockPayments struct {
	mock.Mock
	disabled bool
}

func (m *mockPayments) Enabled() bool {
	return !m.disabled
}

func (m *mockPayments) StartPurchase(ctx context.Context, clientID int64, kind model.ConsultationKind, email *string) (*service.Purchase, error) {
	args := m.Called(ctx, clientID, kind, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Purchase), args.Error(1)
}

func (m *mockPayments) CheckPayment(ctx context.Context, requesterID int64, paymentRef string) (*service.PaymentCheck, error) {
	args := m.Called(ctx, requesterID, paymentRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PaymentCheck), args.Error(1)
}

type fakeClients struct {
	mu      sync.Mutex
	upserts []model.UpsertClientParams
}

func (c *fakeClients) Upsert(_ context.Context, params model.UpsertClientParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upserts = append(c.upserts, params)
	return nil
}

func (c *fakeClients) FindByID(_ context.Context, _ int64) (*model.Client, error) {
	return nil, nil
}

type fakeState struct {
	mu      sync.Mutex
	waiting map[int64]model.ConsultationKind
}

func newFakeState() *fakeState {
	return &fakeState{waiting: make(map[int64]model.ConsultationKind)}
}

func (s *fakeState) AwaitEmail(_ context.Context, clientID int64, kind model.ConsultationKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiting[clientID] = kind
	return nil
}

func (s *fakeState) AwaitingEmail(_ context.Context, clientID int64) (model.ConsultationKind, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, ok := s.waiting[clientID]
	return kind, ok, nil
}

func (s *fakeState) Clear(_ context.Context, clientID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiting, clientID)
	return nil
}

type fakeContacts struct {
	entries []service.ContactEntry
	err     error
}

func (c *fakeContacts) List(_ context.Context) ([]service.ContactEntry, error) {
	return c.entries, c.err
}
