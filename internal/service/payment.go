package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/lawgate/consult-server-go/internal/audit"
	"github.com/lawgate/consult-server-go/internal/config"
	apperrors "github.com/lawgate/consult-server-go/internal/errors"
	"github.com/lawgate/consult-server-go/internal/metrics"
	"github.com/lawgate/consult-server-go/internal/model"
	"github.com/lawgate/consult-server-go/internal/repository"
)

// Purchase is a freshly opened checkout.
type Purchase struct {
	PaymentRef      string
	ConfirmationURL string
	Kind            model.ConsultationKind
	Amount          decimal.Decimal
}

// PaymentCheck is the outcome of asking the provider about a payment.
// CodeWord is only set once the ledger holds a succeeded record.
type PaymentCheck struct {
	PaymentRef   string
	State        model.PaymentState
	RawStatus    string
	Kind         model.ConsultationKind
	Amount       decimal.Decimal
	ClientID     int64
	CodeWord     string
	ReceiptEmail *string
	// Advanced is true when this check moved the ledger record.
	Advanced bool
}

type PaymentServiceConfig struct {
	CodeWord      string
	LawyerChatID  string
	LawyerContact string
}

type PaymentService struct {
	provider PaymentProvider
	ledger   repository.ConsultationRepository
	clients  repository.ClientRepository
	notifier Notifier
	limiter  *PurchaseLimiter
	cfg      PaymentServiceConfig
}

// NewPaymentService builds the service. provider may be nil when payments
// are not configured; limiter and notifier are optional.
func NewPaymentService(
	provider PaymentProvider,
	ledger repository.ConsultationRepository,
	clients repository.ClientRepository,
	notifier Notifier,
	limiter *PurchaseLimiter,
	cfg PaymentServiceConfig,
) *PaymentService {
	return &PaymentService{
		provider: provider,
		ledger:   ledger,
		clients:  clients,
		notifier: notifier,
		limiter:  limiter,
		cfg:      cfg,
	}
}

func (s *PaymentService) Enabled() bool {
	return s.provider != nil
}

// StartPurchase opens a checkout and records a pending ledger entry that
// already carries the code word.
func (s *PaymentService) StartPurchase(ctx context.Context, clientID int64, kind model.ConsultationKind, email *string) (*Purchase, error) {
	if !kind.Valid() {
		return nil, apperrors.InvalidInput("kind", "unknown consultation kind")
	}
	if s.provider == nil {
		return nil, apperrors.PaymentsDisabled()
	}
	if s.limiter != nil {
		if ok, resetAt := s.limiter.Allow(ctx, clientID); !ok {
			return nil, apperrors.New(apperrors.ErrCodeRateLimited, "Too many payment attempts").
				WithDetails(map[string]any{"resetAt": resetAt})
		}
	}

	amount := kind.Price()
	payment, err := s.provider.CreatePayment(ctx, CreatePaymentRequest{
		ClientID: clientID,
		Kind:     kind,
		Amount:   amount,
		Email:    email,
	})
	if err != nil {
		return nil, apperrors.PaymentProvider(err)
	}

	err = s.ledger.RecordPurchase(ctx, model.RecordPurchaseParams{
		ClientID:     clientID,
		Kind:         kind,
		Amount:       amount,
		PaymentRef:   payment.ID,
		Status:       model.PaymentStatusPending,
		Secret:       s.cfg.CodeWord,
		ContactEmail: email,
	})
	if err != nil {
		// The checkout exists; a later successful check re-records it from
		// provider metadata.
		log.Error().Err(err).Str("paymentRef", payment.ID).Int64("clientId", clientID).Msg("failed to record pending purchase")
	} else {
		metrics.PaymentTransitions.WithLabelValues(string(model.PaymentStatusPending)).Inc()
	}

	log.Info().
		Str("paymentRef", payment.ID).
		Int64("clientId", clientID).
		Str("kind", string(kind)).
		Msg("purchase started")

	return &Purchase{
		PaymentRef:      payment.ID,
		ConfirmationURL: payment.ConfirmationURL,
		Kind:            kind,
		Amount:          amount,
	}, nil
}

// CheckPayment asks the provider for the payment status and moves the
// ledger forward. requesterID, when non-zero, must own the payment.
func (s *PaymentService) CheckPayment(ctx context.Context, requesterID int64, paymentRef string) (*PaymentCheck, error) {
	if s.provider == nil {
		return nil, apperrors.PaymentsDisabled()
	}

	payment, err := s.provider.CheckStatus(ctx, paymentRef)
	if err != nil {
		return nil, apperrors.PaymentProvider(err)
	}

	rec, err := s.ledger.FindByPaymentRef(ctx, paymentRef)
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", paymentRef, err)
	}

	check := &PaymentCheck{
		PaymentRef: paymentRef,
		State:      model.ClassifyProviderStatus(payment.Status),
		RawStatus:  payment.Status,
	}

	if rec != nil {
		check.ClientID = rec.ClientID
		check.Kind = rec.Kind
		check.Amount = rec.Amount
	} else {
		check.ClientID, _ = clientFromMetadata(payment.Metadata)
		check.Kind = kindFromMetadata(payment.Metadata)
		check.Amount = payment.Amount
	}

	if requesterID != 0 && check.ClientID != 0 && check.ClientID != requesterID {
		log.Warn().
			Int64("requesterId", requesterID).
			Int64("clientId", check.ClientID).
			Str("paymentRef", paymentRef).
			Msg("payment check by non-owner")
		return nil, apperrors.Forbidden("payment belongs to another client")
	}

	status := check.State.LedgerStatus()
	var ledgerStatus model.PaymentStatus
	if rec != nil {
		ledgerStatus = rec.Status
	}

	switch {
	case rec != nil && rec.Status.CanAdvanceTo(status):
		advanced, err := s.ledger.AdvanceStatus(ctx, paymentRef, status)
		if err != nil {
			return nil, fmt.Errorf("advance payment %s: %w", paymentRef, err)
		}
		check.Advanced = advanced
		if advanced {
			ledgerStatus = status
		} else if current, err := s.ledger.FindByPaymentRef(ctx, paymentRef); err == nil && current != nil {
			// moved concurrently by another check
			ledgerStatus = current.Status
		}
	case rec == nil && status == model.PaymentStatusSucceeded && check.ClientID != 0:
		err := s.ledger.RecordPurchase(ctx, model.RecordPurchaseParams{
			ClientID:     check.ClientID,
			Kind:         check.Kind,
			Amount:       check.Amount,
			PaymentRef:   paymentRef,
			Status:       model.PaymentStatusSucceeded,
			Secret:       s.cfg.CodeWord,
			ContactEmail: emailFromMetadata(payment.Metadata),
		})
		if err != nil {
			return nil, fmt.Errorf("record paid purchase %s: %w", paymentRef, err)
		}
		check.Advanced = true
		ledgerStatus = model.PaymentStatusSucceeded
	}

	if check.Advanced {
		metrics.PaymentTransitions.WithLabelValues(string(status)).Inc()
		log.Info().
			Str("paymentRef", paymentRef).
			Int64("clientId", check.ClientID).
			Str("status", string(status)).
			Msg("payment status advanced")
	}

	// The code word is disclosed only when provider and ledger agree.
	if check.State != model.PaymentStateSucceeded || ledgerStatus != model.PaymentStatusSucceeded {
		return check, nil
	}

	check.CodeWord = s.cfg.CodeWord
	if email, err := s.ledger.EmailForPayment(ctx, paymentRef); err != nil {
		log.Warn().Err(err).Str("paymentRef", paymentRef).Msg("receipt e-mail lookup failed")
	} else {
		check.ReceiptEmail = email
	}

	audit.Log(ctx, audit.Event{
		Type:     audit.EventCodeWordDisclosed,
		ClientID: check.ClientID,
		Details:  map[string]interface{}{"paymentRef": paymentRef},
	})

	if check.Advanced {
		s.notifyLawyer(ctx, check, rec)
	}
	return check, nil
}

// ReconcilePending re-checks pending records the client never asked about.
// onPaid is invoked for each record that this pass moved to succeeded.
func (s *PaymentService) ReconcilePending(ctx context.Context, onPaid func(context.Context, *PaymentCheck)) (int, error) {
	if s.provider == nil {
		return 0, nil
	}

	pending, err := s.ledger.ListPending(ctx, config.PaymentPollMinAge, config.PaymentPollBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	advanced := 0
	for _, rec := range pending {
		if ctx.Err() != nil {
			return advanced, ctx.Err()
		}
		check, err := s.CheckPayment(ctx, 0, rec.PaymentRef)
		if err != nil {
			log.Warn().Err(err).Str("paymentRef", rec.PaymentRef).Msg("pending payment check failed")
			continue
		}
		if !check.Advanced {
			continue
		}
		advanced++
		if check.State == model.PaymentStateSucceeded && onPaid != nil {
			onPaid(ctx, check)
		}
	}
	return advanced, nil
}

func (s *PaymentService) notifyLawyer(ctx context.Context, check *PaymentCheck, rec *model.ConsultationRecord) {
	if s.notifier == nil || s.cfg.LawyerChatID == "" {
		log.Warn().Str("paymentRef", check.PaymentRef).Msg("LAWYER_CHAT_ID not configured, lawyer not notified")
		return
	}

	var fields model.ClientFields
	if rec != nil {
		fields = rec.ClientFields
	} else if client, err := s.clients.FindByID(ctx, check.ClientID); err == nil && client != nil {
		fields = model.ClientFields{
			Username:  client.Username,
			FirstName: client.FirstName,
			LastName:  client.LastName,
			Phone:     client.Phone,
		}
	}

	text := LawyerNotification(check.ClientID, fields, check.Kind, check.Amount, s.cfg.CodeWord, s.cfg.LawyerContact)

	sendCtx, cancel := context.WithTimeout(ctx, config.TelegramAPITimeout)
	defer cancel()
	if err := s.notifier.SendText(sendCtx, s.cfg.LawyerChatID, text); err != nil {
		log.Error().Err(err).Str("paymentRef", check.PaymentRef).Msg("failed to notify lawyer")
		return
	}
	log.Info().Str("paymentRef", check.PaymentRef).Int64("clientId", check.ClientID).Msg("lawyer notified")
}

// ClientChatID is the private chat id for a client.
func ClientChatID(clientID int64) string {
	return strconv.FormatInt(clientID, 10)
}
