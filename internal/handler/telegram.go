package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lawgate/consult-server-go/internal/audit"
	apperrors "github.com/lawgate/consult-server-go/internal/errors"
	"github.com/lawgate/consult-server-go/internal/model"
	"github.com/lawgate/consult-server-go/internal/repository"
	"github.com/lawgate/consult-server-go/internal/service"
	"github.com/lawgate/consult-server-go/internal/telegram"
	"github.com/lawgate/consult-server-go/internal/util"
)

// Messenger sends bot replies.
type Messenger interface {
	SendMessage(ctx context.Context, chatID string, text string, markup *telegram.InlineKeyboardMarkup) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

type Verifier interface {
	CodeWord() string
	Verify(ctx context.Context, clientID int64, secret, channel string) (*service.VerifyResult, error)
	VerifyText(ctx context.Context, text, channel string) (*service.VerifyResult, error)
}

type Payments interface {
	Enabled() bool
	StartPurchase(ctx context.Context, clientID int64, kind model.ConsultationKind, email *string) (*service.Purchase, error)
	CheckPayment(ctx context.Context, requesterID int64, paymentRef string) (*service.PaymentCheck, error)
}

// EmailState tracks clients that were asked for a receipt e-mail.
type EmailState interface {
	AwaitEmail(ctx context.Context, clientID int64, kind model.ConsultationKind) error
	AwaitingEmail(ctx context.Context, clientID int64) (model.ConsultationKind, bool, error)
	Clear(ctx context.Context, clientID int64) error
}

type ContactLister interface {
	List(ctx context.Context) ([]service.ContactEntry, error)
}

type TelegramHandlerConfig struct {
	LawyerIDs     []int64
	LawyerContact string
}

type TelegramHandler struct {
	bot      Messenger
	verifier Verifier
	payments Payments
	clients  repository.ClientRepository
	state    EmailState
	contacts ContactLister
	lawyers  map[int64]struct{}
	contact  string
}

func NewTelegramHandler(
	bot Messenger,
	verifier Verifier,
	payments Payments,
	clients repository.ClientRepository,
	state EmailState,
	contacts ContactLister,
	cfg TelegramHandlerConfig,
) *TelegramHandler {
	lawyers := make(map[int64]struct{}, len(cfg.LawyerIDs))
	for _, id := range cfg.LawyerIDs {
		lawyers[id] = struct{}{}
	}
	return &TelegramHandler{
		bot:      bot,
		verifier: verifier,
		payments: payments,
		clients:  clients,
		state:    state,
		contacts: contacts,
		lawyers:  lawyers,
		contact:  cfg.LawyerContact,
	}
}

// Webhook handles one Bot API update. Anything past decoding is answered
// with 200 so Telegram does not redeliver it.
func (h *TelegramHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Warn().Err(err).Msg("invalid telegram update")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	ctx := r.Context()
	switch {
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	default:
		log.Debug().Int64("updateId", update.UpdateID).Msg("ignoring unsupported update")
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *TelegramHandler) isLawyer(id int64) bool {
	_, ok := h.lawyers[id]
	return ok
}

func (h *TelegramHandler) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}
	user := msg.From
	chatID := service.ClientChatID(msg.Chat.ID)

	var phone *string
	if msg.Contact != nil && msg.Contact.UserID == user.ID {
		phone = strPtr(msg.Contact.PhoneNumber)
	}
	h.rememberClient(ctx, user, phone)

	log.Info().
		Int64("clientId", user.ID).
		Str("text", truncate(msg.Text, 50)).
		Msg("received telegram message")

	if cmd, args, ok := msg.Command(); ok {
		h.handleCommand(ctx, chatID, user, cmd, args)
		return
	}

	if msg.Text == "" {
		return
	}

	if h.isLawyer(user.ID) {
		result, err := h.verifier.VerifyText(ctx, msg.Text, service.ChannelBotText)
		h.reply(ctx, chatID, h.verificationText(result, err), nil)
		return
	}

	kind, awaiting, err := h.state.AwaitingEmail(ctx, user.ID)
	if err != nil {
		log.Warn().Err(err).Int64("clientId", user.ID).Msg("conversation state unavailable")
	}
	if awaiting {
		h.handleEmail(ctx, chatID, user.ID, kind, msg.Text)
		return
	}

	h.reply(ctx, chatID, welcomeText, mainMenu())
}

func (h *TelegramHandler) handleCommand(ctx context.Context, chatID string, user *telegram.User, cmd, args string) {
	switch cmd {
	case "start":
		h.clearState(ctx, user.ID)
		if h.isLawyer(user.ID) {
			h.reply(ctx, chatID, lawyerWelcomeText(h.verifier.CodeWord()), nil)
			return
		}
		h.reply(ctx, chatID, welcomeText, mainMenu())
	case "help":
		h.reply(ctx, chatID, helpText(h.contact), backToMenu())
	case "check":
		if !h.requireLawyer(ctx, chatID, user.ID, cmd) {
			return
		}
		h.handleCheck(ctx, chatID, args)
	case "stats":
		if !h.requireLawyer(ctx, chatID, user.ID, cmd) {
			return
		}
		h.handleStats(ctx, chatID)
	default:
		h.reply(ctx, chatID, welcomeText, mainMenu())
	}
}

func (h *TelegramHandler) requireLawyer(ctx context.Context, chatID string, userID int64, cmd string) bool {
	if h.isLawyer(userID) {
		return true
	}
	audit.Log(ctx, audit.Event{
		Type:     audit.EventCommandDenied,
		ClientID: userID,
		Details:  map[string]interface{}{"command": cmd},
	})
	h.reply(ctx, chatID, noAccessText, nil)
	return false
}

func (h *TelegramHandler) handleCheck(ctx context.Context, chatID string, args string) {
	clientID, secret, err := service.ParseCheckArgs(args)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeInvalidInput {
			h.reply(ctx, chatID, badIdentityText, nil)
			return
		}
		h.reply(ctx, chatID, service.CheckUsageText(h.verifier.CodeWord()), nil)
		return
	}

	result, err := h.verifier.Verify(ctx, clientID, secret, service.ChannelCommand)
	h.reply(ctx, chatID, h.verificationText(result, err), nil)
}

func (h *TelegramHandler) handleStats(ctx context.Context, chatID string) {
	if h.contacts == nil {
		h.reply(ctx, chatID, service.FormatContacts(nil), nil)
		return
	}
	entries, err := h.contacts.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list operator contacts")
		h.reply(ctx, chatID, storageErrorText, nil)
		return
	}
	h.reply(ctx, chatID, service.FormatContacts(entries), nil)
}

func (h *TelegramHandler) verificationText(result *service.VerifyResult, err error) string {
	if err != nil {
		return service.UnavailableText
	}
	switch result.Outcome {
	case service.OutcomeVerified:
		return service.OperatorReceipt(result.ClientID, result.Record, result.Stats)
	case service.OutcomeNeedsIdentity:
		return service.GuidanceText(h.verifier.CodeWord(), true)
	case service.OutcomeNeedsSecret:
		return service.GuidanceText(h.verifier.CodeWord(), false)
	default:
		return service.RejectionText
	}
}

func (h *TelegramHandler) handleEmail(ctx context.Context, chatID string, clientID int64, kind model.ConsultationKind, text string) {
	email, ok := util.NormalizeEmail(text)
	if !ok {
		h.reply(ctx, chatID, invalidEmailText(text), emailChoiceMenu(kind))
		return
	}
	h.clearState(ctx, clientID)
	h.startPurchase(ctx, chatID, clientID, kind, &email)
}

func (h *TelegramHandler) handleCallback(ctx context.Context, cq *telegram.CallbackQuery) {
	if err := h.bot.AnswerCallback(ctx, cq.ID, ""); err != nil {
		log.Warn().Err(err).Str("callbackId", cq.ID).Msg("failed to answer callback")
	}

	user := &cq.From
	chatID := service.ClientChatID(user.ID)
	if cq.Message != nil {
		chatID = service.ClientChatID(cq.Message.Chat.ID)
	}
	h.rememberClient(ctx, user, nil)

	log.Info().Int64("clientId", user.ID).Str("data", cq.Data).Msg("received callback")

	data := cq.Data
	switch {
	case data == callbackLawyer:
		h.reply(ctx, chatID, consultationMenuText, consultationMenu())
	case data == callbackAbout:
		h.reply(ctx, chatID, aboutText, backToMenu())
	case data == callbackMainMenu:
		h.clearState(ctx, user.ID)
		h.reply(ctx, chatID, welcomeText, mainMenu())
	case strings.HasPrefix(data, callbackEmailPrefix):
		kind, ok := parseKind(data, callbackEmailPrefix)
		if !ok {
			h.reply(ctx, chatID, welcomeText, mainMenu())
			return
		}
		if err := h.state.AwaitEmail(ctx, user.ID, kind); err != nil {
			log.Error().Err(err).Int64("clientId", user.ID).Msg("failed to store conversation state")
			h.reply(ctx, chatID, storageErrorText, emailChoiceMenu(kind))
			return
		}
		h.reply(ctx, chatID, enterEmailText, telegram.Keyboard(
			telegram.CallbackButton("🚫 Отмена", callbackMainMenu),
		))
	case strings.HasPrefix(data, callbackNoReceipt):
		kind, ok := parseKind(data, callbackNoReceipt)
		if !ok {
			h.reply(ctx, chatID, welcomeText, mainMenu())
			return
		}
		h.clearState(ctx, user.ID)
		h.startPurchase(ctx, chatID, user.ID, kind, nil)
	case strings.HasPrefix(data, callbackCheckPayment):
		h.checkPayment(ctx, chatID, user.ID, strings.TrimPrefix(data, callbackCheckPayment))
	case strings.HasPrefix(data, callbackPayPrefix):
		kind, ok := parseKind(data, callbackPayPrefix)
		if !ok {
			h.reply(ctx, chatID, welcomeText, mainMenu())
			return
		}
		if !h.payments.Enabled() {
			h.reply(ctx, chatID, paymentsDisabledText, backToMenu())
			return
		}
		h.reply(ctx, chatID, emailChoiceText, emailChoiceMenu(kind))
	default:
		log.Debug().Str("data", data).Msg("unknown callback data")
		h.reply(ctx, chatID, welcomeText, mainMenu())
	}
}

func (h *TelegramHandler) startPurchase(ctx context.Context, chatID string, clientID int64, kind model.ConsultationKind, email *string) {
	purchase, err := h.payments.StartPurchase(ctx, clientID, kind, email)
	if err != nil {
		log.Warn().Err(err).Int64("clientId", clientID).Str("kind", string(kind)).Msg("purchase not started")
		switch apperrors.GetCode(err) {
		case apperrors.ErrCodePaymentsDisabled:
			h.reply(ctx, chatID, paymentsDisabledText, backToMenu())
		case apperrors.ErrCodeRateLimited:
			h.reply(ctx, chatID, rateLimitedText, backToMenu())
		default:
			h.reply(ctx, chatID, paymentErrorText, backToMenu())
		}
		return
	}
	h.reply(ctx, chatID, purchaseText(purchase, email), paymentMenu(purchase))
}

func (h *TelegramHandler) checkPayment(ctx context.Context, chatID string, clientID int64, paymentRef string) {
	if paymentRef == "" {
		h.reply(ctx, chatID, welcomeText, mainMenu())
		return
	}

	check, err := h.payments.CheckPayment(ctx, clientID, paymentRef)
	if err != nil {
		log.Warn().Err(err).Str("paymentRef", paymentRef).Int64("clientId", clientID).Msg("payment check failed")
		if apperrors.GetCode(err) == apperrors.ErrCodeForbidden {
			h.reply(ctx, chatID, foreignPaymentText, backToMenu())
			return
		}
		h.reply(ctx, chatID, paymentCheckErrorText, recheckMenu(paymentRef))
		return
	}

	switch check.State {
	case model.PaymentStateSucceeded:
		if check.CodeWord == "" {
			h.reply(ctx, chatID, paymentPendingText, recheckMenu(paymentRef))
			return
		}
		h.reply(ctx, chatID, service.PaymentSucceededText(check, h.contact), nil)
		h.reply(ctx, chatID, service.CodeWordText(check.CodeWord, check.ClientID), backToMenu())
		if check.ReceiptEmail != nil {
			h.reply(ctx, chatID, service.ReceiptSentText(paymentRef, *check.ReceiptEmail), nil)
		}
	case model.PaymentStateFailed:
		h.reply(ctx, chatID, paymentFailedText(check.RawStatus), telegram.Keyboard(
			telegram.CallbackButton("🔄 Попробовать снова", callbackLawyer),
			telegram.CallbackButton("🏠 Главное меню", callbackMainMenu),
		))
	default:
		h.reply(ctx, chatID, paymentPendingText, recheckMenu(paymentRef))
	}
}

func (h *TelegramHandler) rememberClient(ctx context.Context, user *telegram.User, phone *string) {
	err := h.clients.Upsert(ctx, model.UpsertClientParams{
		ClientID:  user.ID,
		Username:  strPtr(user.Username),
		FirstName: strPtr(user.FirstName),
		LastName:  strPtr(user.LastName),
		Phone:     phone,
	})
	if err != nil {
		log.Warn().Err(err).Int64("clientId", user.ID).Msg("failed to save client profile")
	}
}

func (h *TelegramHandler) clearState(ctx context.Context, clientID int64) {
	if err := h.state.Clear(ctx, clientID); err != nil {
		log.Warn().Err(err).Int64("clientId", clientID).Msg("failed to clear conversation state")
	}
}

func (h *TelegramHandler) reply(ctx context.Context, chatID string, text string, markup *telegram.InlineKeyboardMarkup) {
	if err := h.bot.SendMessage(ctx, chatID, text, markup); err != nil {
		log.Error().Err(err).Str("chatId", chatID).Msg("failed to send telegram message")
	}
}

func parseKind(data, prefix string) (model.ConsultationKind, bool) {
	kind := model.ConsultationKind(strings.TrimPrefix(data, prefix))
	return kind, kind.Valid()
}
