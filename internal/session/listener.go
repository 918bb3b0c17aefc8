package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lawgate/consult-server-go/internal/service"
)

const (
	paidReply          = "Здравствуйте!\n\n✅ Оплата подтверждена!\n\nМожете задать ваш вопрос."
	notPaidReply       = "❌ Вы не оплатили консультацию.\n\nОплатите консультацию через бота и попробуйте снова."
	missingIDReply     = "❌ Не найден Telegram ID в сообщении.\n\nПожалуйста, укажите ваш ID в любом месте сообщения."
	checkFailedReply   = "⚠️ Не удалось проверить оплату. Попробуйте написать чуть позже."
	contactsErrorReply = "⚠️ Список клиентов временно недоступен."
)

type Verifier interface {
	CodeWord() string
	VerifyText(ctx context.Context, text, channel string) (*service.VerifyResult, error)
}

type ContactLister interface {
	List(ctx context.Context) ([]service.ContactEntry, error)
}

// Incoming is a private message seen by the operator identity.
type Incoming struct {
	SenderID int64
	Text     string
	// FromSelf is true for messages the operator wrote to their own
	// saved-messages chat.
	FromSelf bool
}

// Listener decides how the operator identity answers private messages.
// Clients write their id and the code word; the operator can run commands
// from saved messages.
type Listener struct {
	verifier Verifier
	contacts ContactLister
}

func NewListener(verifier Verifier, contacts ContactLister) *Listener {
	return &Listener{verifier: verifier, contacts: contacts}
}

// Reply returns the answer for msg, or "" when the message is not ours to
// answer.
func (l *Listener) Reply(ctx context.Context, msg Incoming) string {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return ""
	}

	if msg.FromSelf {
		return l.command(ctx, text)
	}

	if !l.mentionsCodeWord(text) {
		return ""
	}

	result, err := l.verifier.VerifyText(ctx, text, service.ChannelOperator)
	if err != nil {
		log.Error().Err(err).Int64("senderId", msg.SenderID).Msg("operator identity verification failed")
		return checkFailedReply
	}

	switch result.Outcome {
	case service.OutcomeVerified:
		return paidReply
	case service.OutcomeNeedsIdentity:
		return missingIDReply
	case service.OutcomeRejected:
		return notPaidReply
	default:
		return ""
	}
}

// mentionsCodeWord keeps the identity out of the operator's other private
// conversations.
func (l *Listener) mentionsCodeWord(text string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(l.verifier.CodeWord()))
}

func (l *Listener) command(ctx context.Context, text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]

	switch cmd {
	case "/start":
		return "👨‍💼 Добро пожаловать!\n\n" +
			fmt.Sprintf("Напишите ваш ID и кодовое слово %s.\n", l.verifier.CodeWord()) +
			fmt.Sprintf("Пример: 123456789 %s", l.verifier.CodeWord())
	case "/help":
		return "📋 Инструкция:\n\n" +
			fmt.Sprintf("Клиент пишет: ID + %s\n", l.verifier.CodeWord()) +
			"Система проверяет оплату\n" +
			"Если оплачено - можете консультировать\n\n" +
			fmt.Sprintf("Пример: 123456789 %s", l.verifier.CodeWord())
	case "/stats":
		if l.contacts == nil {
			return service.FormatContacts(nil)
		}
		entries, err := l.contacts.List(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to list operator contacts")
			return contactsErrorReply
		}
		return service.FormatContacts(entries)
	default:
		return ""
	}
}
