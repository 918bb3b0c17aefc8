package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/lawgate/consult-server-go/internal/config"
	"github.com/lawgate/consult-server-go/internal/model"
	"github.com/lawgate/consult-server-go/internal/redis"
)

// ContactEntry is the operator's note about a verified client.
type ContactEntry struct {
	ClientID    int64                  `json:"clientId"`
	Name        string                 `json:"name"`
	Handle      string                 `json:"handle"`
	Amount      decimal.Decimal        `json:"amount"`
	Kind        model.ConsultationKind `json:"kind"`
	LastContact time.Time              `json:"lastContact"`
}

// ContactBook stores verified clients in a single redis hash.
type ContactBook struct {
	client goredis.Cmdable
}

func NewContactBook(client goredis.Cmdable) *ContactBook {
	return &ContactBook{client: client}
}

func (b *ContactBook) Record(ctx context.Context, entry ContactEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal contact: %w", err)
	}
	field := strconv.FormatInt(entry.ClientID, 10)

	_, err = b.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, redis.ContactBookKey, field, data)
		pipe.Expire(ctx, redis.ContactBookKey, config.ContactBookTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record contact: %w", err)
	}
	return nil
}

// List returns contacts, most recent first. Unreadable entries are skipped.
func (b *ContactBook) List(ctx context.Context) ([]ContactEntry, error) {
	raw, err := b.client.HGetAll(ctx, redis.ContactBookKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	entries := make([]ContactEntry, 0, len(raw))
	for _, v := range raw {
		var e ContactEntry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastContact.After(entries[j].LastContact)
	})
	return entries, nil
}

// FormatContacts renders the /stats reply.
func FormatContacts(entries []ContactEntry) string {
	if len(entries) == 0 {
		return "📊 Статистика пуста - нет активных клиентов"
	}
	var b strings.Builder
	b.WriteString("📊 Статистика активных клиентов:\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "👤 %s (%s)\n", e.Name, e.Handle)
		fmt.Fprintf(&b, "🆔 ID: %d\n", e.ClientID)
		fmt.Fprintf(&b, "💰 Оплата: %s\n", rub(e.Amount))
		fmt.Fprintf(&b, "📅 Последний контакт: %s\n\n", e.LastContact.Format("2006-01-02"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// ConversationState remembers which kind a client is entering an e-mail for.
type ConversationState struct {
	client goredis.Cmdable
}

func NewConversationState(client goredis.Cmdable) *ConversationState {
	return &ConversationState{client: client}
}

func (s *ConversationState) AwaitEmail(ctx context.Context, clientID int64, kind model.ConsultationKind) error {
	return s.client.Set(ctx, redis.AwaitingEmailKey(clientID), string(kind), config.AwaitingEmailTTL).Err()
}

// AwaitingEmail reports the pending kind, if any.
func (s *ConversationState) AwaitingEmail(ctx context.Context, clientID int64) (model.ConsultationKind, bool, error) {
	v, err := s.client.Get(ctx, redis.AwaitingEmailKey(clientID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	kind := model.ConsultationKind(v)
	if !kind.Valid() {
		return "", false, nil
	}
	return kind, true, nil
}

func (s *ConversationState) Clear(ctx context.Context, clientID int64) error {
	return s.client.Del(ctx, redis.AwaitingEmailKey(clientID)).Err()
}
