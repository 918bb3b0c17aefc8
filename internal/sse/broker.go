package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/lawgate/consult-server-go/internal/audit"
	"github.com/lawgate/consult-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
	publishTimeout    = 2 * time.Second
	clientBuffer      = 100
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// FeedEntry is what operators see for one audit event. It never carries
// secrets or message text.
type FeedEntry struct {
	ClientID int64     `json:"clientId,omitempty"`
	Channel  string    `json:"channel,omitempty"`
	At       time.Time `json:"at"`
}

// feedTypes are the audit events relayed to the operator feed.
var feedTypes = map[audit.EventType]bool{
	audit.EventVerificationSuccess:  true,
	audit.EventVerificationRejected: true,
	audit.EventCodeWordDisclosed:    true,
	audit.EventSessionLogin:         true,
	audit.EventSessionInvalid:       true,
}

type Client struct {
	Events chan Event
	Done   chan struct{}
}

// Broker fans the operator feed out to connected streams. Events go through
// a Redis channel so every instance sees all of them.
type Broker struct {
	redis   goredis.UniversalClient
	clients map[*Client]struct{}
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
	now     func() time.Time
}

func NewBroker(redisClient goredis.UniversalClient) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[*Client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}
}

func (b *Broker) Subscribe() *Client {
	client := &Client{
		Events: make(chan Event, clientBuffer),
		Done:   make(chan struct{}),
	}

	if b.redis != nil {
		b.once.Do(func() { go b.subscribeToRedis() })
	}

	b.mu.Lock()
	b.clients[client] = struct{}{}
	count := len(b.clients)
	b.mu.Unlock()

	log.Info().Int("clientCount", count).Msg("operator feed client subscribed")
	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.clients[client]; !ok {
		return
	}
	delete(b.clients, client)
	close(client.Done)
	log.Info().Int("clientCount", len(b.clients)).Msg("operator feed client unsubscribed")
}

func (b *Broker) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, redis.OperatorFeedChannel, data).Err()
}

// Forward is an audit.Sink. It publishes feed-worthy events and drops the
// rest.
func (b *Broker) Forward(ctx context.Context, e audit.Event) {
	if !feedTypes[e.Type] {
		return
	}

	entry := FeedEntry{ClientID: e.ClientID, At: b.now().UTC()}
	if ch, ok := e.Details["channel"].(string); ok {
		entry.Channel = ch
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := b.Publish(pubCtx, Event{Type: string(e.Type), Data: data}); err != nil {
		log.Warn().Err(err).Str("eventType", string(e.Type)).Msg("failed to publish operator feed event")
	}
}

func (b *Broker) subscribeToRedis() {
	pubsub := b.redis.Subscribe(b.ctx, redis.OperatorFeedChannel)
	defer pubsub.Close()

	log.Debug().Str("channel", redis.OperatorFeedChannel).Msg("redis pubsub subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal feed event")
				continue
			}
			b.broadcast(event)
		}
	}
}

func (b *Broker) broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().Msg("feed client buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for client := range b.clients {
		close(client.Done)
	}
	b.clients = make(map[*Client]struct{})
}

func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
