package audit

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventVerificationSuccess  EventType = "verification_success"
	EventVerificationRejected EventType = "verification_rejected"
	EventCodeWordDisclosed    EventType = "code_word_disclosed"
	EventOperatorAuthFailure  EventType = "operator_auth_failure"
	EventWebhookAuthFailure   EventType = "webhook_auth_failure"
	EventCommandDenied        EventType = "command_denied"
	EventSessionLogin         EventType = "session_login"
	EventSessionInvalid       EventType = "session_invalid"
)

type Event struct {
	Type       EventType
	ClientID   int64
	OperatorID int64
	IP         string
	UserAgent  string
	Details    map[string]interface{}
}

// Sink receives every event after it is logged.
type Sink func(ctx context.Context, event Event)

var sink atomic.Pointer[Sink]

// SetSink installs fn as the event sink; nil removes it.
func SetSink(fn Sink) {
	if fn == nil {
		sink.Store(nil)
		return
	}
	sink.Store(&fn)
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.ClientID != 0 {
		logger = logger.With().Int64("client_id", event.ClientID).Logger()
	}
	if event.OperatorID != 0 {
		logger = logger.With().Int64("operator_id", event.OperatorID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")

	if fn := sink.Load(); fn != nil {
		(*fn)(ctx, event)
	}
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = clientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

func clientIP(r *http.Request) string {
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	return r.RemoteAddr
}
