package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/lawgate/consult-server-go/internal/audit"
	"github.com/lawgate/consult-server-go/internal/util"
)

// TelegramSecretHeader carries the secret_token registered with setWebhook.
const TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type WebhookSecretMiddleware struct {
	secret string
}

func NewWebhookSecretMiddleware(secret string) *WebhookSecretMiddleware {
	return &WebhookSecretMiddleware{secret: secret}
}

func (m *WebhookSecretMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secret == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get(TelegramSecretHeader)
		if token == "" || !util.ConstantTimeEqual(token, m.secret) {
			log.Warn().Bool("missing", token == "").Msg("webhook secret middleware: rejected update")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventWebhookAuthFailure,
				Details: map[string]interface{}{"missing": token == ""},
			})
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid webhook secret",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
