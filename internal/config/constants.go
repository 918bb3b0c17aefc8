package config

import "time"

// Database connection settings
const (
	DBMaxRetries     = 3
	DBRetryDelay     = 2 * time.Second
	DBConnectTimeout = 10 * time.Second
	DBKeepAliveIdle  = 30 * time.Second
	DBPingTimeout    = 5 * time.Second
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Outbound API calls
const (
	TelegramAPITimeout = 10 * time.Second
	PaymentAPITimeout  = 15 * time.Second
)

// Conversation state kept in redis
const (
	AwaitingEmailTTL = 15 * time.Minute
	ContactBookTTL   = 30 * 24 * time.Hour
)

// Background job intervals
const (
	DefaultPaymentPollInterval = time.Minute
	PaymentPollMinAge          = 30 * time.Second
	PaymentPollBatchSize       = 50
)

const DefaultCodeWord = "ЮРИСТ2024"

// Purchase throttling per client
const (
	PurchaseLimit       = 5
	PurchaseLimitWindow = 10 * time.Minute
)

// Request body limits
const (
	MaxWebhookBodySize  = 1 << 20
	MaxOperatorBodySize = 16 << 10
)
