package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lawgate/consult-server-go/internal/audit"
	"github.com/lawgate/consult-server-go/internal/config"
	"github.com/lawgate/consult-server-go/internal/database"
	"github.com/lawgate/consult-server-go/internal/handler"
	"github.com/lawgate/consult-server-go/internal/jobs"
	"github.com/lawgate/consult-server-go/internal/metrics"
	"github.com/lawgate/consult-server-go/internal/middleware"
	"github.com/lawgate/consult-server-go/internal/redis"
	"github.com/lawgate/consult-server-go/internal/repository"
	"github.com/lawgate/consult-server-go/internal/service"
	"github.com/lawgate/consult-server-go/internal/session"
	"github.com/lawgate/consult-server-go/internal/sse"
	"github.com/lawgate/consult-server-go/internal/telegram"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := database.NewStore(database.PostgresOpener(database.ConnConfigFrom(cfg)), database.DefaultOptions())
	defer store.Close()

	// A database outage at boot degrades the service instead of stopping it;
	// every operation reconnects through the store.
	if err := store.Connect(ctx); err != nil {
		log.Error().Err(err).Msg("database unavailable at startup, continuing degraded")
	} else if err := store.Migrate(ctx); err != nil {
		log.Error().Err(err).Msg("schema migration failed")
	} else {
		log.Info().Msg("database connected")
	}

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	broker := sse.NewBroker(redisClient.Client)
	defer broker.Close()
	audit.SetSink(broker.Forward)

	clientRepo := repository.NewClientRepository(store)
	ledger := repository.NewConsultationRepository(store)

	bot := telegram.NewBotClient(cfg.BotToken)
	contactBook := service.NewContactBook(redisClient.Client)
	conversations := service.NewConversationState(redisClient.Client)
	limiter := service.NewPurchaseLimiter(redisClient.Client, config.PurchaseLimit, config.PurchaseLimitWindow)

	var provider service.PaymentProvider
	if cfg.PaymentsConfigured() {
		provider = service.NewYooKassaClient(cfg.YooKassaShopID, cfg.YooKassaSecretKey, cfg.PaymentReturnURL)
	}

	authService := service.NewAuthorizationService(ledger, contactBook, cfg.CodeWord)
	paymentService := service.NewPaymentService(provider, ledger, clientRepo, bot, limiter, service.PaymentServiceConfig{
		CodeWord:      cfg.CodeWord,
		LawyerChatID:  cfg.LawyerChatID,
		LawyerContact: cfg.LawyerContact,
	})

	sessionCfg := session.Config{
		AppID:   cfg.TelegramAPIID,
		AppHash: cfg.TelegramAPIHash,
		Phone:   cfg.TelegramPhone,
	}
	operatorEnabled := cfg.LawyerClientEnabled && sessionCfg.Configured()
	if !cfg.LawyerClientEnabled {
		sessionCfg = session.Config{}
	}
	sessionStorage := session.NewFileStorage(cfg.SessionFile, cfg.EncryptionKey)
	sessionManager := session.NewManager(sessionCfg, sessionStorage, consolePrompter())

	webhookSecret := middleware.NewWebhookSecretMiddleware(cfg.WebhookSecret)
	webhookBodyLimit := middleware.NewBodyLimitMiddleware(config.MaxWebhookBodySize)
	operatorBodyLimit := middleware.NewBodyLimitMiddleware(config.MaxOperatorBodySize)
	operatorAuth := middleware.NewOperatorAuthMiddleware(cfg.OperatorPasswordHash)
	securityHeaders := middleware.NewAPISecurityHeaders(os.Getenv("FLY_APP_NAME") != "")

	telegramHandler := handler.NewTelegramHandler(
		bot, authService, paymentService, clientRepo, conversations, contactBook,
		handler.TelegramHandlerConfig{
			LawyerIDs:     cfg.LawyerIDs(),
			LawyerContact: cfg.LawyerContact,
		},
	)
	operatorHandler := handler.NewOperatorHandler(authService, contactBook, operatorAuth.Handler)
	healthHandler := handler.NewHealthHandler(store, sessionManager)
	eventsHandler := handler.NewEventsHandler(broker)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	// The feed stream is long-lived and stays outside the request timeout.
	r.With(securityHeaders.Handler, operatorAuth.Handler).Get("/operator/events", eventsHandler.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

		r.Get("/health", healthHandler.Health)
		r.Handle("/metrics", metrics.Handler())

		r.Route("/telegram", func(r chi.Router) {
			r.Use(webhookBodyLimit.Handler)
			r.Use(webhookSecret.Handler)
			r.Post("/webhook", telegramHandler.Webhook)
		})

		r.Route("/operator", func(r chi.Router) {
			r.Use(securityHeaders.Handler)
			r.Use(operatorBodyLimit.Handler)
			r.Mount("/", operatorHandler.Routes())
		})
	})

	poller := jobs.NewPaymentPoller(paymentService, bot, cfg.LawyerContact, cfg.PaymentPollInterval())
	if paymentService.Enabled() {
		poller.Start()
		defer poller.Stop()
	}

	var wg sync.WaitGroup
	if operatorEnabled {
		listener := session.NewListener(authService, contactBook)
		operator := session.NewOperatorClient(sessionCfg, sessionStorage, listener)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := operator.Run(ctx, sessionManager)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Str("state", sessionManager.StateName()).
					Msg("operator identity stopped; verification continues through /check")
			}
		}()
	} else {
		// An unconfigured manager settles on unavailable without a client.
		_, _ = sessionManager.Establish(ctx, nil)
		log.Info().Str("state", sessionManager.StateName()).Msg("operator identity disabled; verification through /check")
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	wg.Wait()

	log.Info().Msg("server stopped")
}

// consolePrompter returns a stdin prompter when a terminal is attached.
// Without one a needed login leaves the operator identity degraded.
func consolePrompter() session.Prompter {
	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return nil
	}
	return session.NewConsolePrompter(os.Stdin, os.Stderr)
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
