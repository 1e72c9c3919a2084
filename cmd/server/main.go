package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/handypro/marketplace-server/internal/cache"
	"github.com/handypro/marketplace-server/internal/config"
	"github.com/handypro/marketplace-server/internal/database"
	"github.com/handypro/marketplace-server/internal/handler"
	"github.com/handypro/marketplace-server/internal/httputil"
	"github.com/handypro/marketplace-server/internal/jobs"
	"github.com/handypro/marketplace-server/internal/middleware"
	"github.com/handypro/marketplace-server/internal/notify"
	"github.com/handypro/marketplace-server/internal/payment"
	"github.com/handypro/marketplace-server/internal/redis"
	"github.com/handypro/marketplace-server/internal/repository"
	"github.com/handypro/marketplace-server/internal/service"
	"github.com/handypro/marketplace-server/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := cfg.IsProduction()
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	httputil.ExposeUnknownErrors(!isProduction)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    config.DBMaxOpenConns,
		MaxIdleConns:    config.DBMaxIdleConns,
		ConnMaxLifetime: config.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
	if err := db.Ping(pingCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	redisCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
	redisClient, err := redis.NewClient(redisCtx, cfg.RedisURL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	offerRepo := repository.NewOfferRepository(db.DB)
	convRepo := repository.NewConversationRepository(db.DB)
	profileRepo := repository.NewProfileRepository(db.DB)
	requestRepo := repository.NewRequestRepository(db.DB)
	agreementRepo := repository.NewAgreementRepository(db.DB)
	calendarRepo := repository.NewCalendarRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	disputeRepo := repository.NewDisputeRepository(db)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	views := cache.NewViewCache(redisClient, cfg.ViewCacheTTL())
	timeline := service.NewTimeline(messageRepo, notify.NewChatNotifier(convRepo, broker))

	var emailSender notify.EmailSender = notify.LogSender{}
	if cfg.ResendAPIKey != "" {
		emailSender = notify.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom)
	}

	// A nil gateway makes payment operations fail with SERVER_MISCONFIGURED.
	var gateway payment.Gateway
	if cfg.PaymentsConfigured() {
		gateway = payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	}

	acceptanceService := service.NewAcceptanceService(service.AcceptanceDeps{
		Offers:        offerRepo,
		Conversations: convRepo,
		Profiles:      profileRepo,
		Gateway:       gateway,
		Timeline:      timeline,
		Views:         views,
		Mode:          service.AcceptMode(cfg.OfferAcceptMode),
		PublicBaseURL: cfg.PublicBaseURL,
	})
	offerService := service.NewOfferService(offerRepo, convRepo, timeline, views, cfg.DefaultCurrency)
	finalizer := service.NewPaymentFinalizer(service.FinalizerDeps{
		Offers:        offerRepo,
		Agreements:    agreementRepo,
		Requests:      requestRepo,
		Conversations: convRepo,
		Calendar:      calendarRepo,
		Profiles:      profileRepo,
		Timeline:      timeline,
		Email:         emailSender,
		Views:         views,
		PublicBaseURL: cfg.PublicBaseURL,
	})
	paymentSyncService := service.NewPaymentSyncService(service.PaymentSyncDeps{
		Offers:     offerRepo,
		Gateway:    gateway,
		Finalizer:  finalizer,
		Views:      views,
		StaleAfter: cfg.ReconcileStaleAfter(),
	})
	disputeService := service.NewDisputeService(disputeRepo, offerRepo, profileRepo, timeline, views)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret, cfg.JWTAudience)
	userRateLimit := middleware.NewRateLimitMiddleware(
		service.NewRateLimiter(redisClient.Client, service.FailOpen),
		"api", config.DefaultRateLimitPerMin, time.Minute, middleware.ByUser,
	)
	webhookRateLimit := middleware.NewRateLimitMiddleware(
		service.NewRateLimiter(redisClient.Client, service.FailClosed),
		"webhook", config.WebhookRateLimitPerMin, time.Minute, middleware.ByIP,
	)
	cronAuthMiddleware := middleware.NewCronAuthMiddleware(cfg.CronSecretHash)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	webhookBodyLimit := middleware.NewBodyLimitMiddleware(middleware.WebhookMaxBodySize)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	offerHandler := handler.NewOfferHandler(acceptanceService, offerService)
	paymentHandler := handler.NewPaymentHandler(paymentSyncService)
	disputeHandler := handler.NewDisputeHandler(disputeService)
	eventsHandler := handler.NewEventsHandler(broker)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		if err := db.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Msg("health check: database unreachable")
			status, code = "degraded", http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, map[string]any{
			"status":    status,
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(webhookRateLimit.Handler)
			r.Use(webhookBodyLimit.Handler)
			r.Post("/webhooks/stripe", paymentHandler.Webhook)
		})

		r.With(bodyLimitMiddleware.Handler, chimiddleware.Timeout(config.ServerRequestTimeout)).
			Get("/billing/quote", handler.BillingQuote)

		r.Group(func(r chi.Router) {
			r.Use(bodyLimitMiddleware.Handler)
			r.Use(authMiddleware.Handler)
			r.Use(userRateLimit.Handler)

			// Streams are long lived and stay outside the request timeout.
			r.Get("/events", eventsHandler.ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
				offerHandler.Routes(r)
				paymentHandler.Routes(r)
				disputeHandler.Routes(r)
				r.Post("/classify", handler.Classify)
			})
		})
	})

	r.Route("/internal/cron", func(r chi.Router) {
		r.Use(cronAuthMiddleware.Handler)
		r.Use(chimiddleware.Timeout(config.ReconcileTimeout))
		r.Post("/reconcile-payments", paymentHandler.Reconcile)
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	reconcileJob := jobs.NewReconcileJob(paymentSyncService, cfg.ReconcileInterval(), config.ReconcileTimeout)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if gateway == nil {
			log.Warn().Msg("payments not configured, reconcile job disabled")
			return nil
		}
		reconcileJob.Start()
		<-gctx.Done()
		reconcileJob.Stop()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("server stopped")
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
