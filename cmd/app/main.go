package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"briefly60-subscription/internal/config"
	"briefly60-subscription/internal/domain/ports/adapter"
	"briefly60-subscription/internal/infra/api"
	pg "briefly60-subscription/internal/infra/db/postgres"
	"briefly60-subscription/internal/infra/email"
	"briefly60-subscription/internal/infra/i18n"
	"briefly60-subscription/internal/infra/logging"
	"briefly60-subscription/internal/infra/metrics"
	"briefly60-subscription/internal/infra/payment"
	red "briefly60-subscription/internal/infra/redis"
	"briefly60-subscription/internal/infra/sched"
	"briefly60-subscription/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	if err := pg.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("schema apply failed")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	planRepo := pg.NewPlanRepoCacheDecorator(pg.NewPlanRepo(pool), redisClient)
	subRepo := pg.NewSubscriptionRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	outboxRepo := pg.NewOutboxRepo(pool)

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Runtime.Dev && cfg.Payment.SSLCommerz.StoreID == "" {
		logger.Warn().Msg("no gateway credentials; using noop gateway")
		gateway = payment.NewNoOpGateway()
	} else {
		gateway = payment.NewSSLCommerzGateway(
			cfg.Payment.SSLCommerz.StoreID,
			cfg.Payment.SSLCommerz.StorePassword,
			cfg.Payment.SSLCommerz.Live,
		)
	}

	// ---- Mailer ----
	var mailer adapter.Mailer
	if cfg.Email.PostmarkServerToken != "" {
		mailer, err = email.NewPostmarkMailer(cfg.Email.PostmarkServerToken, cfg.Email.PostmarkAccountToken, cfg.Email.From)
		if err != nil {
			logger.Fatal().Err(err).Msg("postmark setup failed")
		}
	} else {
		mailer = email.NewLogMailer(*logger)
	}

	// ---- i18n ----
	tr, err := i18n.NewBundle(i18n.LocalesFS, cfg.Language, "en", "bn")
	if err != nil {
		logger.Fatal().Err(err).Str("language", cfg.Language).Msg("translator setup failed")
	}

	// ---- Use cases ----
	planUC := usecase.NewPlanUseCase(planRepo, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, planRepo, outboxRepo, tm, logger)
	callbacks := usecase.CallbackURLs{
		Success: cfg.Frontend.APIBase + "/api/v1/payment/success",
		Fail:    cfg.Frontend.APIBase + "/api/v1/payment/fail",
		Cancel:  cfg.Frontend.APIBase + "/api/v1/payment/cancel",
		IPN:     cfg.Frontend.APIBase + "/api/v1/payment/ipn",
	}
	payUC := usecase.NewPaymentUseCase(subUC, subRepo, planRepo, userRepo, gateway, callbacks, logger)
	notifUC := usecase.NewNotificationUseCase(outboxRepo, userRepo, mailer, logger)

	// ---- HTTP ----
	authMgr := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	srv := api.NewServer(planUC, subUC, payUC, gateway, authMgr, rateLimiter, tr,
		cfg.Frontend.BaseURL, cfg.Payment.InitRateLimit, cfg.Payment.InitRateWindow, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Workers ----
	expiryWorker := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, cfg.Scheduler.ReminderWindowDays, subUC, logger)
	go func() { _ = expiryWorker.Run(ctx) }()

	notifWorker := sched.NewNotificationWorker(cfg.Scheduler.NotificationInterval, notifUC, logger)
	go func() { _ = notifWorker.Run(ctx) }()

	reconciler := sched.NewPaymentReconciler(payUC, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.PendingStaleAfter, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
