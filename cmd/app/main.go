// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookstore-payments/internal/config"
	"bookstore-payments/internal/domain/ports/adapter"
	"bookstore-payments/internal/infra/api"
	pg "bookstore-payments/internal/infra/db/postgres"
	"bookstore-payments/internal/infra/logging"
	"bookstore-payments/internal/infra/mailer"
	"bookstore-payments/internal/infra/metrics"
	red "bookstore-payments/internal/infra/redis"
	"bookstore-payments/internal/infra/sched"
	"bookstore-payments/internal/infra/security"
	"bookstore-payments/internal/infra/storage"
	tele "bookstore-payments/internal/infra/telegram"
	"bookstore-payments/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop bot/mailer fallbacks)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Receipt storage ----
	signer, err := security.NewSigner(cfg.Storage.SigningKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("url signer")
	}
	receiptStore, err := storage.NewDiskReceiptStore(cfg.Storage, signer, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("receipt store")
	}

	// ---- Repositories ----
	purchaseRepo := pg.NewPurchaseRepo(pool)
	submissionRepo := pg.NewSubmissionRepo(pool)
	libraryRepo := pg.NewLibraryRepo(pool)
	profileRepo := pg.NewProfileRepo(pool)
	requestRepo := pg.NewPaymentRequestRepo(pool)
	itemRepo := pg.NewItemRepoCacheDecorator(pg.NewItemRepo(pool), redisClient, cfg.Redis.TTL)
	txManager := pg.NewTxManager(pool)

	// ---- Outbound adapters ----
	var mail adapter.Mailer = mailer.NewSMTPMailer(cfg.SMTP, logger)
	if cfg.SMTP.Host == "" {
		logger.Warn().Msg("no smtp host; confirmation mail disabled")
		mail = mailer.NewNoopMailer(logger)
	}
	notifier := tele.NewAdminNotifier(cfg.Bot.AdminIDs, logger)

	// ---- Use cases ----
	fulfillmentUC := usecase.NewFulfillmentUseCase(
		libraryRepo, itemRepo, profileRepo, mail, txManager, logger)
	purchaseUC := usecase.NewPurchaseUseCase(
		purchaseRepo, submissionRepo, itemRepo, fulfillmentUC, notifier,
		cfg.Payment.Currency, cfg.Payment.ReferencePrefix, logger)
	adminUC := usecase.NewAdminUseCase(purchaseUC, purchaseRepo, logger)
	requestUC := usecase.NewPaymentRequestUseCase(requestRepo, itemRepo, fulfillmentUC, notifier, logger)
	libraryUC := usecase.NewLibraryUseCase(libraryRepo, itemRepo, logger)

	// ---- Telegram ----
	if cfg.Bot.Token != "" {
		bot, err := tele.NewBot(&cfg.Bot, purchaseUC, receiptStore, redisClient, rateLimiter, cfg.Payment.Instructions, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram bot")
		}
		notifier.Bind(bot)
		go func() {
			if err := bot.StartPolling(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	} else if cfg.Runtime.Dev {
		notifier.Bind(tele.NewNoopBotAdapter(logger))
		logger.Warn().Msg("no bot token; using noop telegram adapter")
	} else {
		logger.Fatal().Msg("bot.token is required outside dev mode")
	}

	// ---- HTTP server ----
	guard := api.NewGuard(cfg.Auth.JWTSecret, cfg.Bot.SharedSecret, profileRepo, logger)
	server := api.NewServer(purchaseUC, adminUC, requestUC, libraryUC, guard, receiptStore, cfg.Payment.Instructions, logger)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Pending-review gauge (minutely) ----
	gauge := sched.NewReviewGaugeWorker(time.Minute, purchaseRepo, logger)
	go func() { _ = gauge.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
