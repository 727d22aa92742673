package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/config"
	"github.com/aiaimg/taxcollecotr-sub000/internal/infra"
	"github.com/aiaimg/taxcollecotr-sub000/internal/middleware"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"
	"github.com/aiaimg/taxcollecotr-sub000/internal/router"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"
	"github.com/aiaimg/taxcollecotr-sub000/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid APP_TIMEZONE")
	}

	if err := infra.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	cipher, err := infra.NewFieldCipher(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise audit cipher")
	}
	if cfg.AuditCipher == config.CipherNone {
		log.Warn().Msg("AUDIT_CIPHER=none: sensitive audit fields are stored in clear text")
	}

	// ── Infrastructure ───────────────────────────────────────────────────────
	taxClient := infra.NewTaxClient(
		cfg.TaxServiceURL,
		time.Duration(cfg.TaxRequestTimeoutMS)*time.Millisecond,
		infra.NewBreaker(infra.TaxServiceBreakerSettings()),
		rdb,
		time.Duration(cfg.TaxCacheTTLMinutes)*time.Minute,
	)
	broker := worker.NewRedisBroker(rdb)
	dispatcher := worker.NewDispatcher(broker)
	configBus := infra.NewRedisConfigBus(rdb)

	// A typed nil *infra.Mailer would not compare equal to nil inside the workers.
	var mailer worker.Mailer
	var notifier service.NotificationDispatcher
	if m := infra.NewMailer(cfg); m.Configured() {
		mailer = m
		notifier = dispatcher
	} else {
		log.Warn().Msg("SMTP_HOST not set: email notifications disabled")
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	tx := repository.NewTransactor(db)
	users := repository.NewUserRepository(db)
	vehicles := repository.NewVehicleRepository(db)
	payments := repository.NewTaxPaymentRepository(db)
	artifacts := repository.NewVerificationArtifactRepository(db)
	sessions := repository.NewCashSessionRepository(db)
	txns := repository.NewCashTransactionRepository(db)
	commissions := repository.NewCommissionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	configRepo := repository.NewSystemConfigRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	clock := service.SystemClock()
	auditSvc := service.NewAuditService(auditRepo, cipher, clock)
	configSvc := service.NewSystemConfigService(tx, configRepo, auditSvc, cfg.CashDefaults(), configBus)
	commissionSvc := service.NewCommissionService(tx, commissions, sessions, users, configSvc, auditSvc, clock, loc)
	successSvc := service.NewPaymentSuccessService(tx, payments, artifacts, notifier, dispatcher, clock)
	svcs := router.Services{
		Auth:       service.NewAuthService(users, cfg),
		Audit:      auditSvc,
		Config:     configSvc,
		Commission: commissionSvc,
		Sessions:   service.NewCashSessionService(tx, sessions, txns, configSvc, auditSvc, notifier, clock),
		Payments: service.NewCashPaymentService(tx, service.PaymentRepos{
			Sessions:     sessions,
			Transactions: txns,
			Payments:     payments,
			Vehicles:     vehicles,
			Users:        users,
			Artifacts:    artifacts,
		}, commissionSvc, configSvc, auditSvc, taxClient, successSvc, notifier, clock),
		Gateway:        service.NewGatewayPaymentService(tx, payments, vehicles, auditSvc, successSvc),
		Reconciliation: service.NewReconciliationService(tx, sessions, txns, configSvc, auditSvc, clock, loc),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Background work ──────────────────────────────────────────────────────
	pool := worker.NewPool(broker, cfg.MaxJobAttempts)
	pool.Register(worker.QueueReceipt, worker.NewReceiptWorker(artifacts, payments, vehicles, users, mailer, cfg.ReceiptStoragePath, cfg.VerifyBaseURL))
	if mailer != nil {
		pool.Register(worker.QueueNotification, worker.NewNotificationWorker(users, mailer))
	}
	pool.Start(ctx, cfg.WorkerPoolSize)

	go func() {
		if err := configBus.Listen(ctx, configSvc.InvalidateCache, nil); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("config bus stopped; replicas refresh config on cache expiry")
		}
	}()

	var scheduler *worker.Scheduler
	if cfg.SchedulerEnabled {
		scheduler = worker.NewScheduler(worker.SchedulerConfig{
			Reconciliation:      svcs.Reconciliation,
			Sessions:            svcs.Sessions,
			Audit:               auditSvc,
			Completion:          successSvc,
			Users:               users,
			Notifier:            notifier,
			Locker:              worker.NewRedisLock(rdb),
			ReminderSpec:        cfg.ReminderCron,
			AuditVerifySpec:     cfg.AuditVerifyCron,
			CompletionSpec:      cfg.CompletionCron,
			UnreconciledMaxDays: cfg.UnreconciledMaxDays,
		})
		if err := scheduler.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start scheduler")
		}
	}

	r := router.New(cfg, router.Deps{
		DB:          db,
		Redis:       rdb,
		Tax:         taxClient,
		RateCounter: middleware.NewRedisCounter(rdb),
		Location:    loc,
	}, svcs)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("cash collection API listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()
	pool.Wait()
	log.Info().Msg("server exited")
}
