package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridianbank/core/internal/config"
	"github.com/meridianbank/core/internal/handler"
	"github.com/meridianbank/core/internal/logging"
	"github.com/meridianbank/core/internal/middleware"
	"github.com/meridianbank/core/internal/notify"
	"github.com/meridianbank/core/internal/repository"
	"github.com/meridianbank/core/internal/scheduler"
	"github.com/meridianbank/core/internal/service"
	"github.com/meridianbank/core/internal/service/transfer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("meridian-core", cfg.LogLevel, cfg.AppEnv)

	db, err := connectDB(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	accounts := repository.NewAccountRepository(db)
	transactions := repository.NewTransactionRepository(db)
	beneficiaries := repository.NewBeneficiaryRepository(db)
	instructions := repository.NewInstructionRepository(db)
	idempotency := repository.NewIdempotencyRepository(db)

	notifier, closeNotifier := buildNotifier(cfg, logger)
	defer closeNotifier()

	engine := transfer.NewService(accounts, transactions, beneficiaries, db, notifier,
		cfg.TransferTimeout, cfg.TransferMaxAttempts)
	beneficiarySvc := service.NewBeneficiaryService(beneficiaries, accounts,
		cfg.BeneficiaryCoolingPeriod, cfg.BeneficiaryDailyLimit)
	autopaySvc := service.NewAutoPayService(instructions, accounts, transactions, engine)

	sched := scheduler.New(beneficiarySvc, autopaySvc, idempotency, logger)
	if err := sched.Start(cfg.BeneficiarySweepSchedule, cfg.AutoPaySchedule); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	mux := routes(db, cfg, engine, accounts, transactions, beneficiarySvc, autopaySvc, idempotency)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	<-sched.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func routes(
	db *sql.DB,
	cfg *config.Config,
	engine *transfer.Service,
	accounts *repository.AccountRepository,
	transactions *repository.TransactionRepository,
	beneficiarySvc *service.BeneficiaryService,
	autopaySvc *service.AutoPayService,
	idempotency *repository.IdempotencyRepository,
) http.Handler {
	health := handler.NewHealthHandler(db)
	accountH := handler.NewAccountHandler(accounts, transactions)
	transferH := handler.NewTransferHandler(engine)
	beneficiaryH := handler.NewBeneficiaryHandler(beneficiarySvc)
	instructionH := handler.NewInstructionHandler(autopaySvc)

	authn := middleware.Auth(cfg.JWTSecret)
	idem := middleware.Idempotency(idempotency)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", health.Liveness)
	mux.HandleFunc("GET /health/ready", health.Readiness)

	mux.Handle("GET /api/v1/account", authn(http.HandlerFunc(accountH.Get)))
	mux.Handle("GET /api/v1/account/transactions", authn(http.HandlerFunc(accountH.Transactions)))

	mux.Handle("POST /api/v1/transfers", authn(idem(http.HandlerFunc(transferH.Create))))
	mux.Handle("POST /api/v1/deposits", authn(idem(http.HandlerFunc(transferH.Deposit))))

	mux.Handle("POST /api/v1/beneficiaries", authn(http.HandlerFunc(beneficiaryH.Create)))
	mux.Handle("GET /api/v1/beneficiaries", authn(http.HandlerFunc(beneficiaryH.List)))
	mux.Handle("GET /api/v1/beneficiaries/{id}/status", authn(http.HandlerFunc(beneficiaryH.Status)))

	mux.Handle("POST /api/v1/standing-instructions", authn(http.HandlerFunc(instructionH.Create)))
	mux.Handle("GET /api/v1/standing-instructions", authn(http.HandlerFunc(instructionH.List)))

	return middleware.Tracing(middleware.Logging(middleware.Recovery(mux)))
}

func buildNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, func()) {
	if cfg.AMQPURL == "" {
		return notify.NewLogNotifier(logger), func() {}
	}

	n, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.NotifyExchange, logger)
	if err != nil {
		slog.Warn("amqp unavailable, falling back to log notifier", "error", err)
		return notify.NewLogNotifier(logger), func() {}
	}
	return n, n.Close
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}

	var lastErr error
	for i := range 30 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, pool)
		cancel()
		if err == nil {
			return db, nil
		}
		lastErr = err
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", lastErr)
}
