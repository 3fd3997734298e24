package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/config"
	"github.com/AlenaMolokova/receiptbank/internal/logger"
	"github.com/AlenaMolokova/receiptbank/internal/payout"
	"github.com/AlenaMolokova/receiptbank/internal/pricing"
	"github.com/AlenaMolokova/receiptbank/internal/router"
	"github.com/AlenaMolokova/receiptbank/internal/storage"
	"github.com/AlenaMolokova/receiptbank/internal/storage/memory"
	"github.com/AlenaMolokova/receiptbank/internal/usecase"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.NewConfig(os.Args[1:])
	if err != nil {
		bootLog := logger.New(true)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.LogPretty)
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && level != zerolog.NoLevel {
		log = log.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("receiptbank stopped with error")
	}
	log.Info().Msg("receiptbank stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, closeStore, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	policy, err := pricing.NewPolicy(cfg.RuleSet())
	if err != nil {
		return err
	}
	ledgerCfg, err := cfg.LedgerConfig()
	if err != nil {
		return err
	}

	var executor usecase.PayoutExecutor
	if cfg.PayoutAddr != "" {
		executor = payout.NewClient(cfg.PayoutAddr)
		log.Info().Str("address", cfg.PayoutAddr).Msg("using payout provider")
	} else {
		executor = payout.NewManual(log)
		log.Warn().Msg("PAYOUT_SYSTEM_ADDRESS not set, payouts are settled manually")
	}

	ledger, err := usecase.NewLedger(store, policy, executor, ledgerCfg, log)
	if err != nil {
		return err
	}
	reconciler := usecase.NewReconciler(ledger, cfg.SweepInterval)

	if cfg.CallbackSecret == "" {
		log.Warn().Msg("PAYOUT_CALLBACK_SECRET not set, payout callbacks will be refused")
	}
	if cfg.UsesDefaultSecret() {
		log.Warn().Msg("JWT_SECRET not set, using the development secret")
	}
	srv := &http.Server{
		Addr: cfg.RunAddr,
		Handler: router.SetupRoutes(ledger, router.Options{
			JWTSecret:      cfg.JWTSecret,
			CallbackSecret: cfg.CallbackSecret,
		}, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("address", cfg.RunAddr).Msg("starting receiptbank server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return reconciler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.Storage, func(), error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return memory.New(), func() {}, nil
	}

	if err := storage.ApplyMigrations(cfg.DatabaseURI); err != nil {
		return nil, nil, err
	}
	log.Info().Msg("database migrations applied successfully")

	pool, err := pgxpool.New(ctx, cfg.DatabaseURI)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewPostgres(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := store.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}
