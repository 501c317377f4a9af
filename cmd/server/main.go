// Package main is the entry point for the auto-invest core service. It owns
// recurring investment schedules, investment policy statements, life events,
// and funding account linkage, with idempotent command execution throughout.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bluum-finance/autoinvest/internal/config"
	"github.com/bluum-finance/autoinvest/internal/database"
	"github.com/bluum-finance/autoinvest/internal/maintenance"
	"github.com/bluum-finance/autoinvest/internal/modules/accounts"
	"github.com/bluum-finance/autoinvest/internal/modules/idempotency"
	"github.com/bluum-finance/autoinvest/internal/modules/lifeevents"
	"github.com/bluum-finance/autoinvest/internal/modules/policy"
	"github.com/bluum-finance/autoinvest/internal/modules/schedules"
	"github.com/bluum-finance/autoinvest/internal/orchestrator"
	"github.com/bluum-finance/autoinvest/internal/server"
	"github.com/bluum-finance/autoinvest/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting auto-invest core")

	// The ledger profile runs synchronous=FULL: entity writes and idempotency
	// records commit in the same transaction and must survive power loss.
	coreDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "core.db"),
		Profile: database.ProfileLedger,
		Name:    "core",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open core database")
	}
	defer coreDB.Close()

	if err := coreDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate core database")
	}
	log.Info().Str("path", coreDB.Path()).Msg("Core database ready")

	scheduleRepo := schedules.NewRepository(coreDB.Conn(), log)
	policyRepo := policy.NewRepository(coreDB.Conn(), log)
	eventRepo := lifeevents.NewRepository(coreDB.Conn(), log)
	accountRepo := accounts.NewRepository(coreDB.Conn(), log)
	ledger := idempotency.NewLedger(coreDB.Conn(), log)

	orch := orchestrator.New(coreDB, scheduleRepo, policyRepo, eventRepo, accountRepo, ledger, log)

	sched := maintenance.New(log)
	purgeJob := maintenance.NewLedgerPurgeJob(ledger)
	if err := sched.AddJob("@hourly", purgeJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register ledger purge job")
	}
	if err := sched.AddJob("@daily", maintenance.NewWALCheckpointJob(coreDB)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register WAL checkpoint job")
	}

	// Records that expired while the service was down are purged before the
	// first command runs
	if err := sched.RunNow(purgeJob); err != nil {
		log.Warn().Err(err).Msg("Startup ledger purge failed")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:          log,
		CoreDB:       coreDB,
		Config:       cfg,
		Orchestrator: orch,
		ScheduleRepo: scheduleRepo,
		PolicyRepo:   policyRepo,
		EventRepo:    eventRepo,
		AccountRepo:  accountRepo,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Leave the WAL small for the next startup
	if err := coreDB.WALCheckpoint("TRUNCATE"); err != nil {
		log.Warn().Err(err).Msg("Final WAL checkpoint failed")
	}

	log.Info().Msg("Server stopped")
}
