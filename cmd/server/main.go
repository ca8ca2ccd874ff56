package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bases-server/internal/base"
	"bases-server/internal/claim"
	"bases-server/internal/ledger"
	"bases-server/internal/middleware"
	"bases-server/internal/movement"
	"bases-server/internal/server"
	"bases-server/internal/shared/config"
	"bases-server/internal/shared/database"
	"bases-server/internal/shared/logger"
	sharedredis "bases-server/internal/shared/redis"
	"bases-server/internal/spawn"
	"bases-server/internal/template"
	"bases-server/internal/upgrade"
)

func main() {
	if err := config.Init(); err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Init()
	log := slog.With("component", "main")

	db, err := database.Connect()
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}()

	if err := db.RunMigrations(); err != nil {
		log.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisClient, err := sharedredis.Connect()
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis client", "error", err)
		}
	}()

	gameCfg := config.GlobalConfig.Game

	templateRepo := template.NewRepository(db, slog.Default())
	claimRepo := claim.NewRepository(db, slog.Default())
	baseRepo := base.NewRepository(db, claimRepo, slog.Default())
	upgradeRepo := upgrade.NewRepository(db, baseRepo, slog.Default())
	spawnRepo := spawn.NewRepository(db, slog.Default())
	spawnHolds := spawn.NewRedisHolds(redisClient, slog.Default())

	goldLedger := ledger.NewNoopLedger(slog.Default())

	spawnService := spawn.NewService(spawnRepo, spawnHolds, gameCfg, slog.Default())
	baseService := base.NewService(baseRepo, templateRepo, spawnService, gameCfg, slog.Default())
	upgradeService := upgrade.NewService(upgradeRepo, baseRepo, templateRepo, goldLedger, slog.Default())
	movementService := movement.NewService(baseRepo, goldLedger, gameCfg, slog.Default())

	routes := server.NewRoutes(db, redisClient, baseService, upgradeService, movementService, spawnService, templateRepo, slog.Default())
	mux := routes.Setup()

	// Expired in-transit claims are stealable in place, but sweep them anyway
	// so the claim table does not accumulate dead rows.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if _, err := claimRepo.PurgeExpired(sweepCtx); err != nil {
					log.Warn("Failed to purge expired claims", "error", err)
				}
			}
		}
	}()

	rateLimiter := middleware.NewRateLimiter(config.GlobalConfig.RateLimit)
	corsMiddleware := middleware.NewCORS()

	handler := corsMiddleware.Middleware(rateLimiter.Middleware(mux))

	srv := &http.Server{
		Addr:         ":" + config.GlobalConfig.Server.Port,
		Handler:      handler,
		ReadTimeout:  config.GlobalConfig.Server.ReadTimeout,
		WriteTimeout: config.GlobalConfig.Server.WriteTimeout,
		IdleTimeout:  config.GlobalConfig.Server.IdleTimeout,
	}

	go func() {
		log.Info("Server starting",
			"port", config.GlobalConfig.Server.Port,
			"environment", config.GlobalConfig.Server.Environment,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped")
}
