package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Tantawi65/khofogame/internal/config"
	"github.com/Tantawi65/khofogame/internal/game"
	"github.com/Tantawi65/khofogame/internal/game/rules"
	"github.com/Tantawi65/khofogame/internal/repository"
	"github.com/Tantawi65/khofogame/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting khofo game server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	managerOpts := []game.ManagerOption{game.WithOptions(cfg.GameOptions())}

	// Match history is optional
	if cfg.Database.Enabled() {
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)

		results := repository.NewResultRepository(db)
		if err := results.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to prepare schema", zap.Error(err))
		}
		managerOpts = append(managerOpts, game.WithRecorder(results))
	} else {
		logger.Info("database not configured; match results are not recorded")
	}

	bus := rules.NewEventBus()

	var replays *game.ReplayRecorder
	if cfg.Game.ReplayDir != "" {
		replays = game.NewReplayRecorder(logger, cfg.Game.ReplayDir)
		replays.Attach(bus)
		logger.Info("replay recording enabled", zap.String("directory", cfg.Game.ReplayDir))
	}

	matchMgr := game.NewManager(logger, bus, managerOpts...)
	logger.Info("match manager initialized",
		zap.Duration("reaction_window", cfg.Game.ReactionWindow),
		zap.Bool("choose_mummy_position", cfg.Game.ChooseMummyPosition),
	)

	hub := server.NewHub(cfg.Server.WebSocket, matchMgr, logger)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.WebSocket.Path, hub)
	httpServer := &http.Server{
		Addr:              cfg.Server.WebSocket.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start WebSocket server
	go func() {
		logger.Info("starting websocket server",
			zap.String("address", cfg.Server.WebSocket.Address),
			zap.String("path", cfg.Server.WebSocket.Path),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("websocket server error", zap.Error(err))
		}
	}()

	// Start gRPC health server
	healthServer := server.NewHealthServer(logger)
	lis, err := net.Listen("tcp", cfg.Server.Health.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}
	go func() {
		if err := healthServer.Serve(lis); err != nil {
			logger.Error("health server error", zap.Error(err))
		}
	}()

	logger.Info("khofo game server initialized",
		zap.String("version", version),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
		zap.String("health_address", cfg.Server.Health.Address),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	// Graceful shutdown
	logger.Info("shutting down gracefully...")
	healthServer.SetServing(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("websocket server shutdown", zap.Error(err))
	}

	hub.Stop()
	cancel()

	// Close all matches and wait for pending result writes
	matchMgr.Close()
	if replays != nil {
		replays.Close()
	}

	healthServer.Shutdown()

	logger.Info("khofo game server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
