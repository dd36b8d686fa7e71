package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"chatledger/internal/app"
	"chatledger/pkg/config"
	"chatledger/pkg/logger"
)

// build metadata - set via ldflags during build/release
var (
	version = "dev"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Explicit flags win over env/config.
	if setFlags["addr"] {
		host, port, ok := config.SplitAddr(addrVal)
		if !ok {
			log.Fatalf("invalid -addr value: %s", addrVal)
		}
		cfg.Server.Address = host
		cfg.Server.Port = port
	}
	if setFlags["db"] {
		cfg.Server.DBPath = dbVal
	}

	logger.Init(cfg.Logging.Level)

	a, err := app.New(cfg, version)
	if err != nil {
		logger.Error("startup_failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close_failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error("server_failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown_complete")
}
