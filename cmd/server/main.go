package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/logger"
	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/server"
)

func main() {
	var port, dataDir, logMode, logLevel string
	flag.StringVar(&port, "port", "", "Server port (overrides env PORT)")
	flag.StringVar(&dataDir, "data", "", "Data directory (overrides env DATA_DIR)")
	flag.StringVar(&logMode, "log-mode", "dev", "Log format: dev or prod")
	flag.StringVar(&logLevel, "log-level", "info", "Log level")
	flag.Parse()

	zlog, err := logger.New(logMode, logLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync()

	cfg := server.LoadConfig()
	if port != "" {
		cfg.Port = port
		if port[0] != ':' {
			cfg.Port = ":" + port
		}
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to init server", "error", err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zlog.Error("shutdown failed", "error", err)
		}
	}()

	if err := srv.Start(); err != nil {
		zlog.Fatal("server failed", "error", err)
	}
}
