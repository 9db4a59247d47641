package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"policybot/internal/api"
	"policybot/internal/app"
	"policybot/internal/index"
	"policybot/internal/logging"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file")
	flag.Parse()

	cfg, cfgPath, err := app.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := app.NewService(ctx, cfg, log)
	if err != nil {
		log.Error("setup failed", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	if err := svc.Open(ctx); err != nil {
		if !errors.Is(err, index.ErrIndexNotFound) {
			log.Error("open index", "error", err)
			os.Exit(1)
		}
		log.Warn("no index yet; POST /api/admin/reindex to build it", "dir", cfg.IndexDir)
	}

	adminToken := os.Getenv(cfg.Server.AdminTokenEnv)
	if adminToken == "" {
		log.Warn("admin token not set; re-index endpoint disabled", "env", cfg.Server.AdminTokenEnv)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewServer(svc, adminToken, log),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		cancel()
	}()

	log.Info("starting policybot server", "port", cfg.Server.Port, "config", cfgPath)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
