package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"policybot/internal/app"
	"policybot/internal/logging"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath string
		dataDir string
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file")
	flag.StringVar(&dataDir, "data", "", "Override the policy documents folder")
	flag.Parse()

	cfg, cfgPath, err := app.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log, os.Stderr)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	// Ingestion never calls the model, so it must not need an API key.
	cfg.LLM.Type = "extractive"

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.NewService(ctx, cfg, log)
	if err != nil {
		log.Error("setup failed", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	log.Info("ingesting", "config", cfgPath, "data_dir", cfg.DataDir, "index_dir", cfg.IndexDir)
	st, err := svc.Reindex(ctx)
	if err != nil {
		log.Error("ingest failed", "error", err)
		os.Exit(1)
	}
	for _, name := range st.SectionNames() {
		log.Debug("section", "id", name, "chunks", st.Sections[name])
	}
	log.Info("vector database updated",
		"documents", st.Documents,
		"chunks", st.Chunks,
		"sections", len(st.Sections),
		"duration_ms", st.Duration.Milliseconds(),
	)
}
