package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"policybot/internal/app"
	"policybot/internal/index"
	"policybot/internal/logging"
	"policybot/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/policybot/config.yaml)")
	flag.Parse()

	cfg, cfgPath, err := app.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// The terminal belongs to the UI; logs go to a file.
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = "policybot.log"
	}
	f, err := tea.LogToFile(logFile, "policybot")
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	log := logging.New(cfg.Log, f)
	log.Info("starting policybot", "config", cfgPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := app.NewService(ctx, cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer svc.Close()

	if err := svc.Open(ctx); err != nil {
		if !errors.Is(err, index.ErrIndexNotFound) {
			fmt.Fprintf(os.Stderr, "open index: %v\n", err)
			os.Exit(1)
		}
		log.Warn("no index yet", "dir", cfg.IndexDir)
	}

	if _, err := tea.NewProgram(tui.New(ctx, svc), tea.WithAltScreen()).Run(); err != nil {
		log.Error("tui exited", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
