package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"chronik.fyi/monitor/internal/cli"
	"chronik.fyi/monitor/internal/config"
	"chronik.fyi/monitor/internal/feeds"
	"chronik.fyi/monitor/internal/incident"
	"chronik.fyi/monitor/internal/store"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	led, err := incident.Load(cfg.LedgerPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ledger check failed: %v\n", err)
		return 1
	}

	sources, err := feeds.LoadSources(cfg.SourcesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sources check failed: %v\n", err)
		return 1
	}

	if cfg.StateDBPath != "" {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()

		st, err := store.Open(ctx, cfg.StateDBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "State database check failed: %v\n", err)
			return 1
		}
		_ = st.Close()
	}

	openai := "configured"
	if err := cfg.RequireOpenAI(); err != nil {
		openai = "missing"
	}
	proposal := "configured"
	if !cfg.ProposalConfigured() {
		proposal = "missing"
	}

	fmt.Printf("ok incidents=%d sources=%d openai=%s proposal=%s\n",
		len(led.Incidents), len(sources), openai, proposal)
	return 0
}
