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
	"chronik.fyi/monitor/internal/extract"
	"chronik.fyi/monitor/internal/fetch"
	"chronik.fyi/monitor/internal/gate"
	"chronik.fyi/monitor/internal/incident"
	"chronik.fyi/monitor/internal/llm"
	"chronik.fyi/monitor/internal/logging"
)

func runExtract(args []string) int {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	articleURL := fs.String("url", "", "Article URL to fetch and extract")
	runGate := fs.Bool("gate", false, "Also run the criteria-gated extraction on the body text")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *articleURL == "" {
		fmt.Fprintln(os.Stderr, "--url is required")
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

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fetcher := fetch.New(fetch.Options{Timeout: cfg.FetchTimeout, BodyByteLimit: cfg.FetchBodyByteLimit})
	rawDocument, err := fetcher.Fetch(ctx, *articleURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
		return 1
	}

	bodyText, strategy, err := extract.DefaultRegistry().Extract(*articleURL, rawDocument)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Extraction failed: %v\n", err)
		return 1
	}

	fmt.Printf("strategy=%s chars=%d\n\n", strategy, len(bodyText))
	fmt.Println(bodyText)

	if !*runGate {
		return 0
	}

	if err := cfg.RequireOpenAI(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	oracle := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.City, cfg.CutoffDate, logger)
	extractor := gate.New(oracle, cfg.Cutoff(), logger)

	candidate, err := extractor.Extract(ctx, bodyText, incident.SourceCitation{
		URL:  *articleURL,
		Name: "manual_cli",
		Date: time.Now().UTC().Format(incident.DateLayout),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Criteria gate failed: %v\n", err)
		return 1
	}
	if candidate == nil {
		fmt.Println("\nno qualifying incident")
		return 0
	}

	fmt.Printf("\ndate=%s type=%s status=%s\nlocation=%s\ndescription=%s\n",
		candidate.Date, candidate.Type, candidate.Status, candidate.Location, candidate.Description)
	return 0
}
