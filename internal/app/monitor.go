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
	"chronik.fyi/monitor/internal/dedup"
	"chronik.fyi/monitor/internal/extract"
	"chronik.fyi/monitor/internal/feeds"
	"chronik.fyi/monitor/internal/fetch"
	"chronik.fyi/monitor/internal/gate"
	"chronik.fyi/monitor/internal/incident"
	"chronik.fyi/monitor/internal/llm"
	"chronik.fyi/monitor/internal/logging"
	"chronik.fyi/monitor/internal/pipeline"
	"chronik.fyi/monitor/internal/propose"
	"chronik.fyi/monitor/internal/store"
)

func runMonitor(args []string) int {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Minute, "Run timeout")
	dryRun := fs.Bool("dry-run", false, "Write the ledger locally but skip the pull request")

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

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	// Credentials are checked before any processing begins.
	if err := cfg.RequireOpenAI(); err != nil {
		logger.Error().Err(err).Msg("missing model credentials")
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	led, err := incident.Load(cfg.LedgerPath)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load ledger")
		fmt.Fprintf(os.Stderr, "Failed to load ledger: %v\n", err)
		return 1
	}
	logger.Info().Int("incidents", len(led.Incidents)).Msg("ledger loaded")

	sources, err := feeds.LoadSources(cfg.SourcesPath)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load sources")
		fmt.Fprintf(os.Stderr, "Failed to load sources: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var seen pipeline.SeenStore
	if cfg.StateDBPath != "" {
		st, err := store.Open(ctx, cfg.StateDBPath)
		if err != nil {
			logger.Error().Err(err).Msg("failed to open state database")
			fmt.Fprintf(os.Stderr, "Failed to open state database: %v\n", err)
			return 1
		}
		defer st.Close()
		seen = st
	}

	oracle := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.City, cfg.CutoffDate, logger)

	svc := pipeline.NewService(
		feeds.NewClient(cfg.FetchTimeout, ""),
		fetch.New(fetch.Options{Timeout: cfg.FetchTimeout, BodyByteLimit: cfg.FetchBodyByteLimit}),
		extract.DefaultRegistry(),
		gate.New(oracle, cfg.Cutoff(), logger),
		dedup.NewEngine(oracle, logger),
		seen,
		logger,
	)

	summary := svc.Run(ctx, sources, led)

	fmt.Printf("articles_checked=%d keyword_matches=%d new_incidents=%d merged_duplicates=%d\n",
		summary.ArticlesChecked, summary.KeywordMatches, summary.NewIncidents, summary.MergedDuplicates)
	fmt.Printf("fetch_failures=%d unprocessable=%d rejected=%d skipped_seen=%d feed_errors=%d\n",
		summary.FetchFailures, summary.Unprocessable, summary.Rejected, summary.SkippedSeen, summary.FeedErrors)

	if summary.NewIncidents == 0 {
		// Merged citations ride along with the next run that finds a new
		// record; the ledger file is only rewritten for new incidents.
		logger.Info().Msg("no new incidents, ledger left untouched")
		return 0
	}

	led.Touch(time.Now())
	if err := led.Save(cfg.LedgerPath); err != nil {
		logger.Error().Err(err).Msg("failed to write ledger")
		fmt.Fprintf(os.Stderr, "Failed to write ledger: %v\n", err)
		return 1
	}
	logger.Info().Str("path", cfg.LedgerPath).Msg("ledger updated")

	if *dryRun {
		logger.Info().Msg("dry run, skipping change proposal")
		return 0
	}
	if !cfg.ProposalConfigured() {
		logger.Warn().Msg("GITHUB_TOKEN/GITHUB_REPOSITORY not set, skipping change proposal")
		return 0
	}

	proposer, err := propose.New(cfg.GitHubToken, cfg.GitHubRepository, cfg.GitHubBaseBranch, cfg.LedgerPath, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to configure change proposal")
		return 1
	}

	document, err := led.Encode()
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode ledger for proposal")
		return 1
	}

	prURL, err := proposer.Propose(ctx, document, summary.NewIncidents)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open change proposal")
		return 1
	}
	fmt.Printf("pull_request=%s\n", prURL)

	return 0
}
