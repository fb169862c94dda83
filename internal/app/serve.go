package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chronik.fyi/monitor/internal/cli"
	"chronik.fyi/monitor/internal/config"
	"chronik.fyi/monitor/internal/httpapi"
	"chronik.fyi/monitor/internal/logging"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "", "Listen host (defaults to SERVE_HOST)")
	port := fs.Int("port", 0, "Listen port (defaults to SERVE_PORT)")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

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

	opts := httpapi.Options{
		Host:            cfg.ServeHost,
		Port:            cfg.ServePort,
		ShutdownTimeout: *shutdownTimeout,
	}
	if *host != "" {
		opts.Host = *host
	}
	if *port != 0 {
		opts.Port = *port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := httpapi.NewServer(cfg.LedgerPath, logger, opts)
	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("server failed")
		return 1
	}
	return 0
}
