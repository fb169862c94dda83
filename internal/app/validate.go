package app

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"chronik.fyi/monitor/internal/cli"
	"chronik.fyi/monitor/internal/config"
	"chronik.fyi/monitor/internal/incident"
)

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	ledgerPath := fs.String("ledger", "", "Ledger file to validate (defaults to LEDGER_PATH)")

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

	path := *ledgerPath
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
		path = cfg.LedgerPath
	}

	led, err := incident.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid ledger: %v\n", err)
		return 1
	}

	verified := 0
	for _, inc := range led.Incidents {
		if inc.Status == incident.StatusVerified {
			verified++
		}
	}

	fmt.Printf("ledger=%s incidents=%d verified=%d last_updated=%s\n",
		path, len(led.Incidents), verified, led.LastUpdated)
	return 0
}
