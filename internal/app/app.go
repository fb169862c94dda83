package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "monitor", "run-once":
		return runMonitor(args[1:])
	case "extract":
		return runExtract(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "health":
		return runHealth(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "chronik CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  chronik <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  monitor   Run the full monitoring pass over all feeds")
	fmt.Fprintln(os.Stderr, "  run-once  Alias for monitor")
	fmt.Fprintln(os.Stderr, "  extract   Fetch one article URL and print the extracted body text")
	fmt.Fprintln(os.Stderr, "  validate  Validate the incident ledger file")
	fmt.Fprintln(os.Stderr, "  health    Verify configuration, ledger, and state database")
	fmt.Fprintln(os.Stderr, "  serve     Start the read-only ledger API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"chronik <command> -h\" for command-specific flags.")
}
