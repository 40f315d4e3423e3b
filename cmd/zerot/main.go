// Command zerot runs a demo profile service guarded by contracts and provides
// helpers for development tokens and retry presets.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "serve", "server":
		return runServeCmd(args[2:], stdout, stderr)
	case "token":
		return runTokenCmd(args[2:], stdout, stderr)
	case "presets":
		return runPresetsCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "USAGE:")
	_, _ = fmt.Fprintln(w, "  zerot <command> [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "COMMANDS:")
	_, _ = fmt.Fprintln(w, "  serve     Run the demo profile service")
	_, _ = fmt.Fprintln(w, "  token     Mint a development bearer token (--user, --roles, --ttl)")
	_, _ = fmt.Fprintln(w, "  presets   Print the effective retry presets as YAML (--file)")
	_, _ = fmt.Fprintln(w, "  help      Show this message")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Configuration is read from the environment: PORT, LOG_LEVEL, REDIS_ADDR,")
	_, _ = fmt.Fprintln(w, "OTEL_ENABLED, OTLP_ENDPOINT, AUDIT_DRIVER, AUDIT_DSN, PRESETS_PATH,")
	_, _ = fmt.Fprintln(w, "RATE_LIMIT_RPM, RATE_LIMIT_BURST, JWT_ISSUER, JWT_SEED.")
}
