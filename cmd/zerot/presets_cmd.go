package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/meta-closure/zerot/pkg/config"
)

func runPresetsCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("presets", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	file := cmd.String("file", os.Getenv("PRESETS_PATH"), "Presets YAML to merge over the defaults")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	presets, err := config.LoadPresets(*file)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	out, err := config.MarshalPresets(presets)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	_, _ = stdout.Write(out)
	return 0
}
