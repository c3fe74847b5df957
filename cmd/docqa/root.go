package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/whitepaper-qa/internal/bootstrap"
	"github.com/kirillkom/whitepaper-qa/internal/config"
	"github.com/kirillkom/whitepaper-qa/internal/observability/logging"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docqa",
		Short:         "Question answering over ingested whitepapers",
		Version:       version,
		SilenceUsage:  true,
		Long: `docqa runs the ingestion and question answering pipeline in-process.

Configuration is read from the environment (and a local .env file), the same
variables the api and worker services use.`,
	}
	root.PersistentFlags().String("log-level", "", "override LOG_LEVEL")

	root.AddCommand(newIngestCmd(), newAskCmd(), newMCPCmd())
	return root
}

// loadCore builds the pipeline. Logs go to stderr so stdout stays machine-readable.
func loadCore(cmd *cobra.Command) (*bootstrap.Core, error) {
	cfg := config.Load()
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	logger := logging.New(os.Stderr, "docqa", cfg.LogLevel, "text")

	core, err := bootstrap.NewCore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return core, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
