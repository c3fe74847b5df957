package main

import (
	"os"

	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/whitepaper-qa/internal/adapters/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the ask_documents tool over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
ask_documents tool, for use by MCP-compatible assistants.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := loadCore(cmd)
			if err != nil {
				return err
			}
			return mcpadapter.New(core.QueryUC, version, core.Logger).ServeStdio(cmd.Context(), os.Stdin, os.Stdout)
		},
	}
}
