package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := loadCore(cmd)
			if err != nil {
				return err
			}
			answer, err := core.QueryUC.Answer(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("answer: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), answer)
		},
	}
}
