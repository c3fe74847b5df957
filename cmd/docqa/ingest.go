package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

func newIngestCmd() *cobra.Command {
	var loc domain.ObjectLocation

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a stored object into the vector index",
		Long: `Ingest reads the object from object storage, extracts and chunks its text,
embeds every chunk and writes the records to the vector index. Zip archives
are expanded and each supported member is ingested.

The report is printed as JSON. The command fails when any document failed.

Examples:
  docqa ingest --bucket papers --key 2024/bundle.zip`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := loadCore(cmd)
			if err != nil {
				return err
			}
			report, err := core.IngestUC.IngestObject(cmd.Context(), loc)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", loc, err)
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			return reportError(report)
		},
	}
	cmd.Flags().StringVar(&loc.Bucket, "bucket", "", "bucket of the stored object")
	cmd.Flags().StringVar(&loc.Key, "key", "", "key of the stored object")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func reportError(report domain.IngestionReport) error {
	failed := report.Failed()
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d documents failed: %w", failed, len(report.Results), report.Err())
}
