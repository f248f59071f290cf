package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openplates/audit-cli/internal/ingest"
)

var ingestDir string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Normalize scraped audit exports into the store",
	Long:  "Walks the scraped-data hierarchy, normalizes every recognizable audit export, and merges entries idempotently. Re-ingesting an already-seen scrape is a no-op.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dir := ingestDir
		if dir == "" {
			dir = cfg.Ingest.Dir
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runner := &ingest.Runner{Store: st, Workers: cfg.Ingest.Workers}
		summary, err := runner.Run(ctx, dir)
		if err != nil {
			return err
		}

		zap.L().Info("ingest summary",
			zap.String("dir", dir),
			zap.Int("files_seen", summary.FilesSeen),
			zap.Int("files_unrecognized", summary.FilesUnrecognized),
			zap.Int("page_captures", summary.PageCaptures),
			zap.Int("rows_parsed", summary.RowsParsed),
			zap.Int("rows_failed", summary.RowsFailed),
			zap.Int("rows_partial", summary.RowsPartial),
			zap.Int("entries_inserted", summary.EntriesInserted),
			zap.Int("entries_duplicate", summary.EntriesDuplicate),
			zap.Int("agencies_created", summary.AgenciesCreated),
		)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "scraped-data root (default from config)")
	rootCmd.AddCommand(ingestCmd)
}
