package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openplates/audit-cli/internal/export"
)

var exportOutPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored mapping set to a CSV file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.ListMappings(ctx)
		if err != nil {
			return err
		}
		if err := export.WriteMappingCSV(records, exportOutPath); err != nil {
			return err
		}

		zap.L().Info("mapping export written",
			zap.String("path", exportOutPath),
			zap.Int("records", len(records)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutPath, "out", "mappings.csv", "destination CSV path")
	rootCmd.AddCommand(exportCmd)
}
