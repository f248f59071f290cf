package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("schema up to date",
			zap.String("driver", cfg.Store.Driver),
			zap.String("database_url", cfg.Store.DatabaseURL),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
