package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/openplates/audit-cli/internal/export"
	"github.com/openplates/audit-cli/internal/join"
	"github.com/openplates/audit-cli/internal/model"
	"github.com/openplates/audit-cli/internal/netaudit"
	"github.com/openplates/audit-cli/internal/store"
)

var (
	joinNetworkPath string
	joinOutPath     string
	joinSummaryPath string
)

// joinReport is the YAML run report written by --summary.
type joinReport struct {
	Summary             model.JoinSummary `yaml:"summary"`
	AmbiguousSurrogates []string          `yaml:"ambiguous_surrogates,omitempty"`
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Re-identify surrogates against a network audit export",
	Long:  "Correlates every anonymized surrogate in the store with the unredacted network audit export by plate and timestamp, scores candidate identities, and replaces the stored mapping set with the new resolution.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		network, err := netaudit.LoadFile(joinNetworkPath)
		if err != nil {
			return eris.Wrapf(err, "join: load network audit %s", joinNetworkPath)
		}

		entries, err := st.QueryEntries(ctx, store.Filter{})
		if err != nil {
			return err
		}
		agencies, err := st.ListAgencies(ctx)
		if err != nil {
			return err
		}

		engine := join.New(join.Options{
			Tolerance:         cfg.Join.Tolerance(),
			MinEvidence:       cfg.Join.MinEvidence,
			MinorityThreshold: cfg.Join.MinorityThreshold,
			Workers:           cfg.Join.Workers,
		})
		res, err := engine.Run(ctx, entries, network.Entries, agencies)
		if err != nil {
			return err
		}
		res.Summary.NetworkRowsLoaded = len(network.Entries)
		res.Summary.NetworkRowsDiscarded = network.Discarded

		if err := st.ReplaceMappings(ctx, res.Mappings); err != nil {
			return err
		}

		if joinOutPath != "" {
			if err := export.WriteMappingCSV(res.Mappings, joinOutPath); err != nil {
				return err
			}
			zap.L().Info("mapping export written",
				zap.String("path", joinOutPath),
				zap.Int("records", len(res.Mappings)),
			)
		}

		if joinSummaryPath != "" {
			report := joinReport{
				Summary:             res.Summary,
				AmbiguousSurrogates: res.AmbiguousSurrogates,
			}
			data, err := yaml.Marshal(report)
			if err != nil {
				return eris.Wrap(err, "join: marshal run report")
			}
			if err := os.WriteFile(joinSummaryPath, data, 0o644); err != nil {
				return eris.Wrapf(err, "join: write run report %s", joinSummaryPath)
			}
		}

		return nil
	},
}

func init() {
	joinCmd.Flags().StringVar(&joinNetworkPath, "network", "", "network audit export (CSV or XLSX)")
	joinCmd.Flags().StringVar(&joinOutPath, "out", "", "also write the mapping set to this CSV path")
	joinCmd.Flags().StringVar(&joinSummaryPath, "summary", "", "write a YAML run report to this path")
	_ = joinCmd.MarkFlagRequired("network")
	rootCmd.AddCommand(joinCmd)
}
