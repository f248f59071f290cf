package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var agenciesCmd = &cobra.Command{
	Use:   "agencies",
	Short: "Inspect and annotate agency portals",
}

var agenciesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known agency portals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		agencies, err := st.ListAgencies(ctx)
		if err != nil {
			return err
		}

		rows := make([]table.Row, 0, len(agencies))
		for _, a := range agencies {
			rows = append(rows, table.Row{
				a.AgencyID, a.Jurisdiction, a.DisplayName, a.ShareGroup,
			})
		}
		renderTable(table.Row{"Agency", "Jurisdiction", "Display Name", "Share Group"}, rows)
		return nil
	},
}

var agenciesSetGroupCmd = &cobra.Command{
	Use:   "set-group <agency-id> <share-group>",
	Short: "Assign an agency to a sharing group",
	Long:  "Sharing groups scope the join: network rows tagged with a group only match agencies in the same group. An empty group matches everything.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.SetAgencyShareGroup(ctx, args[0], args[1]); err != nil {
			return err
		}
		zap.L().Info("share group updated",
			zap.String("agency_id", args[0]),
			zap.String("share_group", args[1]),
		)
		return nil
	},
}

func init() {
	agenciesCmd.AddCommand(agenciesListCmd, agenciesSetGroupCmd)
	rootCmd.AddCommand(agenciesCmd)
}
