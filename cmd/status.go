package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-agency ingestion and mapping coverage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		counts, err := st.CountsByAgency(ctx)
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		var totals struct {
			entries, partial, surrogates, mapped int
		}
		rows := make([]table.Row, 0, len(counts))
		for _, c := range counts {
			rows = append(rows, table.Row{
				c.Agency.AgencyID,
				c.Agency.ShareGroup,
				p.Sprintf("%d", c.Entries),
				p.Sprintf("%d", c.Partial),
				p.Sprintf("%d", c.Surrogates),
				p.Sprintf("%d", c.Mapped),
			})
			totals.entries += c.Entries
			totals.partial += c.Partial
			totals.surrogates += c.Surrogates
			totals.mapped += c.Mapped
		}
		rows = append(rows, table.Row{
			"TOTAL", "",
			p.Sprintf("%d", totals.entries),
			p.Sprintf("%d", totals.partial),
			p.Sprintf("%d", totals.surrogates),
			p.Sprintf("%d", totals.mapped),
		})

		renderTable(
			table.Row{"Agency", "Share Group", "Entries", "Partial", "Surrogates", "Mapped"},
			rows,
			"Entries", "Partial", "Surrogates", "Mapped",
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
