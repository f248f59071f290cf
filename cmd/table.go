package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderTable prints rows in a rounded-border table. Numeric columns are
// named so they right-align.
func renderTable(header table.Row, rows []table.Row, numeric ...string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(header)
	t.AppendRows(rows)

	configs := make([]table.ColumnConfig, 0, len(numeric))
	for _, name := range numeric {
		configs = append(configs, table.ColumnConfig{
			Name:        name,
			Align:       text.AlignRight,
			AlignHeader: text.AlignRight,
		})
	}
	t.SetColumnConfigs(configs)
	t.Render()
}
