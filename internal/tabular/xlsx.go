package tabular

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX reads all rows of the first sheet of an XLSX workbook.
func ReadXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "tabular: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("tabular: xlsx %s has no sheets", filepath.Base(path))
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// ReadFile reads a tabular export, dispatching on file extension.
func ReadFile(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "tabular: open file")
		}
		defer f.Close()
		return ReadCSV(f)
	}
}
