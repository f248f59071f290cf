// Package tabular reads agency-supplied tabular exports (CSV and XLSX)
// into raw string rows for the normalizers.
package tabular

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadCSV reads all rows from a CSV stream. Rows may have a variable
// number of fields; fields are space-trimmed. Agency exports are small
// enough (portal retention is bounded) that streaming is unnecessary.
func ReadCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, eris.Wrap(err, "tabular: read csv row")
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		rows = append(rows, record)
	}
}
