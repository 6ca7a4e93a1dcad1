package extract

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// readCSV tokenizes the upload into a header row plus data rows. A UTF-8 BOM
// on the first header cell is stripped. Rows may have fewer fields than the
// header; fully empty rows are skipped.
func readCSV(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		header []string
		rows   [][]string
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrap(err, "csv: read row")
		}

		if header == nil {
			if len(record) > 0 {
				record[0] = strings.TrimPrefix(record[0], "\ufeff")
			}
			header = record
			continue
		}

		if emptyRow(record) {
			continue
		}
		rows = append(rows, record)
	}

	if header == nil {
		return nil, nil, eris.New("csv: empty input")
	}
	return header, rows, nil
}

func emptyRow(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
