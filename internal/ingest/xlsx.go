package ingest

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/fleetaudit/internal/model"
)

// ReadFleetXLSX parses fleet records from the first sheet of an XLSX file.
// The first row must be a header; the same row rules as ReadFleetCSV apply.
func ReadFleetXLSX(path string) ([]model.FleetRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: xlsx file has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("ingest: xlsx sheet is empty")
	}

	cols, err := mapColumns(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	var records []model.FleetRecord
	for i, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		if len(cells) == 0 {
			zap.L().Warn("skipping empty xlsx row", zap.Int("line", i+2))
			continue
		}
		record, ok := parseRow(cells, cols, i+2)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		cells[i] = cell.String()
	}
	return cells
}
