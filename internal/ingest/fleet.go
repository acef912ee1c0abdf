// Package ingest parses fleet ground-truth files (CSV and XLSX) into fleet
// records for bulk import.
package ingest

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fleetaudit/internal/model"
)

// Expected column headers. Matching is case-insensitive.
const (
	colDOTNumber    = "dot_number"
	colCompanyName  = "company_name"
	colPowerUnits   = "total_power_units"
	colSafetyRating = "safety_rating"
)

// ReadFleetCSV parses fleet records from CSV. The first row must be a header
// containing at least dot_number; rows with a missing DOT number or an
// unparseable unit count are skipped with a warning.
func ReadFleetCSV(r io.Reader) ([]model.FleetRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv header")
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var records []model.FleetRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read csv line %d", line)
		}

		record, ok := parseRow(row, cols, line)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// mapColumns resolves header names to column indexes.
func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols[colDOTNumber]; !ok {
		return nil, eris.Errorf("ingest: header has no %s column", colDOTNumber)
	}
	return cols, nil
}

func parseRow(row []string, cols map[string]int, line int) (model.FleetRecord, bool) {
	cell := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	dot := cell(colDOTNumber)
	if dot == "" {
		zap.L().Warn("skipping fleet row, missing dot_number", zap.Int("line", line))
		return model.FleetRecord{}, false
	}

	units := 0
	if raw := cell(colPowerUnits); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			zap.L().Warn("skipping fleet row, bad total_power_units",
				zap.Int("line", line),
				zap.String("value", raw))
			return model.FleetRecord{}, false
		}
		units = parsed
	}

	return model.FleetRecord{
		DOTNumber:       dot,
		CompanyName:     cell(colCompanyName),
		TotalPowerUnits: units,
		SafetyRating:    cell(colSafetyRating),
	}, true
}
