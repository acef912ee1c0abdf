package qualify

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/sells-group/fleetaudit/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeFleetLookup struct {
	records map[string]*model.FleetRecord
	err     error
}

func (f *fakeFleetLookup) GetFleet(_ context.Context, dotNumber string) (*model.FleetRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	record, ok := f.records[dotNumber]
	if !ok {
		return nil, fmt.Errorf("fleet %s: not found", dotNumber)
	}
	return record, nil
}

func TestGrade(t *testing.T) {
	lookup := &fakeFleetLookup{records: map[string]*model.FleetRecord{
		"100": {DOTNumber: "100", TotalPowerUnits: 9},
		"101": {DOTNumber: "101", TotalPowerUnits: 10},
		"102": {DOTNumber: "102", TotalPowerUnits: 55},
		"103": {DOTNumber: "103", TotalPowerUnits: 100},
		"104": {DOTNumber: "104", TotalPowerUnits: 101},
		"105": {DOTNumber: "105", TotalPowerUnits: 0},
	}}

	tests := []struct {
		name      string
		dotNumber string
		want      string
	}{
		{name: "empty_dot_is_unchecked", dotNumber: "", want: model.QualificationUnchecked},
		{name: "whitespace_dot_is_unchecked", dotNumber: "   ", want: model.QualificationUnchecked},
		{name: "unknown_dot", dotNumber: "999", want: model.QualificationUnknownDOT},
		{name: "below_band", dotNumber: "100", want: "Too Small (9 Units)"},
		{name: "lower_bound_inclusive", dotNumber: "101", want: "Qualified (10 Units)"},
		{name: "mid_band", dotNumber: "102", want: "Qualified (55 Units)"},
		{name: "upper_bound_inclusive", dotNumber: "103", want: "Qualified (100 Units)"},
		{name: "above_band", dotNumber: "104", want: "Enterprise (101 Units)"},
		{name: "zero_units", dotNumber: "105", want: "Too Small (0 Units)"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Grade(context.Background(), tc.dotNumber, lookup)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGrade_LookupFailureIsUnknownDOT(t *testing.T) {
	lookup := &fakeFleetLookup{err: fmt.Errorf("database is locked")}

	got := Grade(context.Background(), "1234567", lookup)
	assert.Equal(t, model.QualificationUnknownDOT, got)
}

func TestGrade_TrimsDOTNumber(t *testing.T) {
	lookup := &fakeFleetLookup{records: map[string]*model.FleetRecord{
		"102": {DOTNumber: "102", TotalPowerUnits: 55},
	}}

	got := Grade(context.Background(), "  102  ", lookup)
	assert.Equal(t, "Qualified (55 Units)", got)
}

func TestIsQualified(t *testing.T) {
	assert.True(t, IsQualified("Qualified (55 Units)"))
	assert.False(t, IsQualified("Enterprise (120 Units)"))
	assert.False(t, IsQualified("Too Small (3 Units)"))
	assert.False(t, IsQualified(model.QualificationUnchecked))
	assert.False(t, IsQualified(model.QualificationUnknownDOT))
}
