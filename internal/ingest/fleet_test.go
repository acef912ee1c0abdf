package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/fleetaudit/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestReadFleetCSV(t *testing.T) {
	input := `dot_number,company_name,total_power_units,safety_rating
1234567,Hale Logistics,42,Satisfactory
7654321,Ridge Freight,12,None
`
	records, err := ReadFleetCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, model.FleetRecord{
		DOTNumber:       "1234567",
		CompanyName:     "Hale Logistics",
		TotalPowerUnits: 42,
		SafetyRating:    "Satisfactory",
	}, records[0])
	assert.Equal(t, "7654321", records[1].DOTNumber)
}

func TestReadFleetCSV_SkipsBadRows(t *testing.T) {
	input := `dot_number,company_name,total_power_units,safety_rating
,No DOT Carrier,10,None
1234567,Hale Logistics,not-a-number,None
7654321,Ridge Freight,12,None
`
	records, err := ReadFleetCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "7654321", records[0].DOTNumber)
}

func TestReadFleetCSV_CaseInsensitiveHeaders(t *testing.T) {
	input := `DOT_Number, Company_Name ,Total_Power_Units,Safety_Rating
1234567,Hale Logistics,42,Satisfactory
`
	records, err := ReadFleetCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 42, records[0].TotalPowerUnits)
}

func TestReadFleetCSV_MissingUnitsDefaultsToZero(t *testing.T) {
	input := `dot_number,company_name
1234567,Hale Logistics
`
	records, err := ReadFleetCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Zero(t, records[0].TotalPowerUnits)
	assert.Empty(t, records[0].SafetyRating)
}

func TestReadFleetCSV_NoDOTColumn(t *testing.T) {
	input := `company_name,total_power_units
Hale Logistics,42
`
	_, err := ReadFleetCSV(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dot_number")
}

func TestReadFleetCSV_EmptyInput(t *testing.T) {
	_, err := ReadFleetCSV(strings.NewReader(""))
	require.Error(t, err)
}
