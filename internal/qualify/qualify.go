// Package qualify grades leads against the internal fleet dataset.
package qualify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/fleetaudit/internal/model"
)

// Power-unit bands for the qualification grades.
const (
	minQualifiedUnits = 10
	maxQualifiedUnits = 100
)

// FleetLookup resolves a DOT number to a fleet record.
type FleetLookup interface {
	GetFleet(ctx context.Context, dotNumber string) (*model.FleetRecord, error)
}

// Grade returns a qualification status for the given DOT number. It is total:
// a missing DOT number grades as Unchecked, and any lookup failure grades as
// Unknown DOT rather than returning an error.
func Grade(ctx context.Context, dotNumber string, fleets FleetLookup) string {
	dotNumber = strings.TrimSpace(dotNumber)
	if dotNumber == "" {
		return model.QualificationUnchecked
	}

	record, err := fleets.GetFleet(ctx, dotNumber)
	if err != nil || record == nil {
		if err != nil {
			zap.L().Debug("fleet lookup missed",
				zap.String("dot_number", dotNumber),
				zap.Error(err))
		}
		return model.QualificationUnknownDOT
	}

	units := record.TotalPowerUnits
	switch {
	case units > maxQualifiedUnits:
		return fmt.Sprintf("Enterprise (%d Units)", units)
	case units >= minQualifiedUnits:
		return fmt.Sprintf("Qualified (%d Units)", units)
	default:
		return fmt.Sprintf("Too Small (%d Units)", units)
	}
}

// IsQualified reports whether a stored qualification status represents the
// target band.
func IsQualified(status string) bool {
	return strings.HasPrefix(status, "Qualified")
}
