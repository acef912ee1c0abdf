package fmcsa

import (
	"fmt"
	"strconv"
	"strings"
)

// RiskLevel grades a carrier's operational risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Business constants from the audit offer. The 22% national average and the
// Conditional-rating override are fixed literals, not tunables.
const (
	natlAvgVehicleOOS = 22.0
	ratingConditional = "Conditional"
)

// RiskAssessment is the derived risk view of a carrier snapshot. It is
// recomputed on every fetch and never stored.
type RiskAssessment struct {
	DOTNumber      string    `json:"dot_number"`
	CompanyName    string    `json:"company_name"`
	VehicleOOSRate float64   `json:"vehicle_oos_rate"`
	DriverOOSRate  float64   `json:"driver_oos_rate"`
	Rating         string    `json:"rating"`
	RiskLevel      RiskLevel `json:"risk_level"`
	RiskFlags      []string  `json:"risk_flags"`
	TotalCrashes   int       `json:"total_crashes"`
}

// Assess derives the risk level and flags for a carrier snapshot.
// Conditions are applied in order and only ever raise the level:
// an elevated vehicle OOS rate raises LOW to HIGH, a Conditional safety
// rating raises anything to CRITICAL, and reportable crashes add a flag
// without changing the level.
func Assess(snap *CarrierSnapshot) *RiskAssessment {
	a := &RiskAssessment{
		DOTNumber:      snap.DOTNumber,
		CompanyName:    snap.LegalName,
		VehicleOOSRate: snap.VehicleOOSRate,
		DriverOOSRate:  snap.DriverOOSRate,
		Rating:         snap.SafetyRating,
		RiskLevel:      RiskLow,
		RiskFlags:      []string{},
		TotalCrashes:   snap.TotalCrashes(),
	}

	if snap.VehicleOOSRate > natlAvgVehicleOOS {
		a.RiskLevel = RiskHigh
		a.RiskFlags = append(a.RiskFlags,
			fmt.Sprintf("Vehicle OOS is %s%% (Natl Avg: 22%%)", formatRate(snap.VehicleOOSRate)))
	}

	if snap.SafetyRating == ratingConditional {
		a.RiskLevel = RiskCritical
		a.RiskFlags = append(a.RiskFlags, "Safety Rating is CONDITIONAL (Insurance Risk)")
	}

	if a.TotalCrashes > 0 {
		a.RiskFlags = append(a.RiskFlags,
			fmt.Sprintf("%d Reportable Crashes (Potential Ghost Downtime)", a.TotalCrashes))
	}

	return a
}

// formatRate renders an OOS rate the way the public flag text has always
// shown it: shortest decimal form, with integral values keeping a ".0".
func formatRate(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
