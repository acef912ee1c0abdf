package model

// FleetRecord is one row of the FMCSA census ground-truth table, keyed by
// DOT number. It is populated by bulk import and consulted only by the
// synchronous qualification path; the fulfillment path always fetches
// fresh registry data instead.
type FleetRecord struct {
	DOTNumber       string `json:"dot_number"`
	CompanyName     string `json:"company_name,omitempty"`
	TotalPowerUnits int    `json:"total_power_units"`
	SafetyRating    string `json:"safety_rating,omitempty"`
}
