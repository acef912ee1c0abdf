// Package report renders the fleet audit brief delivered to qualified leads.
package report

import (
	"bytes"
	"html/template"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fleetaudit/internal/model"
	"github.com/sells-group/fleetaudit/pkg/fmcsa"
)

// National averages quoted on the scorecard.
const (
	natlAvgVehicleOOS = 20.7
	natlAvgDriverOOS  = 5.5
)

// fuelSpendPerUnit and leakageRate drive the monthly revenue leakage
// estimate: units * $6,000 fuel spend * 5% unverified-transaction rate.
const (
	fuelSpendPerUnit = 6000
	leakageRate      = 0.05
)

// Renderer produces the audit brief for a lead. Output must be deterministic
// for identical inputs.
type Renderer interface {
	Render(lead *model.Lead, assessment *fmcsa.RiskAssessment) ([]byte, error)
}

// HTMLRenderer renders the brief as a self-contained HTML document.
type HTMLRenderer struct {
	brandName string
}

// NewHTMLRenderer creates a renderer branded with the given agency name.
func NewHTMLRenderer(brandName string) *HTMLRenderer {
	return &HTMLRenderer{brandName: brandName}
}

type briefData struct {
	BrandName    string
	CompanyName  string
	DOTNumber    string
	ContactName  string
	FleetSize    string
	RiskLevel    fmcsa.RiskLevel
	Elevated     bool
	Rating       string
	VehicleOOS   float64
	DriverOOS    float64
	NatlVehicle  float64
	NatlDriver   float64
	TotalCrashes int
	RiskFlags    []string
	MonthlyBleed float64
}

// representativeUnits maps a self-reported fleet-size bucket to the unit
// count used for the financial exposure estimate.
func representativeUnits(size model.FleetSize) int {
	switch size {
	case model.FleetSizeSmall:
		return 15
	case model.FleetSizeMedium:
		return 35
	case model.FleetSizeLarge:
		return 75
	case model.FleetSizeEnterprise:
		return 120
	default:
		return 1
	}
}

// Render produces the audit brief. The document carries no timestamps or
// random content, so identical inputs render identical bytes.
func (r *HTMLRenderer) Render(lead *model.Lead, assessment *fmcsa.RiskAssessment) ([]byte, error) {
	if lead == nil || assessment == nil {
		return nil, eris.New("report: lead and assessment are required")
	}

	units := representativeUnits(lead.FleetSize)
	data := briefData{
		BrandName:    r.brandName,
		CompanyName:  lead.CompanyName,
		DOTNumber:    lead.DOTNumber,
		ContactName:  lead.FirstName(),
		FleetSize:    string(lead.FleetSize),
		RiskLevel:    assessment.RiskLevel,
		Elevated:     assessment.RiskLevel != fmcsa.RiskLow,
		Rating:       assessment.Rating,
		VehicleOOS:   assessment.VehicleOOSRate,
		DriverOOS:    assessment.DriverOOSRate,
		NatlVehicle:  natlAvgVehicleOOS,
		NatlDriver:   natlAvgDriverOOS,
		TotalCrashes: assessment.TotalCrashes,
		RiskFlags:    assessment.RiskFlags,
		MonthlyBleed: float64(units) * fuelSpendPerUnit * leakageRate,
	}

	var buf bytes.Buffer
	if err := briefTemplate.Execute(&buf, data); err != nil {
		return nil, eris.Wrap(err, "report: execute template")
	}
	return buf.Bytes(), nil
}

var briefTemplate = template.Must(template.New("brief").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Valuation Defense Report — {{.CompanyName}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 0; color: #111; }
.cover { background: #0F172A; color: #fff; text-align: center; padding: 120px 40px; }
.cover h1 { font-size: 30px; letter-spacing: 2px; }
.cover h2 { font-size: 24px; margin: 40px 0 0; }
.dashboard { padding: 40px; }
.badge { display: inline-block; padding: 8px 24px; border-radius: 4px; color: #fff; font-weight: bold; }
.badge.ok { background: #16A34A; }
.badge.risk { background: #DC2626; }
.bleed { background: #FEF2F2; border: 1px solid #DC2626; padding: 20px; margin: 20px 0; }
.bleed strong { color: #DC2626; font-size: 16px; }
.metric { margin: 16px 0; }
.metric .natl { color: #6B7280; font-size: 12px; }
.flags li { margin: 4px 0; }
.guarantee { background: #F3F4F6; border: 1px solid #9CA3AF; padding: 16px; text-align: center; margin-top: 40px; }
</style>
</head>
<body>
<div class="cover">
<h1>{{.BrandName}}</h1>
<h2>CONFIDENTIAL<br>VALUATION DEFENSE REPORT</h2>
<p>Prepared For: {{.CompanyName}}</p>
<p>DOT #: {{.DOTNumber}}</p>
</div>
<div class="dashboard">
<h2>Executive Valuation Brief</h2>
<h3>Fleet Scorecard</h3>
{{if .Elevated}}<span class="badge risk">{{.RiskLevel}}</span>{{else}}<span class="badge ok">{{.RiskLevel}}</span>{{end}}
<div class="metric"><strong>Vehicle OOS: {{.VehicleOOS}}%</strong><div class="natl">(Natl Avg: {{.NatlVehicle}}%)</div></div>
<div class="metric"><strong>Driver OOS: {{.DriverOOS}}%</strong><div class="natl">(Natl Avg: {{.NatlDriver}}%)</div></div>
<div class="metric"><strong>Crashes: {{.TotalCrashes}}</strong><div class="natl">(Last 24 Months)</div></div>
<div class="metric"><strong>Safety Rating: {{.Rating}}</strong></div>
<h3>Financial Exposure Analysis</h3>
<div class="bleed">
<strong>Est. Monthly Revenue Leakage: ${{printf "%.0f" .MonthlyBleed}}</strong>
<p>Based on unverified fuel &amp; maintenance transaction models for a {{.FleetSize}} unit fleet.</p>
</div>
{{if .RiskFlags}}
<h3>Operational Risk Flags</h3>
<ul class="flags">
{{range .RiskFlags}}<li>{{.}}</li>
{{end}}</ul>
{{end}}
<div class="guarantee">
<strong>PERFORMANCE GUARANTEE</strong>
<p>We will identify $20,000 in recoverable savings or refund the audit fee. (Valid for fleets with 20+ units.)</p>
</div>
</div>
</body>
</html>
`))
