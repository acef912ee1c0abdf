// Package model defines the core domain types shared across the pipeline.
package model

import (
	"strings"
	"time"
)

// FleetSize is the self-reported fleet bucket from the lead form.
type FleetSize string

const (
	FleetSizeSmall      FleetSize = "10-20"
	FleetSizeMedium     FleetSize = "21-50"
	FleetSizeLarge      FleetSize = "51-100"
	FleetSizeEnterprise FleetSize = "100+"
)

// Role is the contact's role at the carrier.
type Role string

const (
	RoleOwner   Role = "Owner"
	RoleManager Role = "Fleet Manager"
	RoleOps     Role = "Operations"
	RoleFinance Role = "Finance"
	RoleOther   Role = "Other"
)

// VerifyStatus is the deliverability verdict for a lead's work email.
// A lead starts at pending and transitions at most once per background run.
type VerifyStatus string

const (
	VerifyPending   VerifyStatus = "pending"
	VerifyValid     VerifyStatus = "valid"
	VerifyInvalid   VerifyStatus = "invalid"
	VerifyAcceptAll VerifyStatus = "accept_all"
	VerifyUnknown   VerifyStatus = "unknown"
)

// QualificationUnchecked is the default grade for leads submitted without
// a DOT number. QualificationUnknownDOT marks a DOT number with no row in
// the fleet ground-truth table. All other grades are formatted strings
// produced by the qualify package.
const (
	QualificationUnchecked  = "Unchecked"
	QualificationUnknownDOT = "Unknown DOT"
)

// Lead is a sales lead captured from the audit funnel.
//
// QualificationStatus is set exactly once, synchronously, before the lead
// is first persisted. VerifiedStatus is written by the background verifier.
type Lead struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name"`
	WorkEmail   string `json:"work_email"`
	CompanyName string `json:"company_name"`
	Phone       string `json:"phone,omitempty"`
	DOTNumber   string `json:"dot_number,omitempty"`

	FleetSize  FleetSize `json:"fleet_size"`
	Role       Role      `json:"role"`
	PainPoints string    `json:"pain_points,omitempty"`

	Source          string `json:"source,omitempty"`
	UTMCampaign     string `json:"utm_campaign,omitempty"`
	LandingPagePath string `json:"landing_page_path,omitempty"`

	VerifiedStatus      VerifyStatus `json:"verified_status"`
	QualificationStatus string       `json:"qualification_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FirstName returns the first whitespace-separated token of the full name.
func (l *Lead) FirstName() string {
	first, _ := splitName(l.FullName)
	return first
}

// LastName returns everything after the first whitespace-separated token.
func (l *Lead) LastName() string {
	_, last := splitName(l.FullName)
	return last
}

func splitName(full string) (string, string) {
	first, last, _ := strings.Cut(strings.TrimSpace(full), " ")
	return first, last
}
