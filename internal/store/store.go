// Package store persists leads, the fleet ground-truth table, and
// fulfillment run outcomes.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fleetaudit/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	VerifiedStatus model.VerifyStatus `json:"verified_status,omitempty"`
	DOTNumber      string             `json:"dot_number,omitempty"`
	Limit          int                `json:"limit,omitempty"`
	Offset         int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Leads
	CreateLead(ctx context.Context, lead *model.Lead) error
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	SetVerifiedStatus(ctx context.Context, leadID string, status model.VerifyStatus) error

	// Fleet ground truth
	GetFleet(ctx context.Context, dotNumber string) (*model.FleetRecord, error)
	UpsertFleet(ctx context.Context, records []model.FleetRecord) (int, error)

	// Fulfillment observability
	CreateFulfillmentRun(ctx context.Context, leadID string) (*model.FulfillmentRun, error)
	CompleteFulfillmentRun(ctx context.Context, runID string, status model.RunStatus) error
	RecordStep(ctx context.Context, runID string, step *model.StepResult) error
	GetFulfillmentRun(ctx context.Context, runID string) (*model.FulfillmentRun, error)
	ListFulfillmentRuns(ctx context.Context, leadID string) ([]model.FulfillmentRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
