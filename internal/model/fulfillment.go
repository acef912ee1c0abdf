package model

import "time"

// StepName identifies one step of the fulfillment sequence.
type StepName string

const (
	StepVerifyEmail  StepName = "verify_email"
	StepFetchRisk    StepName = "fetch_risk"
	StepRenderReport StepName = "render_report"
	StepSendReport   StepName = "send_report"
	StepSubscribe    StepName = "subscribe"
)

// StepStatus is the terminal outcome of a single fulfillment step.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// RunStatus is the overall state of a fulfillment run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusAborted  RunStatus = "aborted"
)

// StepResult records the individually observable outcome of one step.
// No single boolean summarizes a run; operators read these rows.
type StepResult struct {
	ID         string     `json:"id"`
	RunID      string     `json:"run_id"`
	Name       StepName   `json:"name"`
	Status     StepStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	ExternalID string     `json:"external_id,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	StartedAt  time.Time  `json:"started_at"`
}

// FulfillmentRun groups the step results for one background pass over a lead.
type FulfillmentRun struct {
	ID        string       `json:"id"`
	LeadID    string       `json:"lead_id"`
	Status    RunStatus    `json:"status"`
	Steps     []StepResult `json:"steps,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
