// Package fulfillment runs the post-acceptance automation for a lead:
// email verification, fresh risk fetch, report rendering, report delivery,
// and nurture-list subscription. Steps run strictly in order and every
// outcome is persisted individually.
package fulfillment

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fleetaudit/internal/model"
	"github.com/sells-group/fleetaudit/internal/notify"
	"github.com/sells-group/fleetaudit/internal/report"
	"github.com/sells-group/fleetaudit/internal/resilience"
	"github.com/sells-group/fleetaudit/pkg/fmcsa"
)

// RunStore persists fulfillment runs and their step outcomes. store.Store
// satisfies it.
type RunStore interface {
	CreateFulfillmentRun(ctx context.Context, leadID string) (*model.FulfillmentRun, error)
	RecordStep(ctx context.Context, runID string, step *model.StepResult) error
	CompleteFulfillmentRun(ctx context.Context, runID string, status model.RunStatus) error
}

// EmailVerifier resolves and persists a lead's email verification status.
type EmailVerifier interface {
	Enabled() bool
	VerifyLead(ctx context.Context, leadID, email string) model.VerifyStatus
}

// RunReport summarizes one fulfillment run.
type RunReport struct {
	RunID  string
	LeadID string
	Status model.RunStatus
	Steps  []model.StepResult
}

// Orchestrator executes the fulfillment sequence for accepted leads.
type Orchestrator struct {
	store       RunStore
	verifier    EmailVerifier
	carriers    fmcsa.Client
	renderer    report.Renderer
	sender      notify.Sender
	list        notify.ListService
	retry       resilience.RetryConfig
	stepTimeout time.Duration
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithSender sets the report delivery transport. Without one, send_report
// is recorded as skipped.
func WithSender(s notify.Sender) Option {
	return func(o *Orchestrator) { o.sender = s }
}

// WithListService sets the nurture-list backend. Without one, subscribe is
// recorded as skipped.
func WithListService(l notify.ListService) Option {
	return func(o *Orchestrator) { o.list = l }
}

// WithRetryConfig overrides the retry policy for the risk fetch.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(o *Orchestrator) { o.retry = cfg }
}

// WithStepTimeout bounds each individual step.
func WithStepTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.stepTimeout = d }
}

// New creates an Orchestrator.
func New(st RunStore, verifier EmailVerifier, carriers fmcsa.Client, renderer report.Renderer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       st,
		verifier:    verifier,
		carriers:    carriers,
		renderer:    renderer,
		retry:       resilience.DefaultRetryConfig(),
		stepTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the fulfillment sequence for one lead. Step failures never
// escape as errors; they are recorded on the run. The returned report mirrors
// what was persisted.
func (o *Orchestrator) Run(ctx context.Context, lead *model.Lead) (*RunReport, error) {
	log := zap.L().With(zap.String("lead_id", lead.ID), zap.String("dot_number", lead.DOTNumber))
	log.Info("fulfillment: starting run")

	run, err := o.store.CreateFulfillmentRun(ctx, lead.ID)
	if err != nil {
		return nil, eris.Wrap(err, "fulfillment: create run")
	}

	result := &RunReport{
		RunID:  run.ID,
		LeadID: lead.ID,
		Status: model.RunStatusComplete,
	}

	trackStep := func(name model.StepName, fn func(ctx context.Context) (string, error)) *model.StepResult {
		stepCtx := ctx
		var cancel context.CancelFunc
		if o.stepTimeout > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, o.stepTimeout)
			defer cancel()
		}

		start := time.Now()
		externalID, stepErr := fn(stepCtx)
		step := &model.StepResult{
			Name:       name,
			Status:     model.StepStatusSuccess,
			ExternalID: externalID,
			DurationMS: time.Since(start).Milliseconds(),
		}
		if stepErr != nil {
			step.Status = model.StepStatusFailed
			step.Error = stepErr.Error()
			log.Error("fulfillment: step failed",
				zap.String("step", string(name)),
				zap.Int64("duration_ms", step.DurationMS),
				zap.Error(stepErr))
		} else {
			log.Info("fulfillment: step complete",
				zap.String("step", string(name)),
				zap.Int64("duration_ms", step.DurationMS))
		}

		o.recordStep(ctx, run.ID, step, result)
		return step
	}

	skipStep := func(name model.StepName, reason string) {
		step := &model.StepResult{
			Name:   name,
			Status: model.StepStatusSkipped,
			Error:  reason,
		}
		log.Info("fulfillment: step skipped",
			zap.String("step", string(name)),
			zap.String("reason", reason))
		o.recordStep(ctx, run.ID, step, result)
	}

	// Step 1: verify_email. Isolated; its outcome never blocks the rest.
	if o.verifier == nil || !o.verifier.Enabled() {
		skipStep(model.StepVerifyEmail, "verification disabled")
	} else {
		trackStep(model.StepVerifyEmail, func(ctx context.Context) (string, error) {
			status := o.verifier.VerifyLead(ctx, lead.ID, lead.WorkEmail)
			return string(status), nil
		})
	}

	if ctx.Err() != nil {
		return o.abort(ctx, result, []model.StepName{
			model.StepFetchRisk, model.StepRenderReport, model.StepSendReport, model.StepSubscribe,
		}, skipStep)
	}

	// Step 2: fetch_risk. Requires a DOT number; transient upstream errors
	// are retried, terminal ones are not.
	if lead.DOTNumber == "" {
		for _, name := range []model.StepName{
			model.StepFetchRisk, model.StepRenderReport, model.StepSendReport, model.StepSubscribe,
		} {
			skipStep(name, "lead has no DOT number")
		}
		return o.finish(ctx, result)
	}

	var assessment *fmcsa.RiskAssessment
	fetchStep := trackStep(model.StepFetchRisk, func(ctx context.Context) (string, error) {
		snap, fetchErr := resilience.DoVal(ctx, o.fetchRetryConfig(), func(ctx context.Context) (*fmcsa.CarrierSnapshot, error) {
			return o.carriers.GetCarrier(ctx, lead.DOTNumber)
		})
		if fetchErr != nil {
			return "", fetchErr
		}
		assessment = fmcsa.Assess(snap)
		return string(assessment.RiskLevel), nil
	})
	if fetchStep.Status != model.StepStatusSuccess {
		result.Status = model.RunStatusAborted
		for _, name := range []model.StepName{
			model.StepRenderReport, model.StepSendReport, model.StepSubscribe,
		} {
			skipStep(name, "risk fetch failed")
		}
		return o.finish(ctx, result)
	}

	if ctx.Err() != nil {
		return o.abort(ctx, result, []model.StepName{
			model.StepRenderReport, model.StepSendReport, model.StepSubscribe,
		}, skipStep)
	}

	// Step 3: render_report.
	var reportBytes []byte
	renderStep := trackStep(model.StepRenderReport, func(_ context.Context) (string, error) {
		out, renderErr := o.renderer.Render(lead, assessment)
		if renderErr != nil {
			return "", renderErr
		}
		reportBytes = out
		return "", nil
	})
	if renderStep.Status != model.StepStatusSuccess {
		result.Status = model.RunStatusAborted
		for _, name := range []model.StepName{model.StepSendReport, model.StepSubscribe} {
			skipStep(name, "report rendering failed")
		}
		return o.finish(ctx, result)
	}

	if ctx.Err() != nil {
		return o.abort(ctx, result, []model.StepName{
			model.StepSendReport, model.StepSubscribe,
		}, skipStep)
	}

	// Step 4: send_report. Failure is logged but does not block subscribe.
	if o.sender == nil {
		skipStep(model.StepSendReport, "no sender configured")
	} else {
		trackStep(model.StepSendReport, func(ctx context.Context) (string, error) {
			return o.sender.SendReport(ctx, notify.ReportEmail{
				To:        lead.WorkEmail,
				FirstName: lead.FirstName(),
				DOTNumber: lead.DOTNumber,
				Report:    reportBytes,
			})
		})
	}

	if ctx.Err() != nil {
		return o.abort(ctx, result, []model.StepName{model.StepSubscribe}, skipStep)
	}

	// Step 5: subscribe.
	if o.list == nil {
		skipStep(model.StepSubscribe, "no audience configured")
	} else {
		trackStep(model.StepSubscribe, func(ctx context.Context) (string, error) {
			return o.list.Subscribe(ctx, lead)
		})
	}

	return o.finish(ctx, result)
}

func (o *Orchestrator) fetchRetryConfig() resilience.RetryConfig {
	cfg := o.retry
	cfg.ShouldRetry = func(err error) bool {
		if eris.Is(err, fmcsa.ErrCarrierNotFound) || eris.Is(err, fmcsa.ErrMissingWebKey) {
			return false
		}
		return resilience.IsTransient(err)
	}
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("fmcsa", "get_carrier")
	}
	return cfg
}

func (o *Orchestrator) recordStep(ctx context.Context, runID string, step *model.StepResult, result *RunReport) {
	// Step outcomes are persisted even when the run's context is gone.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := o.store.RecordStep(ctx, runID, step); err != nil {
		zap.L().Warn("fulfillment: persist step",
			zap.String("run_id", runID),
			zap.String("step", string(step.Name)),
			zap.Error(err))
	}
	result.Steps = append(result.Steps, *step)
}

func (o *Orchestrator) abort(ctx context.Context, result *RunReport, remaining []model.StepName, skipStep func(model.StepName, string)) (*RunReport, error) {
	result.Status = model.RunStatusAborted
	for _, name := range remaining {
		skipStep(name, "run cancelled")
	}
	return o.finish(ctx, result)
}

func (o *Orchestrator) finish(ctx context.Context, result *RunReport) (*RunReport, error) {
	// Completion must be persisted even when the run's context is gone.
	completeCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		completeCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	if err := o.store.CompleteFulfillmentRun(completeCtx, result.RunID, result.Status); err != nil {
		zap.L().Warn("fulfillment: complete run",
			zap.String("run_id", result.RunID),
			zap.Error(err))
	}

	zap.L().Info("fulfillment: run finished",
		zap.String("run_id", result.RunID),
		zap.String("lead_id", result.LeadID),
		zap.String("status", string(result.Status)),
		zap.Int("steps", len(result.Steps)))
	return result, nil
}
