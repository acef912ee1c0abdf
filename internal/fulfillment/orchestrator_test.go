package fulfillment

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/fleetaudit/internal/model"
	"github.com/sells-group/fleetaudit/internal/notify"
	"github.com/sells-group/fleetaudit/internal/resilience"
	"github.com/sells-group/fleetaudit/pkg/fmcsa"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type memoryRunStore struct {
	mu    sync.Mutex
	runs  map[string]*model.FulfillmentRun
	seq   int
	fails map[string]error
}

func newMemoryRunStore() *memoryRunStore {
	return &memoryRunStore{runs: map[string]*model.FulfillmentRun{}}
}

func (s *memoryRunStore) CreateFulfillmentRun(_ context.Context, leadID string) (*model.FulfillmentRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fails["create"]; err != nil {
		return nil, err
	}
	s.seq++
	run := &model.FulfillmentRun{
		ID:     fmt.Sprintf("run-%d", s.seq),
		LeadID: leadID,
		Status: model.RunStatusRunning,
	}
	s.runs[run.ID] = run
	return run, nil
}

func (s *memoryRunStore) RecordStep(_ context.Context, runID string, step *model.StepResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	step.RunID = runID
	run.Steps = append(run.Steps, *step)
	return nil
}

func (s *memoryRunStore) CompleteFulfillmentRun(_ context.Context, runID string, status model.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	run.Status = status
	return nil
}

type fakeVerifier struct {
	enabled bool
	status  model.VerifyStatus
	calls   int
}

func (f *fakeVerifier) Enabled() bool { return f.enabled }
func (f *fakeVerifier) VerifyLead(_ context.Context, _, _ string) model.VerifyStatus {
	f.calls++
	return f.status
}

type fakeCarriers struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
	snap     *fmcsa.CarrierSnapshot
}

func (f *fakeCarriers) GetCarrier(_ context.Context, _ string) (*fmcsa.CarrierSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls <= f.failures {
		return nil, resilience.NewTransientError(fmt.Errorf("upstream hiccup"), 503)
	}
	return f.snap, nil
}

type fakeRenderer struct {
	err   error
	calls int
}

func (f *fakeRenderer) Render(_ *model.Lead, _ *fmcsa.RiskAssessment) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("<html>brief</html>"), nil
}

type fakeSender struct {
	err   error
	calls int
	last  notify.ReportEmail
}

func (f *fakeSender) SendReport(_ context.Context, email notify.ReportEmail) (string, error) {
	f.calls++
	f.last = email
	if f.err != nil {
		return "", f.err
	}
	return "email-1", nil
}

type fakeList struct {
	err   error
	calls int
}

func (f *fakeList) Subscribe(_ context.Context, _ *model.Lead) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "contact-1", nil
}

func fulfillmentLead() *model.Lead {
	return &model.Lead{
		ID:          "lead-1",
		FullName:    "Jordan Hale",
		WorkEmail:   "jordan@halelogistics.com",
		CompanyName: "Hale Logistics",
		DOTNumber:   "1234567",
		FleetSize:   model.FleetSizeMedium,
	}
}

func cleanSnapshot() *fmcsa.CarrierSnapshot {
	return &fmcsa.CarrierSnapshot{
		DOTNumber:      "1234567",
		LegalName:      "HALE LOGISTICS LLC",
		VehicleOOSRate: 12.0,
		SafetyRating:   "Satisfactory",
	}
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     1.0,
	}
}

func stepByName(t *testing.T, steps []model.StepResult, name model.StepName) model.StepResult {
	t.Helper()
	for _, s := range steps {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("step %s not recorded", name)
	return model.StepResult{}
}

func TestRun_AllStepsSucceed(t *testing.T) {
	st := newMemoryRunStore()
	verifier := &fakeVerifier{enabled: true, status: model.VerifyValid}
	carriers := &fakeCarriers{snap: cleanSnapshot()}
	renderer := &fakeRenderer{}
	sender := &fakeSender{}
	list := &fakeList{}

	o := New(st, verifier, carriers, renderer,
		WithSender(sender), WithListService(list), WithRetryConfig(fastRetry()))

	result, err := o.Run(context.Background(), fulfillmentLead())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusComplete, result.Status)
	require.Len(t, result.Steps, 5)

	wantOrder := []model.StepName{
		model.StepVerifyEmail, model.StepFetchRisk, model.StepRenderReport,
		model.StepSendReport, model.StepSubscribe,
	}
	for i, name := range wantOrder {
		assert.Equal(t, name, result.Steps[i].Name)
		assert.Equal(t, model.StepStatusSuccess, result.Steps[i].Status)
	}

	assert.Equal(t, "valid", stepByName(t, result.Steps, model.StepVerifyEmail).ExternalID)
	assert.Equal(t, "LOW", stepByName(t, result.Steps, model.StepFetchRisk).ExternalID)
	assert.Equal(t, "email-1", stepByName(t, result.Steps, model.StepSendReport).ExternalID)
	assert.Equal(t, []byte("<html>brief</html>"), sender.last.Report)

	run := st.runs[result.RunID]
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Len(t, run.Steps, 5)
}

func TestRun_VerifierDisabledIsSkipped(t *testing.T) {
	st := newMemoryRunStore()
	carriers := &fakeCarriers{snap: cleanSnapshot()}
	o := New(st, &fakeVerifier{enabled: false}, carriers, &fakeRenderer{},
		WithSender(&fakeSender{}), WithListService(&fakeList{}), WithRetryConfig(fastRetry()))

	result, err := o.Run(context.Background(), fulfillmentLead())
	require.NoError(t, err)

	assert.Equal(t, model.StepStatusSkipped, stepByName(t, result.Steps, model.StepVerifyEmail).Status)
	assert.Equal(t, model.StepStatusSuccess, stepByName(t, result.Steps, model.StepFetchRisk).Status)
	assert.Equal(t, model.RunStatusComplete, result.Status)
}

func TestRun_NoDOTSkipsFulfillment(t *testing.T) {
	st := newMemoryRunStore()
	verifier := &fakeVerifier{enabled: true, status: model.VerifyValid}
	carriers := &fakeCarriers{snap: cleanSnapshot()}
	o := New(st, verifier, carriers, &fakeRenderer{},
		WithSender(&fakeSender{}), WithListService(&fakeList{}), WithRetryConfig(fastRetry()))

	lead := fulfillmentLead()
	lead.DOTNumber = ""
	result, err := o.Run(context.Background(), lead)
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusComplete, result.Status)
	assert.Equal(t, 1, verifier.calls, "verification still runs without a DOT")
	assert.Zero(t, carriers.calls)
	for _, name := range []model.StepName{
		model.StepFetchRisk, model.StepRenderReport, model.StepSendReport, model.StepSubscribe,
	} {
		assert.Equal(t, model.StepStatusSkipped, stepByName(t, result.Steps, name).Status)
	}
}

func TestRun_FetchFailureAbortsDownstream(t *testing.T) {
	st := newMemoryRunStore()
	carriers := &fakeCarriers{err: fmcsa.ErrCarrierNotFound}
	renderer := &fakeRenderer{}
	sender := &fakeSender{}
	list := &fakeList{}
	o := New(st, &fakeVerifier{enabled: true, status: model.VerifyValid}, carriers, renderer,
		WithSender(sender), WithListService(list), WithRetryConfig(fastRetry()))

	result, err := o.Run(context.Background(), fulfillmentLead())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusAborted, result.Status)
	assert.Equal(t, model.StepStatusSuccess, stepByName(t, result.Steps, model.StepVerifyEmail).Status)
	assert.Equal(t, model.StepStatusFailed, stepByName(t, result.Steps, model.StepFetchRisk).Status)
	for _, name := range []model.StepName{
		model.StepRenderReport, model.StepSendReport, model.StepSubscribe,
	} {
		assert.Equal(t, model.StepStatusSkipped, stepByName(t, result.Steps, name).Status)
	}
	assert.Zero(t, renderer.calls)
	assert.Zero(t, sender.calls)
	assert.Zero(t, list.calls)
}

func TestRun_TerminalFetchErrorIsNotRetried(t *testing.T) {
	st := newMemoryRunStore()
	carriers := &fakeCarriers{err: fmcsa.ErrCarrierNotFound}
	o := New(st, &fakeVerifier{}, carriers, &fakeRenderer{}, WithRetryConfig(fastRetry()))

	_, err := o.Run(context.Background(), fulfillmentLead())
	require.NoError(t, err)
	assert.Equal(t, 1, carriers.calls)
}

func TestRun_TransientFetchErrorIsRetried(t *testing.T) {
	st := newMemoryRunStore()
	carriers := &fakeCarriers{failures: 2, snap: cleanSnapshot()}
	o := New(st, &fakeVerifier{enabled: true, status: model.VerifyValid}, carriers, &fakeRenderer{},
		WithSender(&fakeSender{}), WithListService(&fakeList{}), WithRetryConfig(fastRetry()))

	result, err := o.Run(context.Background(), fulfillmentLead())
	require.NoError(t, err)

	assert.Equal(t, 3, carriers.calls)
	assert.Equal(t, model.StepStatusSuccess, stepByName(t, result.Steps, model.StepFetchRisk).Status)
	assert.Equal(t, model.RunStatusComplete, result.Status)
}

func TestRun_RenderFailureSkipsSendAndSubscribe(t *testing.T) {
	st := newMemoryRunStore()
	sender := &fakeSender{}
	list := &fakeList{}
	o := New(st, &fakeVerifier{enabled: true, status: model.VerifyValid},
		&fakeCarriers{snap: cleanSnapshot()}, &fakeRenderer{err: fmt.Errorf("template exploded")},
		WithSender(sender), WithListService(list), WithRetryConfig(fastRetry()))

	result, err := o.Run(context.Background(), fulfillmentLead())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusAborted, result.Status)
	assert.Equal(t, model.StepStatusFailed, stepByName(t, result.Steps, model.StepRenderReport).Status)
	assert.Equal(t, model.StepStatusSkipped, stepByName(t, result.Steps, model.StepSendReport).Status)
	assert.Equal(t, model.StepStatusSkipped, stepByName(t, result.Steps, model.StepSubscribe).Status)
	assert.Zero(t, sender.calls)
	assert.Zero(t, list.calls)
}

func TestRun_SendFailureStillSubscribes(t *testing.T) {
	st := newMemoryRunStore()
	list := &fakeList{}
	o := New(st, &fakeVerifier{enabled: true, status: model.VerifyValid},
		&fakeCarriers{snap: cleanSnapshot()}, &fakeRenderer{},
		WithSender(&fakeSender{err: fmt.Errorf("mailbox unavailable")}),
		WithListService(list), WithRetryConfig(fastRetry()))

	result, err := o.Run(context.Background(), fulfillmentLead())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusComplete, result.Status)
	assert.Equal(t, model.StepStatusFailed, stepByName(t, result.Steps, model.StepSendReport).Status)
	assert.Equal(t, model.StepStatusSuccess, stepByName(t, result.Steps, model.StepSubscribe).Status)
	assert.Equal(t, 1, list.calls)
}

func TestRun_NoSenderOrListIsSkipped(t *testing.T) {
	st := newMemoryRunStore()
	o := New(st, &fakeVerifier{enabled: true, status: model.VerifyValid},
		&fakeCarriers{snap: cleanSnapshot()}, &fakeRenderer{}, WithRetryConfig(fastRetry()))

	result, err := o.Run(context.Background(), fulfillmentLead())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusComplete, result.Status)
	assert.Equal(t, model.StepStatusSkipped, stepByName(t, result.Steps, model.StepSendReport).Status)
	assert.Equal(t, model.StepStatusSkipped, stepByName(t, result.Steps, model.StepSubscribe).Status)
}

func TestRun_CreateRunFailure(t *testing.T) {
	st := newMemoryRunStore()
	st.fails = map[string]error{"create": fmt.Errorf("database is locked")}
	o := New(st, &fakeVerifier{}, &fakeCarriers{}, &fakeRenderer{})

	_, err := o.Run(context.Background(), fulfillmentLead())
	require.Error(t, err)
}

func TestRun_CancelledContextAborts(t *testing.T) {
	st := newMemoryRunStore()
	sender := &fakeSender{}
	list := &fakeList{}
	o := New(st, &fakeVerifier{enabled: true, status: model.VerifyValid},
		&fakeCarriers{snap: cleanSnapshot()}, &fakeRenderer{},
		WithSender(sender), WithListService(list), WithRetryConfig(fastRetry()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := o.Run(ctx, fulfillmentLead())
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusAborted, result.Status)
	assert.Zero(t, sender.calls)
	assert.Zero(t, list.calls)

	// The run outcome is still persisted despite the dead context.
	run := st.runs[result.RunID]
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusAborted, run.Status)
}
