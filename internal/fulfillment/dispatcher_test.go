package fulfillment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fleetaudit/internal/model"
)

type countingRunner struct {
	mu    sync.Mutex
	leads []string
	block chan struct{}
}

func (r *countingRunner) Run(ctx context.Context, lead *model.Lead) (*RunReport, error) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	r.leads = append(r.leads, lead.ID)
	r.mu.Unlock()
	return &RunReport{LeadID: lead.ID, Status: model.RunStatusComplete}, nil
}

func (r *countingRunner) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.leads))
	copy(out, r.leads)
	return out
}

func TestDispatcher_ProcessesEnqueuedLeads(t *testing.T) {
	runner := &countingRunner{}
	d := NewDispatcher(runner, 2, 8)
	d.Start(context.Background())

	for _, id := range []string{"lead-1", "lead-2", "lead-3"} {
		require.NoError(t, d.Enqueue(&model.Lead{ID: id}))
	}

	require.NoError(t, d.Stop(context.Background()))
	assert.ElementsMatch(t, []string{"lead-1", "lead-2", "lead-3"}, runner.seen())
}

func TestDispatcher_QueueFull(t *testing.T) {
	runner := &countingRunner{block: make(chan struct{})}
	d := NewDispatcher(runner, 1, 1)
	d.Start(context.Background())

	// First lead occupies the worker, second fills the buffer.
	require.NoError(t, d.Enqueue(&model.Lead{ID: "lead-1"}))

	var errFull error
	for i := 0; i < 10; i++ {
		errFull = d.Enqueue(&model.Lead{ID: "lead-overflow"})
		if errFull != nil {
			break
		}
	}
	require.Error(t, errFull)
	assert.True(t, eris.Is(errFull, ErrQueueFull))

	close(runner.block)
	require.NoError(t, d.Stop(context.Background()))
}

func TestDispatcher_EnqueueAfterStop(t *testing.T) {
	runner := &countingRunner{}
	d := NewDispatcher(runner, 1, 4)
	d.Start(context.Background())
	require.NoError(t, d.Stop(context.Background()))

	err := d.Enqueue(&model.Lead{ID: "lead-late"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrStopped))
}

func TestDispatcher_StopIsIdempotent(t *testing.T) {
	d := NewDispatcher(&countingRunner{}, 1, 4)
	d.Start(context.Background())

	require.NoError(t, d.Stop(context.Background()))
	require.NoError(t, d.Stop(context.Background()))
}

func TestDispatcher_StopDrainsQueuedWork(t *testing.T) {
	runner := &countingRunner{}
	d := NewDispatcher(runner, 1, 16)
	d.Start(context.Background())

	for i := 0; i < 10; i++ {
		require.NoError(t, d.Enqueue(&model.Lead{ID: "lead"}))
	}
	require.NoError(t, d.Stop(context.Background()))
	assert.Len(t, runner.seen(), 10)
}

func TestDispatcher_StopTimeoutCancelsRuns(t *testing.T) {
	runner := &countingRunner{block: make(chan struct{})}
	d := NewDispatcher(runner, 1, 4)
	d.Start(context.Background())

	require.NoError(t, d.Enqueue(&model.Lead{ID: "lead-stuck"}))

	// Give the worker a moment to pick up the lead.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := d.Stop(ctx)
	require.Error(t, err)
	assert.Empty(t, runner.seen())
}
