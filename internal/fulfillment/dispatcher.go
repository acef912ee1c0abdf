package fulfillment

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fleetaudit/internal/model"
)

// ErrQueueFull means the dispatcher's buffer is at capacity. Callers surface
// this to the client rather than blocking the request path.
var ErrQueueFull = eris.New("fulfillment: queue full")

// ErrStopped means the dispatcher is shutting down and accepts no new work.
var ErrStopped = eris.New("fulfillment: dispatcher stopped")

// Runner executes a fulfillment run for one lead. *Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, lead *model.Lead) (*RunReport, error)
}

// Dispatcher fans accepted leads out to a fixed pool of fulfillment workers
// over a bounded queue.
type Dispatcher struct {
	runner  Runner
	queue   chan *model.Lead
	workers int

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewDispatcher creates a Dispatcher with the given worker count and queue
// capacity. Values below 1 are clamped.
func NewDispatcher(runner Runner, workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		runner:  runner,
		queue:   make(chan *model.Lead, queueSize),
		workers: workers,
	}
}

// Start launches the worker pool. Workers exit when the queue is closed and
// drained, or when ctx is cancelled mid-run.
func (d *Dispatcher) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(worker int) {
			defer d.wg.Done()
			log := zap.L().With(zap.Int("worker", worker))
			for lead := range d.queue {
				if _, err := d.runner.Run(runCtx, lead); err != nil {
					log.Error("fulfillment run failed",
						zap.String("lead_id", lead.ID),
						zap.Error(err))
				}
			}
		}(i)
	}
}

// Enqueue hands a lead to the worker pool. It never blocks: a full queue
// returns ErrQueueFull and a stopped dispatcher returns ErrStopped.
func (d *Dispatcher) Enqueue(lead *model.Lead) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.queue <- lead:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight runs to drain. If ctx
// expires first, remaining runs are cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	cancel := d.cancel
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		<-done
		return eris.Wrap(ctx.Err(), "fulfillment: drain timed out")
	}
}
