package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrQueueFull is returned by Enqueue when the job buffer has no room.
var ErrQueueFull = eris.New("pipeline: queue full")

const (
	defaultQueueSize   = 64
	defaultConcurrency = 2
)

// Worker runs accepted jobs through a Pipeline on a bounded goroutine pool.
type Worker struct {
	pipeline    *Pipeline
	jobs        chan Job
	concurrency int
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

// NewWorker creates a Worker with a buffered job queue. Zero values fall
// back to defaults.
func NewWorker(p *Pipeline, queueSize, concurrency int) *Worker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Worker{
		pipeline:    p,
		jobs:        make(chan Job, queueSize),
		concurrency: concurrency,
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled or
// the queue is closed by Stop.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-w.jobs:
					if !ok {
						return
					}
					// Process records failures on the run itself.
					if err := w.pipeline.Process(ctx, job); err != nil {
						zap.L().Error("worker: run processing failed",
							zap.String("run_id", job.RunID),
							zap.Error(err),
						)
					}
				}
			}
		}()
	}
}

// Enqueue submits a job without blocking. Callers translate ErrQueueFull
// into a retryable response.
func (w *Worker) Enqueue(job Job) error {
	select {
	case w.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight runs to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.jobs) })
	w.wg.Wait()
}
