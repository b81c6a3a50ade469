package export

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dispatcher drains the handoff queue with a bounded pool so generation can
// never starve request handling.
type Dispatcher struct {
	queue   Queue
	worker  *Worker
	n       int
	timeout time.Duration
	log     *zap.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(queue Queue, worker *Worker, workers int, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Dispatcher{queue: queue, worker: worker, n: workers, timeout: timeout, log: log.Named("dispatcher")}
}

func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.n; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}
	d.log.Info("dispatcher started", zap.Int("workers", d.n), zap.Duration("job_timeout", d.timeout))
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		id, err := d.queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Warn("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if id == "" {
			continue
		}
		// detached from ctx so an in-flight job finishes during shutdown;
		// the timeout bounds pathological exports
		jctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		d.worker.Process(jctx, id)
		cancel()
	}
}

// Wait blocks until every worker goroutine has exited after the context
// passed to Start is cancelled.
func (d *Dispatcher) Wait() { d.wg.Wait() }
