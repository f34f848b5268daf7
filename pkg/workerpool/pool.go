package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// WorkerPool manages a fixed set of workers fed by a buffered queue
type WorkerPool struct {
	config Config
	tasks  chan *Task
	wg     sync.WaitGroup // running workers
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	closed atomic.Bool
	sendMu sync.RWMutex // held for reading while sending on tasks
	stats  *statsCollector
}

// NewWorkerPool creates and starts a pool.
// Returns error if configuration is invalid.
func NewWorkerPool(config Config) (*WorkerPool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		config: config,
		tasks:  make(chan *Task, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		stats:  &statsCollector{},
	}

	for i := 0; i < config.Workers; i++ {
		p.wg.Add(1)
		p.stats.activeWorkers.Add(1)
		go p.worker()
	}
	return p, nil
}

// worker drains the queue until it is closed
func (p *WorkerPool) worker() {
	defer func() {
		p.stats.activeWorkers.Add(-1)
		p.wg.Done()
	}()

	for task := range p.tasks {
		p.execute(task)
	}
}

// execute runs one task with panic recovery. Tasks whose context is
// already done are skipped.
func (p *WorkerPool) execute(task *Task) {
	start := time.Now()
	var err error

	defer func() {
		if r := recover(); r != nil {
			err = &TaskError{
				TaskID: task.ID,
				Err:    fmt.Errorf("panic: %v", r),
				Stack:  string(debug.Stack()),
			}
		}

		p.stats.record(time.Since(start), err)
		if err != nil && p.config.ErrorHandler != nil {
			if _, ok := err.(*TaskError); !ok {
				p.config.ErrorHandler(&TaskError{TaskID: task.ID, Err: err})
			} else {
				p.config.ErrorHandler(err)
			}
		}
		if task.done != nil {
			task.done(err)
		}
	}()

	if err = task.Ctx.Err(); err != nil {
		return
	}
	err = task.Fn(task.Ctx)
}

// Submit queues fn, blocking while the queue is full.
// Returns ctx.Err() if ctx ends first, ErrPoolClosed after Stop.
func (p *WorkerPool) Submit(ctx context.Context, fn TaskFunc) error {
	return p.submit(ctx, fn, nil)
}

func (p *WorkerPool) submit(ctx context.Context, fn TaskFunc, done func(error)) error {
	if ctx == nil {
		ctx = context.Background()
	}

	p.sendMu.RLock()
	defer p.sendMu.RUnlock()

	if p.closed.Load() {
		return ErrPoolClosed
	}

	task := newTask(ctx, fn, done)

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Stop stops accepting tasks, lets workers drain the queue and waits up to
// ShutdownTimeout for them. Returns ErrForcedShutdown on timeout.
func (p *WorkerPool) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.ShutdownTimeout)
	defer cancel()

	err := p.StopWithContext(ctx)
	if err != nil && ctx.Err() != nil {
		return ErrForcedShutdown
	}
	return err
}

// StopWithContext is Stop bounded by ctx instead of ShutdownTimeout
func (p *WorkerPool) StopWithContext(ctx context.Context) error {
	var shutdownErr error

	p.once.Do(func() {
		p.closed.Store(true)
		// unblock submitters waiting on a full queue
		p.cancel()

		p.sendMu.Lock()
		close(p.tasks)
		p.sendMu.Unlock()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			shutdownErr = fmt.Errorf("shutdown cancelled: %w", ctx.Err())
		}
	})

	return shutdownErr
}

// Stats returns current pool statistics
func (p *WorkerPool) Stats() Stats {
	return p.stats.snapshot(len(p.tasks))
}

// Map runs fn over items on the pool and returns results in input order.
// The first error cancels the remaining work and is returned.
func Map[T, R any](ctx context.Context, p *WorkerPool, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]R, len(items))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i, item := range items {
		i, item := i, item
		wg.Add(1)
		err := p.submit(ctx, func(ctx context.Context) error {
			r, err := fn(ctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		}, func(err error) {
			if err != nil {
				fail(err)
			}
			wg.Done()
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
