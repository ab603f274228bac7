package worker

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Pool keeps a fixed number of pre-warmed workers for one script. Get
// blocks until a worker is free; Put returns it, replacing workers whose
// last task latched a non-normal termination. All workers share the
// script and options the pool was built with.
type Pool struct {
	script  Script
	opts    WorkerOptions
	workers chan *Worker
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool builds size workers up front. On any construction failure the
// partially-built pool is disposed.
func NewPool(size int, script Script, opts *WorkerOptions) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}
	if opts == nil {
		opts = &WorkerOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		script:  script,
		opts:    *opts,
		workers: make(chan *Worker, size),
		logger:  logger,
	}
	for i := 0; i < size; i++ {
		w, err := NewWorker(script, opts)
		if err != nil {
			p.Dispose()
			return nil, fmt.Errorf("creating pool worker %d: %w", i, err)
		}
		p.workers <- w
	}
	return p, nil
}

// Get acquires a worker, blocking until one is available.
func (p *Pool) Get() (*Worker, error) {
	w, ok := <-p.workers
	if !ok {
		return nil, fmt.Errorf("worker pool is closed")
	}
	return w, nil
}

// Put returns a worker to the pool. A worker poisoned by a non-normal
// termination is closed and replaced with a fresh one; if the
// replacement fails the pool shrinks by one slot.
func (p *Pool) Put(w *Worker) {
	if w.TerminationReason().Kind != TerminationNormal {
		reason := w.TerminationReason()
		w.Close()
		p.logger.Warn("replacing poisoned pool worker",
			zap.String("worker_id", w.ID()),
			zap.String("reason", reason.Kind.String()))
		fresh, err := NewWorker(p.script, &p.opts)
		if err != nil {
			p.logger.Error("replacing pool worker failed", zap.Error(err))
			return
		}
		w = fresh
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		w.Close()
		return
	}
	select {
	case p.workers <- w:
	default:
		w.Close()
	}
}

// Dispose closes the pool and every idle worker. Workers checked out at
// the time of the call are closed when returned via Put.
func (p *Pool) Dispose() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.workers)
	for w := range p.workers {
		w.Close()
	}
}
