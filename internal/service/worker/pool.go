package worker

import (
	"context"
	"sync"

	"zonewatch/internal/logger"
	"zonewatch/internal/metrics"
)

// Task is one unit of background work. ctx is cancelled when the pool is
// forced to shut down.
type Task struct {
	Name string
	Run  func(ctx context.Context)
}

// Pool runs tasks on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	queue      chan Task
	numWorkers int
	logger     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	closed  bool
	closeMu sync.RWMutex
	wg      sync.WaitGroup
}

// NewPool starts numWorkers goroutines draining a queue of queueSize tasks.
func NewPool(numWorkers, queueSize int, logger *logger.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:      make(chan Task, queueSize),
		numWorkers: numWorkers,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.work(i)
	}

	p.logger.Info("🔧 Worker pool started - %d workers, queue %d", numWorkers, queueSize)
	return p
}

// Submit enqueues a task without blocking. It returns false when the queue is
// full or the pool is shutting down; the task is then dropped.
func (p *Pool) Submit(name string, run func(ctx context.Context)) bool {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()

	if p.closed {
		p.logger.Warning("Worker pool closed - dropping task %s", name)
		metrics.RecordTaskDropped(name)
		return false
	}

	select {
	case p.queue <- Task{Name: name, Run: run}:
		return true
	default:
		p.logger.Warning("⚠️  Worker queue full - dropping task %s", name)
		metrics.RecordTaskDropped(name)
		return false
	}
}

// Pending returns the number of queued tasks not yet started.
func (p *Pool) Pending() int {
	return len(p.queue)
}

// work runs queued tasks until the queue is closed.
func (p *Pool) work(workerID int) {
	defer p.wg.Done()

	for task := range p.queue {
		p.run(workerID, task)
	}
}

func (p *Pool) run(workerID int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker %d: task %s panicked: %v", workerID, task.Name, r)
		}
	}()

	if p.ctx.Err() != nil {
		p.logger.Warning("Worker %d: abandoning task %s after forced shutdown", workerID, task.Name)
		metrics.RecordTaskDropped(task.Name)
		return
	}
	task.Run(p.ctx)
}

// Shutdown stops accepting tasks and waits for queued ones until ctx is done.
// On timeout the remaining tasks are abandoned and their contexts cancelled;
// the number of tasks still queued at that point is returned with ctx.Err().
func (p *Pool) Shutdown(ctx context.Context) (int, error) {
	p.closeMu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("🛑 All workers stopped")
		return 0, nil
	case <-ctx.Done():
		abandoned := len(p.queue)
		p.cancel()
		p.logger.Warning("Worker pool drain timed out - %d task(s) abandoned", abandoned)
		return abandoned, ctx.Err()
	}
}
