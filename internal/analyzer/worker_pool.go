package analyzer

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by Submit after Close
var ErrPoolClosed = errors.New("worker pool closed")

// PoolStats is a snapshot of worker pool counters
type PoolStats struct {
	Workers       int   `json:"workers"`
	QueueCapacity int   `json:"queue_capacity"`
	Queued        int   `json:"queued"`
	ActiveWorkers int64 `json:"active_workers"`
	TotalJobs     int64 `json:"total_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
}

// WorkerPool is a bounded job queue drained by a fixed set of workers. It is
// the only state shared between verification requests.
type WorkerPool struct {
	workers  int
	jobQueue chan func()
	wg       sync.WaitGroup
	once     sync.Once

	mu     sync.RWMutex
	closed bool

	active    atomic.Int64
	total     atomic.Int64
	completed atomic.Int64
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workers int) *WorkerPool {
	return NewWorkerPoolWithQueue(workers, 0)
}

// NewWorkerPoolWithQueue creates a worker pool whose queue holds up to
// queueSize pending jobs. A non-positive queueSize means twice the workers.
func NewWorkerPoolWithQueue(workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 2
	}

	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), queueSize),
	}
}

// Start initializes and starts all workers in the pool
func (wp *WorkerPool) Start() {
	wp.once.Do(func() {
		for i := 0; i < wp.workers; i++ {
			go wp.worker()
		}
	})
}

// worker processes jobs from the job queue
func (wp *WorkerPool) worker() {
	for job := range wp.jobQueue {
		wp.run(job)
	}
}

func (wp *WorkerPool) run(job func()) {
	wp.active.Add(1)
	defer func() {
		wp.active.Add(-1)
		wp.completed.Add(1)
		wp.wg.Done()
	}()
	job()
}

// Submit queues a job, blocking while the queue is full. It returns the
// context's error if ctx ends first and ErrPoolClosed after Close.
func (wp *WorkerPool) Submit(ctx context.Context, job func()) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return ErrPoolClosed
	}

	wp.wg.Add(1)
	select {
	case wp.jobQueue <- job:
		wp.total.Add(1)
		return nil
	case <-ctx.Done():
		wp.wg.Done()
		return ctx.Err()
	}
}

// Wait waits for all submitted jobs to complete
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Close stops accepting jobs and shuts the workers down once the queue drains
func (wp *WorkerPool) Close() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.closed {
		return
	}
	wp.closed = true
	close(wp.jobQueue)
}

// GetStats returns a snapshot of the pool counters
func (wp *WorkerPool) GetStats() PoolStats {
	return PoolStats{
		Workers:       wp.workers,
		QueueCapacity: cap(wp.jobQueue),
		Queued:        len(wp.jobQueue),
		ActiveWorkers: wp.active.Load(),
		TotalJobs:     wp.total.Load(),
		CompletedJobs: wp.completed.Load(),
	}
}
