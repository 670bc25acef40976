// Package parallel provides the bounded worker pool that runs independent
// grounding and evaluation jobs concurrently. Jobs never share state; the
// pool only bounds how many run at once and applies backpressure to
// submitters.
package parallel

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// WorkerPool manages a fixed set of goroutines executing submitted tasks.
type WorkerPool struct {
	maxWorkers   int
	taskChan     chan func()
	workerWg     sync.WaitGroup
	pending      sync.WaitGroup
	shutdownChan chan struct{}
	once         sync.Once
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// If maxWorkers is 0 or negative, it defaults to the number of CPU cores.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}

	pool := &WorkerPool{
		maxWorkers:   maxWorkers,
		taskChan:     make(chan func(), maxWorkers*2), // Buffered channel for backpressure
		shutdownChan: make(chan struct{}),
	}

	for i := 0; i < maxWorkers; i++ {
		pool.workerWg.Add(1)
		go pool.worker()
	}

	return pool
}

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int { return wp.maxWorkers }

func (wp *WorkerPool) worker() {
	defer wp.workerWg.Done()

	for {
		select {
		case task := <-wp.taskChan:
			wp.run(task)
		case <-wp.shutdownChan:
			// Drain what was accepted before shutdown.
			for {
				select {
				case task := <-wp.taskChan:
					wp.run(task)
				default:
					return
				}
			}
		}
	}
}

func (wp *WorkerPool) run(task func()) {
	defer wp.pending.Done()
	task()
}

// Submit submits a task to the worker pool for execution.
// If the pool is full, this call will block until a worker becomes available.
func (wp *WorkerPool) Submit(ctx context.Context, task func()) error {
	if task == nil {
		return nil
	}
	select {
	case <-wp.shutdownChan:
		return ErrPoolShutdown
	default:
	}
	wp.pending.Add(1)
	select {
	case wp.taskChan <- task:
		return nil
	case <-ctx.Done():
		wp.pending.Done()
		return ctx.Err()
	case <-wp.shutdownChan:
		wp.pending.Done()
		return ErrPoolShutdown
	}
}

// Wait blocks until every accepted task has finished.
func (wp *WorkerPool) Wait() {
	wp.pending.Wait()
}

// Shutdown stops the workers after the accepted tasks have run. Submit
// fails with ErrPoolShutdown afterwards.
func (wp *WorkerPool) Shutdown() {
	wp.once.Do(func() {
		close(wp.shutdownChan)
		wp.workerWg.Wait()
	})
}

// ErrPoolShutdown is returned when trying to submit tasks to a shutdown pool.
var ErrPoolShutdown = fmt.Errorf("worker pool has been shutdown")
