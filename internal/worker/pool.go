package worker

import (
	"context"
	"sync"
)

// Job is a unit of work producing one result
type Job[R any] func(ctx context.Context) R

type indexedJob[R any] struct {
	index int
	job   Job[R]
}

type indexedResult[R any] struct {
	index  int
	result R
}

// Pool runs jobs on a fixed number of workers. Results are returned in
// submission order.
type Pool[R any] struct {
	workers    int
	jobQueue   chan indexedJob[R]
	results    chan indexedResult[R]
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	submitted  int
}

// NewPool creates a pool whose jobs run under ctx
func NewPool[R any](ctx context.Context, workers int) *Pool[R] {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool[R]{
		workers:    workers,
		jobQueue:   make(chan indexedJob[R], workers*2),
		results:    make(chan indexedResult[R], workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the workers
func (p *Pool[R]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool[R]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := job.job(p.ctx)
			select {
			case p.results <- indexedResult[R]{index: job.index, result: result}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. It returns false once the pool is shut down.
// Submit and Wait must be called from the same goroutine.
func (p *Pool[R]) Submit(job Job[R]) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- indexedJob[R]{index: p.submitted, job: job}:
		p.submitted++
		return true
	}
}

// Wait closes the queue, waits for all jobs and returns their results
// in submission order. Jobs dropped by Shutdown leave zero values.
func (p *Pool[R]) Wait() []R {
	close(p.jobQueue)

	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	results := make([]R, p.submitted)
	for r := range p.results {
		results[r.index] = r.result
	}
	p.cancelFunc()

	return results
}

// Shutdown stops the workers without draining the queue
func (p *Pool[R]) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool[R]) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
