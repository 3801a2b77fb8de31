package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// skippedResult stands in for jobs never started because ctx was cancelled
type skippedResult struct {
	err error
}

func (r *skippedResult) GetError() error {
	return r.err
}

// Pool runs jobs with a fixed upper bound on concurrency
type Pool struct {
	workers int
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Run executes jobs with at most p.workers in flight and returns results in
// job order. Once ctx is done no new job starts; jobs that never ran get a
// result carrying ctx.Err().
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	queue := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < min(p.workers, len(jobs)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				results[i] = jobs[i].Execute(ctx)
			}
		}()
	}

feed:
	for i := range jobs {
		select {
		case <-ctx.Done():
			break feed
		case queue <- i:
		}
	}
	close(queue)
	wg.Wait()

	for i, r := range results {
		if r == nil {
			results[i] = &skippedResult{err: ctx.Err()}
		}
	}
	return results
}
