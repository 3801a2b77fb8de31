package worker

import (
	"context"
	"fmt"

	"github.com/ppiankov/poldna/internal/model"
)

// Categorizer classifies one voting event. Implementations must be total:
// on failure they return the fallback categorization together with the error.
type Categorizer interface {
	Categorize(ctx context.Context, ev model.VotingEvent) (model.Categorization, error)
}

// CategorizeJob categorizes a single event
type CategorizeJob struct {
	Event       model.VotingEvent
	Categorizer Categorizer
}

// Execute executes the categorization job
func (j *CategorizeJob) Execute(ctx context.Context) Result {
	c, err := j.Categorizer.Categorize(ctx, j.Event)
	return &CategorizeResult{
		Event:          j.Event,
		Categorization: c,
		Error:          err,
	}
}

// CategorizeResult represents the result of a categorization job
type CategorizeResult struct {
	Event          model.VotingEvent
	Categorization model.Categorization
	Error          error
}

// GetError returns the error from the categorization result
func (r *CategorizeResult) GetError() error {
	return r.Error
}

// Checkpoint reports one finished chunk of a batch
type Checkpoint struct {
	Chunk   int // 1-based
	Chunks  int
	Done    int // Events finished so far, this chunk included
	Total   int
	Results []*CategorizeResult // This chunk only, in event order
}

// CheckpointFunc persists a chunk. It runs on the caller's goroutine, so
// all writes of a batch are serialized. A non-nil error stops the batch.
type CheckpointFunc func(ctx context.Context, cp Checkpoint) error

// BatchProcessor categorizes events through a bounded pool, one chunk at a
// time, so an interrupted batch loses at most the chunk in flight
type BatchProcessor struct {
	categorizer Categorizer
	pool        *Pool
	chunkSize   int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(categorizer Categorizer, concurrency, chunkSize int) *BatchProcessor {
	return &BatchProcessor{
		categorizer: categorizer,
		pool:        NewPool(concurrency),
		chunkSize:   chunkSize,
	}
}

// Process categorizes events and calls checkpoint after every chunk. It
// returns every result produced before an abort.
func (b *BatchProcessor) Process(ctx context.Context, events []model.VotingEvent, checkpoint CheckpointFunc) ([]*CategorizeResult, error) {
	if len(events) == 0 {
		return []*CategorizeResult{}, nil
	}

	size := b.chunkSize
	if size <= 0 || size > len(events) {
		size = len(events)
	}
	chunks := (len(events) + size - 1) / size

	all := make([]*CategorizeResult, 0, len(events))
	for c := 0; c < chunks; c++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		lo := c * size
		hi := min(lo+size, len(events))

		jobs := make([]Job, 0, hi-lo)
		for _, ev := range events[lo:hi] {
			jobs = append(jobs, &CategorizeJob{Event: ev, Categorizer: b.categorizer})
		}

		results := b.pool.Run(ctx, jobs)
		chunk := make([]*CategorizeResult, len(results))
		for i, r := range results {
			cr, ok := r.(*CategorizeResult)
			if !ok {
				cr = &CategorizeResult{
					Event:          events[lo+i],
					Categorization: model.FallbackCategorization(),
					Error:          r.GetError(),
				}
			}
			chunk[i] = cr
		}
		all = append(all, chunk...)

		if checkpoint != nil {
			cp := Checkpoint{Chunk: c + 1, Chunks: chunks, Done: hi, Total: len(events), Results: chunk}
			if err := checkpoint(ctx, cp); err != nil {
				return all, fmt.Errorf("checkpoint %d/%d: %w", c+1, chunks, err)
			}
		}
	}

	return all, nil
}
