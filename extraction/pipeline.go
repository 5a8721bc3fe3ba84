// Package extraction runs PDF text extraction off the request path. Upload
// handlers enqueue a job and return; a fixed pool of workers decodes the
// document and writes the result back to the book store.
package extraction

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by Enqueue when the job buffer has no room. The
// caller decides whether to surface backpressure or retry later.
var ErrQueueFull = errors.New("extraction queue is full")

// ErrStopped is returned by Enqueue after Shutdown.
var ErrStopped = errors.New("extraction pipeline stopped")

// Extractor decodes a PDF source into per-page text.
type Extractor interface {
	Extract(ctx context.Context, source string) ([]string, error)
}

// BookStore records the outcome of an extraction. Both writes are single-shot
// per book; the store enforces that.
type BookStore interface {
	CompleteExtraction(ctx context.Context, bookID string, pages []string) error
	FailExtraction(ctx context.Context, bookID string, message string) error
}

type job struct {
	bookID      string
	pdfLocation string
}

// Pipeline is the asynchronous extraction queue. Jobs for different books run
// concurrently; a failing job never affects the others.
type Pipeline struct {
	store     BookStore
	extractor Extractor
	logger    *zap.Logger

	jobs chan job
	wg   sync.WaitGroup

	mu      sync.Mutex
	stopped bool

	workers int
}

// New builds a pipeline with the given number of workers and queue capacity.
// Call Start before enqueueing.
func New(store BookStore, extractor Extractor, logger *zap.Logger, workers, queueSize int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	if queueSize < workers {
		queueSize = workers
	}
	return &Pipeline{
		store:     store,
		extractor: extractor,
		logger:    logger,
		jobs:      make(chan job, queueSize),
		workers:   workers,
	}
}

// Start spawns the worker pool.
func (p *Pipeline) Start() {
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				p.run(j)
			}
		}()
	}
}

// Enqueue hands a book off for extraction without blocking.
func (p *Pipeline) Enqueue(bookID, pdfLocation string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.jobs <- job{bookID: bookID, pdfLocation: pdfLocation}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for in-flight extractions, up to
// the context deadline.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) run(j job) {
	ctx := context.Background()

	pages, err := p.extractor.Extract(ctx, j.pdfLocation)
	if err != nil {
		p.logger.Error("extraction failed",
			zap.String("book_id", j.bookID),
			zap.String("source", j.pdfLocation),
			zap.Error(err))

		if err := p.store.FailExtraction(ctx, j.bookID, err.Error()); err != nil {
			p.logger.Error("recording extraction failure failed",
				zap.String("book_id", j.bookID),
				zap.Error(err))
		}
		return
	}

	if err := p.store.CompleteExtraction(ctx, j.bookID, pages); err != nil {
		p.logger.Error("storing extraction result failed",
			zap.String("book_id", j.bookID),
			zap.Error(err))
		return
	}

	p.logger.Info("extraction completed",
		zap.String("book_id", j.bookID),
		zap.Int("total_pages", len(pages)))
}
