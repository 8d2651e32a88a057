// Package worker defines the worker pool that drains the frame queue for
// asynchronous pose inference.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/lanefour/divetrace/pkg/logger"
	"github.com/lanefour/divetrace/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	metricsUpdateInterval   = 5 * time.Second
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Processor handles a single job drawn off the queue.
type Processor[T any] interface {
	Process(ctx context.Context, job T) error
}

// Queue defines how workers receive jobs.
type Queue[T any] interface {
	Dequeue(ctx context.Context) <-chan T
}

// Worker drains jobs from the queue until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the in-flight job to finish.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing queued jobs.
type InMemoryWorker[T any] struct {
	queue     Queue[T]
	processor Processor[T]
	name      string

	// Called after each successfully processed job.
	processed func()

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker[T any](q Queue[T], processor Processor[T], opts ...Option) *InMemoryWorker[T] {
	cfg := workerConfig{
		name:   "worker", // default name
		logger: logger.Get().Named("worker"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(&cfg)
	}

	// Set up logger with worker name if not already set
	if cfg.name != "worker" {
		cfg.logger = cfg.logger.Named(cfg.name)
	}

	return &InMemoryWorker[T]{
		queue:     q,
		processor: processor,
		name:      cfg.name,
		processed: cfg.processed,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    cfg.logger,
	}
}

// Run starts the worker loop.
func (w *InMemoryWorker[T]) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	jobChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			// Process the job
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker[T]) Shutdown(ctx context.Context) error {
	// Signal shutdown
	close(w.shutdown)

	// Wait for worker to finish or context to timeout
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob handles a single job.
func (w *InMemoryWorker[T]) processJob(ctx context.Context, job T) error {
	// Track overall processing latency
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordWorkerProcessingLatency(float64(latency))
	}()

	if err := w.processor.Process(ctx, job); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "process_error")
		return fmt.Errorf("%s: %w", w.name, err)
	}

	if w.processed != nil {
		w.processed()
	}
	metrics.RecordFrameProcessed()
	return nil
}

// ProcessorFactory builds one Processor per worker. Inference backends are
// generally not safe for concurrent use, so each worker owns its own.
type ProcessorFactory[T any] func(workerID int) (Processor[T], error)

// Pool manages multiple workers.
type Pool[T any] struct {
	workers []*InMemoryWorker[T]
	queue   Queue[T]

	// Shutdown control
	shutdown chan struct{}

	// Metrics tracking
	processedCount atomic.Int64
	lastProcessed  time.Time

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool, building one processor per worker
// through the factory.
func NewPool[T any](workerCount int, q Queue[T], factory ProcessorFactory[T]) (*Pool[T], error) {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool[T]{
		workers:       make([]*InMemoryWorker[T], workerCount),
		queue:         q,
		shutdown:      make(chan struct{}),
		lastProcessed: time.Now(),
		logger:        logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		processor, err := factory(i)
		if err != nil {
			pool.closeProcessors(context.Background())
			return nil, fmt.Errorf("create processor for worker %d: %w", i, err)
		}
		pool.workers[i] = NewInMemoryWorker(
			q,
			processor,
			WithName("worker-"+strconv.Itoa(i)),
			WithProcessedHook(pool.recordProcessed),
		)
	}

	// Initialize worker metrics
	metrics.UpdateWorkerActiveCount(workerCount)
	metrics.UpdateWorkerIdleCount(0)
	metrics.UpdateWorkerFramesPerSecond(0.0)

	return pool, nil
}

// Size returns the number of workers in the pool.
func (p *Pool[T]) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool[T]) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}

	// Start metrics updater
	go p.startMetricsUpdater(ctx)
}

// startMetricsUpdater starts a background goroutine that updates worker metrics.
func (p *Pool[T]) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

// updateMetrics updates worker-related metrics.
func (p *Pool[T]) updateMetrics() {
	now := time.Now()
	timeDiff := now.Sub(p.lastProcessed).Seconds()
	if timeDiff > 0 {
		framesPerSecond := float64(p.processedCount.Swap(0)) / timeDiff
		metrics.UpdateWorkerFramesPerSecond(framesPerSecond)
	}
	p.lastProcessed = now
}

// recordProcessed increments the processed job count.
func (p *Pool[T]) recordProcessed() {
	p.processedCount.Add(1)
}

// Stop gracefully stops all workers.
func (p *Pool[T]) Stop() {
	// Stop the metrics updater
	close(p.shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), workerShutdownTimeout)
	defer cancel()

	for _, w := range p.workers {
		_ = w.Shutdown(ctx)
	}

	p.closeProcessors(context.Background())
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	// First close the queue to stop new jobs
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	// Stop the metrics updater
	close(p.shutdown)

	// Wait for all workers to finish or context to timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	p.closeProcessors(ctx)
	return nil
}

// closeProcessors releases processor resources for workers that hold any.
func (p *Pool[T]) closeProcessors(ctx context.Context) {
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		if closer, ok := any(w.processor).(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				p.logger.Warn(ctx, "error closing processor", logger.Error(err))
			}
		}
	}
}
