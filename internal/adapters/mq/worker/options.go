// Package worker defines the worker pool that drains the frame queue for
// asynchronous pose inference.
package worker

import (
	"github.com/lanefour/divetrace/pkg/logger"
)

type workerConfig struct {
	name      string
	logger    logger.Logger
	processed func()
}

// Option applies a configuration option to a worker.
type Option func(*workerConfig)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(c *workerConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(c *workerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProcessedHook registers a callback invoked after each successfully
// processed job.
func WithProcessedHook(hook func()) Option {
	return func(c *workerConfig) {
		if hook != nil {
			c.processed = hook
		}
	}
}
