// Package queue defines the contract for enqueuing and consuming frame jobs.
package queue

type config struct {
	capacity   int
	bufferSize int
}

// Option applies a configuration option to the queue.
type Option func(*config)

// WithCapacity sets the maximum capacity of the queue.
func WithCapacity(capacity int) Option {
	return func(c *config) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// WithBufferSize sets the buffer size for the items channel.
func WithBufferSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.bufferSize = size
		}
	}
}
