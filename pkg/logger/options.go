package logger

import (
	"io"
	"os"
)

// Output formats for the global logger handler.
const (
	FormatText = "text"
	FormatJSON = "json"
)

type options struct {
	format    string
	writer    io.Writer
	addCaller bool
}

func defaultOptions() options {
	return options{
		format:    FormatText,
		writer:    os.Stdout,
		addCaller: true,
	}
}

// Option applies a configuration option to Init.
type Option func(*options)

// WithFormat selects the handler format (text or json).
func WithFormat(format string) Option {
	return func(o *options) {
		if format == FormatText || format == FormatJSON {
			o.format = format
		}
	}
}

// WithWriter redirects log output, e.g. to a buffer in tests.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.writer = w
		}
	}
}

// WithCaller toggles the source file:line annotation on every entry.
func WithCaller(enabled bool) Option {
	return func(o *options) {
		o.addCaller = enabled
	}
}
