// Package api declares HTTP contracts and route registration helpers.
package api

import "fmt"

// NewKind labels a sentinel with the operation that raised it.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind labels a sentinel and attaches the underlying cause.
func WrapKind(op string, kind error, err error) error {
	return fmt.Errorf("%s: %w: %v", op, kind, err)
}
