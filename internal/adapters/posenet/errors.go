package posenet

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As
// from callers.
var (
	// ErrLoadModel indicates the landmark model file could not be loaded.
	ErrLoadModel = errors.New("unable to load landmark model")

	// ErrBadOutput indicates the network produced a tensor of an
	// unexpected shape.
	ErrBadOutput = errors.New("unexpected network output")
)
