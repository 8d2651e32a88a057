package classifier

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrFeatureSize  = errors.New("feature vector size mismatch")
	ErrNoSamples    = errors.New("no samples")
	ErrBadLabel     = errors.New("label out of range")
	ErrCorruptModel = errors.New("corrupt model file")
)
