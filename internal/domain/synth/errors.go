package synth

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInconsistentDataset = errors.New("inconsistent synthetic dataset")
)
