package dataset

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidRatios = errors.New("invalid split ratios")
	ErrUnknownPhase  = errors.New("unknown phase label")
)
