package pose

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrMissingDimensions = errors.New("frame dimensions unknown")
)
