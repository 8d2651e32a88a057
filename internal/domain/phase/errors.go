package phase

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidFPS = errors.New("fps must be positive")
)
