package annotation

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrMalformedExport = errors.New("malformed annotation export")
	ErrUnknownCategory = errors.New("annotation references unknown category")
)
