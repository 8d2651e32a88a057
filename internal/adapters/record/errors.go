package record

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrChecksum = errors.New("record checksum mismatch")
	ErrCorrupt  = errors.New("corrupt record stream")
)
