package service

import "errors"

// Sentinel error kinds for this package.
// These allow errors.Is/As from callers.
var (
	ErrModelNotLoaded = errors.New("classifier model not loaded")
	ErrQueueClosed    = errors.New("frame queue closed")
	ErrMissingInput   = errors.New("missing stage input")
)
