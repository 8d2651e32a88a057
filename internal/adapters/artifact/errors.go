package artifact

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As
// from callers.
var (
	// ErrNotFound indicates no artifact exists at the requested path.
	ErrNotFound = errors.New("artifact not found")

	// ErrCorruptArtifact indicates an artifact exists but could not
	// be decoded.
	ErrCorruptArtifact = errors.New("corrupt artifact")
)
