package video

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As
// from callers.
var (
	// ErrOpenVideo indicates the video file could not be opened.
	ErrOpenVideo = errors.New("unable to open video")

	// ErrOpenWriter indicates the output video could not be created.
	ErrOpenWriter = errors.New("unable to open video writer")

	// ErrInvalidROI indicates a region that is degenerate or outside
	// the frame bounds.
	ErrInvalidROI = errors.New("invalid region of interest")

	// ErrUnknownTracker indicates an unsupported tracker kind.
	ErrUnknownTracker = errors.New("unknown tracker kind")

	// ErrTrackerInit indicates the tracker rejected the seed region.
	ErrTrackerInit = errors.New("tracker initialization failed")

	// ErrNoFrames indicates the video stream yielded no frames.
	ErrNoFrames = errors.New("video contains no frames")
)
