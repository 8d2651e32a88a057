package video

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Writer encodes frames to a video file.
type Writer struct {
	vw    *gocv.VideoWriter
	codec string
	count int
}

// NewWriter opens a video writer at path with the given frame geometry.
func NewWriter(path string, fps float64, width, height int, opts ...Option) (*Writer, error) {
	w := &Writer{codec: defaultCodec}
	for _, opt := range opts {
		opt(w)
	}

	vw, err := gocv.VideoWriterFile(path, w.codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenWriter, path, err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("%w: %s (codec %s)", ErrOpenWriter, path, w.codec)
	}
	w.vw = vw
	return w, nil
}

// Write encodes one frame.
func (w *Writer) Write(frame gocv.Mat) error {
	if err := w.vw.Write(frame); err != nil {
		return fmt.Errorf("encode frame %d: %w", w.count, err)
	}
	w.count++
	return nil
}

// Count returns the number of frames written so far.
func (w *Writer) Count() int {
	return w.count
}

// Close finalizes the output file.
func (w *Writer) Close() error {
	return w.vw.Close()
}
