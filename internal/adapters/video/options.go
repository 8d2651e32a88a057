package video

const defaultCodec = "mp4v"

// Option configures a Writer.
type Option func(*Writer)

// WithCodec sets the FOURCC codec used for encoding.
func WithCodec(codec string) Option {
	return func(w *Writer) {
		if codec != "" {
			w.codec = codec
		}
	}
}

type trackConfig struct {
	annotatePath string
}

// TrackOption configures a tracking run.
type TrackOption func(*trackConfig)

// WithAnnotatedOutput also writes a copy of the video with the tracked box
// drawn on each frame.
func WithAnnotatedOutput(path string) TrackOption {
	return func(c *trackConfig) {
		c.annotatePath = path
	}
}
