// Package video wraps OpenCV video capture, writing, and object tracking
// for the pipeline stages that touch raw footage.
package video

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/lanefour/divetrace/internal/domain/model"
	"github.com/lanefour/divetrace/internal/domain/pose"
	"github.com/lanefour/divetrace/pkg/metrics"
)

// Capture reads frames from a video file.
type Capture struct {
	vc   *gocv.VideoCapture
	info model.VideoInfo
}

// Open opens the video at path and reads its stream properties.
func Open(path string) (*Capture, error) {
	vc, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenVideo, path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrOpenVideo, path)
	}

	width := int(vc.Get(gocv.VideoCaptureFrameWidth))
	height := int(vc.Get(gocv.VideoCaptureFrameHeight))
	return &Capture{
		vc: vc,
		info: model.VideoInfo{
			Path:        path,
			FPS:         vc.Get(gocv.VideoCaptureFPS),
			TotalFrames: int(vc.Get(gocv.VideoCaptureFrameCount)),
			Width:       width,
			Height:      height,
			Orientation: pose.Orientation(width, height),
		},
	}, nil
}

// Info returns the stream properties read at open time.
func (c *Capture) Info() model.VideoInfo {
	return c.info
}

// Read decodes the next frame into dst. It returns false at end of stream.
func (c *Capture) Read(dst *gocv.Mat) bool {
	if !c.vc.Read(dst) {
		return false
	}
	metrics.RecordFrameDecoded()
	return true
}

// Close releases the underlying capture handle.
func (c *Capture) Close() error {
	return c.vc.Close()
}

// ValidateROI checks that roi is non-degenerate and lies inside a frame of
// the given dimensions.
func ValidateROI(roi model.ROI, width, height int) error {
	if roi.Width <= 0 || roi.Height <= 0 {
		return fmt.Errorf("%w: %dx%d region", ErrInvalidROI, roi.Width, roi.Height)
	}
	if roi.X < 0 || roi.Y < 0 || roi.X+roi.Width > width || roi.Y+roi.Height > height {
		return fmt.Errorf("%w: region (%d,%d %dx%d) exceeds frame %dx%d",
			ErrInvalidROI, roi.X, roi.Y, roi.Width, roi.Height, width, height)
	}
	return nil
}
