// Package posenet runs body-landmark inference on video frames through the
// OpenCV DNN module.
package posenet

import (
	"gocv.io/x/gocv"

	"github.com/lanefour/divetrace/internal/domain/model"
)

// Estimator defines the interface for pose estimation implementations.
type Estimator interface {
	// Estimate analyzes a video frame and returns the detected body
	// landmarks in pixel coordinates. Returns an empty map when no
	// pose is detected.
	Estimate(frame *gocv.Mat) (model.FrameKeypoints, error)

	// Close releases any resources held by the estimator.
	Close() error
}
