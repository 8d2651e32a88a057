// Package pose turns per-frame keypoints into classifier feature vectors
// and normalizes pixel coordinates into the unit square.
package pose

import (
	"github.com/lanefour/divetrace/internal/domain/model"
)

// TrainingKeypoints are the landmark indices the classifier trains on:
// nose, shoulders, elbows, wrists, hips, knees and ankles.
var TrainingKeypoints = []int{0, 11, 12, 13, 14, 15, 16, 23, 24, 25, 26, 27, 28}

// Each training keypoint contributes x, y, z and visibility.
const valuesPerKeypoint = 4

// FeatureCount is the flattened feature vector length.
const FeatureCount = 52

// Frame orientations stamped into video info during normalization.
const (
	OrientationVertical   = "vertical"
	OrientationHorizontal = "horizontal"
)

// Flatten builds the feature vector for one frame. Keypoints are emitted
// in TrainingKeypoints order as x, y, z, visibility; missing keypoints
// contribute zeros so the vector length is always FeatureCount.
func Flatten(kps model.FrameKeypoints) []float32 {
	flat := make([]float32, 0, FeatureCount)
	for _, idx := range TrainingKeypoints {
		kp, ok := kps[idx]
		if !ok {
			flat = append(flat, 0, 0, 0, 0)
			continue
		}
		flat = append(flat, float32(kp.X), float32(kp.Y), float32(kp.Z), float32(kp.Visibility))
	}
	return flat
}

// Orientation classifies a frame shape. Height strictly greater than width
// reads as vertical.
func Orientation(width, height int) string {
	if height > width {
		return OrientationVertical
	}
	return OrientationHorizontal
}

// NormalizeFrame returns a copy of one frame's keypoints scaled into the
// unit square. Inference paths use it so raw pixel coordinates match the
// layout the classifier was trained on.
func NormalizeFrame(kps model.FrameKeypoints, width, height int) (model.FrameKeypoints, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrMissingDimensions
	}
	out := make(model.FrameKeypoints, len(kps))
	for idx, kp := range kps {
		kp.X /= float64(width)
		kp.Y /= float64(height)
		out[idx] = kp
	}
	return out, nil
}

// NormalizeDataset scales every keypoint into the unit square, dividing x
// by the frame width and y by the frame height, and stamps the dimensions
// and orientation into the video info. Explicit width/height arguments
// override the dataset's own; when neither source has them it fails with
// ErrMissingDimensions.
func NormalizeDataset(ds *model.Dataset, width, height int) error {
	if width <= 0 {
		width = ds.VideoInfo.Width
	}
	if height <= 0 {
		height = ds.VideoInfo.Height
	}
	if width <= 0 || height <= 0 {
		return ErrMissingDimensions
	}

	ds.VideoInfo.Width = width
	ds.VideoInfo.Height = height
	ds.VideoInfo.Orientation = Orientation(width, height)

	for i := range ds.FrameData {
		for idx, kp := range ds.FrameData[i].Keypoints {
			kp.X /= float64(width)
			kp.Y /= float64(height)
			ds.FrameData[i].Keypoints[idx] = kp
		}
	}
	return nil
}
