package posenet

import (
	"fmt"
	"math"

	"github.com/lanefour/divetrace/internal/domain/model"
)

// parseLandmarks converts a raw network output tensor into pixel-space
// keypoints. The tensor carries valuesPer floats per landmark: x, y, z in
// input-tensor scale, then a visibility logit (and optionally a presence
// logit, which is ignored). Coordinates are rescaled from the square network
// input to the source frame. When the mean visibility falls below threshold
// the frame is treated as having no detected pose.
func parseLandmarks(raw []float32, valuesPer, inputSize, frameWidth, frameHeight int, threshold float32) (model.FrameKeypoints, error) {
	if valuesPer < 3 {
		return nil, fmt.Errorf("%w: %d values per landmark", ErrBadOutput, valuesPer)
	}
	need := model.LandmarkCount * valuesPer
	if len(raw) < need {
		return nil, fmt.Errorf("%w: got %d values, need %d", ErrBadOutput, len(raw), need)
	}

	kps := make(model.FrameKeypoints, model.LandmarkCount)
	var visSum float32
	for i := 0; i < model.LandmarkCount; i++ {
		v := raw[i*valuesPer:]
		vis := float32(1)
		if valuesPer > 3 {
			vis = sigmoid(v[3])
		}
		visSum += vis
		kps[i] = model.Keypoint{
			X:          float64(v[0]) / float64(inputSize) * float64(frameWidth),
			Y:          float64(v[1]) / float64(inputSize) * float64(frameHeight),
			Z:          float64(v[2]) / float64(inputSize),
			Visibility: float64(vis),
		}
	}

	if visSum/float32(model.LandmarkCount) < threshold {
		return model.FrameKeypoints{}, nil
	}
	return kps, nil
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}
