package posenet

import (
	"errors"
	"math"
	"testing"

	"github.com/lanefour/divetrace/internal/domain/model"
)

func tensorWith(valuesPer int, x, y, z, vis float32) []float32 {
	raw := make([]float32, model.LandmarkCount*valuesPer)
	for i := 0; i < model.LandmarkCount; i++ {
		v := raw[i*valuesPer:]
		v[0], v[1], v[2] = x, y, z
		if valuesPer > 3 {
			v[3] = vis
		}
		if valuesPer > 4 {
			v[4] = vis
		}
	}
	return raw
}

func TestParseLandmarksScaling(t *testing.T) {
	raw := tensorWith(5, 128, 64, -12.8, 4.0)

	kps, err := parseLandmarks(raw, 5, 256, 1920, 1080, 0.3)
	if err != nil {
		t.Fatalf("parseLandmarks: %v", err)
	}
	if len(kps) != model.LandmarkCount {
		t.Fatalf("expected %d landmarks, got %d", model.LandmarkCount, len(kps))
	}

	kp := kps[0]
	if math.Abs(kp.X-960) > 1e-6 {
		t.Errorf("X = %v, want 960", kp.X)
	}
	if math.Abs(kp.Y-270) > 1e-6 {
		t.Errorf("Y = %v, want 270", kp.Y)
	}
	if math.Abs(kp.Z-(-0.05)) > 1e-6 {
		t.Errorf("Z = %v, want -0.05", kp.Z)
	}
	wantVis := 1 / (1 + math.Exp(-4))
	if math.Abs(kp.Visibility-wantVis) > 1e-6 {
		t.Errorf("Visibility = %v, want %v", kp.Visibility, wantVis)
	}
}

func TestParseLandmarksNoPose(t *testing.T) {
	raw := tensorWith(5, 128, 64, 0, -4.0)

	kps, err := parseLandmarks(raw, 5, 256, 1920, 1080, 0.3)
	if err != nil {
		t.Fatalf("parseLandmarks: %v", err)
	}
	if kps == nil {
		t.Fatal("expected an empty keypoint map, got nil")
	}
	if len(kps) != 0 {
		t.Fatalf("expected no landmarks below the threshold, got %d", len(kps))
	}
}

func TestParseLandmarksWithoutVisibility(t *testing.T) {
	raw := tensorWith(3, 10, 20, 1, 0)

	kps, err := parseLandmarks(raw, 3, 256, 256, 256, 0.5)
	if err != nil {
		t.Fatalf("parseLandmarks: %v", err)
	}
	if len(kps) != model.LandmarkCount {
		t.Fatalf("expected %d landmarks, got %d", model.LandmarkCount, len(kps))
	}
	if kps[5].Visibility != 1 {
		t.Errorf("Visibility = %v, want 1 when the model emits none", kps[5].Visibility)
	}
}

func TestParseLandmarksBadShape(t *testing.T) {
	if _, err := parseLandmarks(make([]float32, 10), 5, 256, 640, 480, 0.3); !errors.Is(err, ErrBadOutput) {
		t.Errorf("short tensor: got %v, want ErrBadOutput", err)
	}
	if _, err := parseLandmarks(make([]float32, model.LandmarkCount*2), 2, 256, 640, 480, 0.3); !errors.Is(err, ErrBadOutput) {
		t.Errorf("two values per landmark: got %v, want ErrBadOutput", err)
	}
}
