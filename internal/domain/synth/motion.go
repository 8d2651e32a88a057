package synth

import (
	"math"

	"github.com/lanefour/divetrace/internal/domain/model"
	"github.com/lanefour/divetrace/internal/domain/pose"
)

// Body-center waypoints in fractions of the frame, tuned for a portrait
// crop with the block on the left and the water low right.
const (
	blockX      = 0.30
	blockY      = 0.52
	takeoffEndX = 0.45
	takeoffEndY = 0.46
	flightEndX  = 0.62
	flightEndY  = 0.64
	entryX      = 0.66
	waterY      = 0.78

	// torsoFraction scales skeleton offsets: hip-to-shoulder distance as a
	// fraction of the frame height.
	torsoFraction = 0.16

	setupSwayAmp = 0.006
	setupSwayHz  = 0.4
)

// anchorCount matches len(pose.TrainingKeypoints).
const anchorCount = 13

// anchors are the skeleton joints the postures position directly.
var anchors = pose.TrainingKeypoints

// A posture holds offsets for the skeleton anchors in anchor order, in
// torso units relative to the hip center. Image axes: y grows downward.
type posture [anchorCount][2]float64

// Postures the dive blends through. Offsets are eyeballed from side-on
// reference footage; paired left/right joints sit a few hundredths apart.
var (
	// postureCrouch is the coiled start position on the block.
	postureCrouch = posture{
		{0.45, -0.70},                 // nose
		{0.30, -0.55}, {0.24, -0.51},  // shoulders
		{0.44, -0.16}, {0.38, -0.12},  // elbows
		{0.52, 0.24}, {0.46, 0.28},    // wrists
		{0.00, 0.00}, {-0.05, 0.03},   // hips
		{0.34, 0.36}, {0.29, 0.40},    // knees
		{0.20, 0.78}, {0.15, 0.82},    // ankles
	}

	// postureExtended is full drive extension, arms leading, legs trailing.
	postureExtended = posture{
		{1.00, -0.80},
		{0.80, -0.62}, {0.74, -0.58},
		{1.05, -0.86}, {0.99, -0.82},
		{1.32, -1.08}, {1.26, -1.04},
		{0.00, 0.00}, {-0.05, 0.03},
		{-0.52, 0.42}, {-0.57, 0.46},
		{-1.00, 0.82}, {-1.05, 0.86},
	}

	// postureArc is mid-flight, the body shallowly piked over the apex.
	postureArc = posture{
		{0.90, -0.50},
		{0.72, -0.36}, {0.66, -0.33},
		{0.98, -0.54}, {0.92, -0.51},
		{1.22, -0.70}, {1.16, -0.67},
		{0.00, 0.00}, {-0.05, 0.03},
		{-0.48, 0.28}, {-0.53, 0.31},
		{-0.90, 0.50}, {-0.95, 0.54},
	}

	// postureLine is the streamlined vertical entry, hands first.
	postureLine = posture{
		{0.26, 0.92},
		{0.20, 0.72}, {0.15, 0.70},
		{0.28, 1.06}, {0.23, 1.04},
		{0.34, 1.30}, {0.29, 1.28},
		{0.00, 0.00}, {-0.05, 0.03},
		{-0.12, -0.54}, {-0.16, -0.51},
		{-0.22, -1.10}, {-0.26, -1.06},
	}
)

// satellite is a derived landmark riding on an anchor at a fixed offset.
type satellite struct {
	index  int
	anchor int
	dx, dy float64
}

// satellites fill in the landmarks the postures do not position directly:
// the face cluster around the nose, hands around the wrists, feet around
// the ankles.
var satellites = []satellite{
	{1, 0, 0.03, -0.04}, {2, 0, 0.05, -0.04}, {3, 0, 0.07, -0.04},
	{4, 0, 0.03, -0.06}, {5, 0, 0.05, -0.06}, {6, 0, 0.07, -0.06},
	{7, 0, -0.02, -0.02}, {8, 0, -0.02, -0.05},
	{9, 0, 0.06, 0.02}, {10, 0, 0.05, 0.03},
	{17, 15, 0.10, 0.06}, {19, 15, 0.12, 0.02}, {21, 15, 0.07, -0.03},
	{18, 16, 0.10, 0.08}, {20, 16, 0.12, 0.04}, {22, 16, 0.07, -0.01},
	{29, 27, -0.07, 0.08}, {31, 27, 0.12, 0.11},
	{30, 28, -0.07, 0.10}, {32, 28, 0.12, 0.13},
}

// postureFor picks the body shape for a frame from its phase and the
// progress through the span.
func postureFor(info model.PhaseInfo) posture {
	switch info.Phase {
	case model.PhaseSetup:
		return postureCrouch
	case model.PhaseTakeoff:
		return blend(postureCrouch, postureExtended, info.PhaseProgress)
	case model.PhaseFlight:
		if info.PhaseProgress < 0.5 {
			return blend(postureExtended, postureArc, info.PhaseProgress*2)
		}
		return blend(postureArc, postureLine, info.PhaseProgress*2-1)
	case model.PhaseEntry:
		return postureLine
	default:
		return postureCrouch
	}
}

// center returns the hip-center position in unit frame coordinates. Setup
// holds the block with a slow sway, takeoff drives forward and up, flight
// falls along a parabola and entry drops to the water line.
func center(info model.PhaseInfo) (float64, float64) {
	t := info.PhaseProgress
	switch info.Phase {
	case model.PhaseSetup:
		sway := setupSwayAmp * math.Sin(2*math.Pi*setupSwayHz*info.TimeInPhase)
		return blockX + sway, blockY
	case model.PhaseTakeoff:
		return lerp(blockX, takeoffEndX, t), lerp(blockY, takeoffEndY, t)
	case model.PhaseFlight:
		return lerp(takeoffEndX, flightEndX, t), takeoffEndY + (flightEndY-takeoffEndY)*t*t
	case model.PhaseEntry:
		return lerp(flightEndX, entryX, t), lerp(flightEndY, waterY, t)
	default:
		return blockX, blockY
	}
}

// skeleton expands anchor offsets to all 33 landmarks.
func skeleton(p posture) [model.LandmarkCount][2]float64 {
	var out [model.LandmarkCount][2]float64
	for i, idx := range anchors {
		out[idx] = p[i]
	}
	for _, s := range satellites {
		out[s.index][0] = out[s.anchor][0] + s.dx
		out[s.index][1] = out[s.anchor][1] + s.dy
	}
	return out
}

func blend(a, b posture, t float64) posture {
	var out posture
	for i := range a {
		out[i][0] = lerp(a[i][0], b[i][0], t)
		out[i][1] = lerp(a[i][1], b[i][1], t)
	}
	return out
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
