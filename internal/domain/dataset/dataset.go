// Package dataset assembles merged datasets and prepares them for training:
// joining phase spans with pose frames, splitting into train/val/test and
// packing labeled frames into feature samples.
package dataset

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lanefour/divetrace/internal/domain/model"
	"github.com/lanefour/divetrace/internal/domain/phase"
	"github.com/lanefour/divetrace/internal/domain/pose"
)

// Merge joins imported phase spans with extracted pose frames into one
// dataset. Every pose frame appears in the output, ordered by frame number;
// frames outside every span carry the untagged annotation. Video info
// starts from the phase file and borrows path and dimensions from the pose
// header when the phase file lacks them.
func Merge(phases model.PhaseFile, poses model.PoseFile) (*model.Dataset, error) {
	fps := phases.VideoInfo.FPS
	ix, err := phase.NewIndex(phases.Phases, fps)
	if err != nil {
		return nil, err
	}

	info := phases.VideoInfo
	if info.Path == "" {
		info.Path = poses.VideoInfo.Path
	}
	if info.Width == 0 {
		info.Width = poses.VideoInfo.Width
	}
	if info.Height == 0 {
		info.Height = poses.VideoInfo.Height
	}

	ds := &model.Dataset{
		VideoInfo:     info,
		PhasesSummary: phases.Phases,
		FrameData:     make([]model.FrameRecord, 0, len(poses.Frames)),
	}
	for frame, kps := range poses.Frames {
		ds.FrameData = append(ds.FrameData, model.FrameRecord{
			Frame:     frame,
			Timestamp: float64(frame) / fps,
			Keypoints: kps,
			PhaseInfo: ix.Lookup(frame),
		})
	}
	sort.Slice(ds.FrameData, func(i, j int) bool {
		return ds.FrameData[i].Frame < ds.FrameData[j].Frame
	})
	return ds, nil
}

// Ratios are the train/val/test fractions of a split.
type Ratios struct {
	Train float64 `json:"train"`
	Val   float64 `json:"val"`
	Test  float64 `json:"test"`
}

// DefaultRatios returns the standard 70/20/10 split.
func DefaultRatios() Ratios {
	return Ratios{Train: 0.7, Val: 0.2, Test: 0.1}
}

const ratioSumTolerance = 1e-9

func (r Ratios) validate() error {
	if r.Train <= 0 || r.Val <= 0 || r.Test <= 0 {
		return fmt.Errorf("%w: all ratios must be positive", ErrInvalidRatios)
	}
	sum := r.Train + r.Val + r.Test
	if sum < 1-ratioSumTolerance || sum > 1+ratioSumTolerance {
		return fmt.Errorf("%w: ratios sum to %v, want 1", ErrInvalidRatios, sum)
	}
	return nil
}

// Manifest records how a split was produced so it can be reproduced.
type Manifest struct {
	RunID       string    `json:"run_id"`
	Seed        int64     `json:"seed"`
	Ratios      Ratios    `json:"ratios"`
	TrainFrames int       `json:"train_frames"`
	ValFrames   int       `json:"val_frames"`
	TestFrames  int       `json:"test_frames"`
	CreatedAt   time.Time `json:"created_at"`
}

// Splits holds the three split datasets and their manifest.
type Splits struct {
	Train *model.Dataset
	Val   *model.Dataset
	Test  *model.Dataset

	Manifest Manifest
}

// Split shuffles the dataset's frames with a seeded generator and cuts them
// at floor(total*train) and floor(total*(train+val)). The same seed always
// produces the same split, and the three outputs partition the input.
func Split(ds *model.Dataset, ratios Ratios, seed int64) (*Splits, error) {
	if err := ratios.validate(); err != nil {
		return nil, err
	}

	frames := make([]model.FrameRecord, len(ds.FrameData))
	copy(frames, ds.FrameData)
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible shuffling, not cryptography
	rng.Shuffle(len(frames), func(i, j int) {
		frames[i], frames[j] = frames[j], frames[i]
	})

	total := len(frames)
	trainEnd := int(float64(total) * ratios.Train)
	valEnd := int(float64(total) * (ratios.Train + ratios.Val))

	withFrames := func(subset []model.FrameRecord) *model.Dataset {
		return &model.Dataset{
			VideoInfo:     ds.VideoInfo,
			PhasesSummary: ds.PhasesSummary,
			FrameData:     subset,
		}
	}

	return &Splits{
		Train: withFrames(frames[:trainEnd]),
		Val:   withFrames(frames[trainEnd:valEnd]),
		Test:  withFrames(frames[valEnd:]),
		Manifest: Manifest{
			RunID:       uuid.NewString(),
			Seed:        seed,
			Ratios:      ratios,
			TrainFrames: trainEnd,
			ValFrames:   valEnd - trainEnd,
			TestFrames:  total - valEnd,
			CreatedAt:   time.Now().UTC(),
		},
	}, nil
}

// Pack turns a dataset's labeled frames into training samples. Labels come
// from the phase spans; frames no span covers are skipped. A span carrying
// a phase outside the known set fails the whole pack.
func Pack(ds *model.Dataset) ([]model.Sample, error) {
	frameLabel := make(map[int]int)
	for _, span := range ds.PhasesSummary {
		label, ok := model.PhaseLabel(span.Phase)
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %s)",
				ErrUnknownPhase, span.Phase, strings.Join(model.PhaseNames, ", "))
		}
		for frame := span.StartFrame; frame <= span.EndFrame; frame++ {
			frameLabel[frame] = label
		}
	}

	samples := make([]model.Sample, 0, len(ds.FrameData))
	for _, frame := range ds.FrameData {
		label, ok := frameLabel[frame.Frame]
		if !ok {
			continue
		}
		samples = append(samples, model.Sample{
			Features: pose.Flatten(frame.Keypoints),
			Label:    label,
		})
	}
	return samples, nil
}

// LabelCounts tallies samples per class, indexed by class label.
func LabelCounts(samples []model.Sample) []int {
	counts := make([]int, len(model.PhaseNames))
	for _, s := range samples {
		if s.Label >= 0 && s.Label < len(counts) {
			counts[s.Label]++
		}
	}
	return counts
}
