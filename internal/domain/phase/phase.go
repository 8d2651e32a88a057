// Package phase groups frame-level annotations into contiguous phase spans
// and resolves frames back to the span that covers them.
package phase

import (
	"sort"

	"github.com/lanefour/divetrace/internal/domain/model"
)

// GroupSpans folds per-frame tags into maximal runs of consecutive frames
// sharing one phase. A run breaks on a phase change or a frame-number gap.
// Tags are sorted and exact duplicates dropped first; empty input yields an
// empty span list.
func GroupSpans(tags []model.PhaseTag, fps float64) ([]model.PhaseSpan, error) {
	if fps <= 0 {
		return nil, ErrInvalidFPS
	}
	tags = dedupeTags(tags)
	if len(tags) == 0 {
		return []model.PhaseSpan{}, nil
	}

	spans := make([]model.PhaseSpan, 0, 4)
	current := tags[0].Phase
	start := tags[0].Frame
	last := start

	flush := func() {
		spans = append(spans, newSpan(current, start, last, fps))
	}

	for _, tag := range tags[1:] {
		if tag.Phase != current || tag.Frame != last+1 {
			flush()
			current = tag.Phase
			start = tag.Frame
		}
		last = tag.Frame
	}
	flush()

	return spans, nil
}

func newSpan(phase string, start, end int, fps float64) model.PhaseSpan {
	duration := end - start + 1
	return model.PhaseSpan{
		Phase:           phase,
		StartFrame:      start,
		EndFrame:        end,
		DurationFrames:  duration,
		StartTime:       float64(start) / fps,
		EndTime:         float64(end) / fps,
		DurationSeconds: float64(duration) / fps,
	}
}

// dedupeTags sorts tags by frame and removes exact (frame, phase)
// duplicates. Conflicting tags on the same frame are kept; each starts its
// own span and the later one wins during index lookup.
func dedupeTags(tags []model.PhaseTag) []model.PhaseTag {
	sorted := make([]model.PhaseTag, len(tags))
	copy(sorted, tags)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Frame < sorted[j].Frame })

	out := sorted[:0]
	seen := make(map[model.PhaseTag]struct{}, len(sorted))
	for _, tag := range sorted {
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// TotalFrames returns the frame count implied by the spans: one past the
// highest end frame, 0 when empty.
func TotalFrames(spans []model.PhaseSpan) int {
	total := 0
	for _, span := range spans {
		if span.EndFrame+1 > total {
			total = span.EndFrame + 1
		}
	}
	return total
}

// Index resolves a frame number to the phase annotation covering it.
type Index map[int]model.PhaseInfo

// NewIndex expands spans into a frame-level lookup over each span's
// inclusive range. When spans overlap, the later span wins.
func NewIndex(spans []model.PhaseSpan, fps float64) (Index, error) {
	if fps <= 0 {
		return nil, ErrInvalidFPS
	}
	ix := make(Index)
	for _, span := range spans {
		for frame := span.StartFrame; frame <= span.EndFrame; frame++ {
			ix[frame] = model.PhaseInfo{
				Phase:         span.Phase,
				PhaseProgress: float64(frame-span.StartFrame) / float64(span.DurationFrames),
				TimeInPhase:   float64(frame-span.StartFrame) / fps,
			}
		}
	}
	return ix, nil
}

// Lookup returns the annotation for a frame, or the untagged zero
// annotation when no span covers it.
func (ix Index) Lookup(frame int) model.PhaseInfo {
	if info, ok := ix[frame]; ok {
		return info
	}
	return model.PhaseInfo{Phase: model.PhaseUntagged}
}

// Stat summarizes the frames assigned to one phase in a merged dataset.
type Stat struct {
	FrameCount int `json:"frame_count"`
	PoseCount  int `json:"pose_count"`
	MinFrame   int `json:"min_frame"`
	MaxFrame   int `json:"max_frame"`
}

// Stats aggregates per-phase frame and keypoint counts over merged frames.
func Stats(frames []model.FrameRecord) map[string]Stat {
	stats := make(map[string]Stat)
	for _, frame := range frames {
		name := frame.PhaseInfo.Phase
		st, ok := stats[name]
		if !ok {
			st = Stat{MinFrame: frame.Frame, MaxFrame: frame.Frame}
		}
		st.FrameCount++
		st.PoseCount += len(frame.Keypoints)
		if frame.Frame < st.MinFrame {
			st.MinFrame = frame.Frame
		}
		if frame.Frame > st.MaxFrame {
			st.MaxFrame = frame.Frame
		}
		stats[name] = st
	}
	return stats
}
