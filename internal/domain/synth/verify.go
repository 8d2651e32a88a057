package synth

import (
	"fmt"

	"github.com/lanefour/divetrace/internal/domain/model"
	"github.com/lanefour/divetrace/internal/domain/phase"
)

// Verify checks a generated dataset for internal consistency before it is
// written: contiguous frame numbering, known non-overlapping spans, frame
// annotations agreeing with the span list, and every phase represented.
func Verify(ds *model.Dataset) error {
	if ds.VideoInfo.TotalFrames != len(ds.FrameData) {
		return fmt.Errorf("%w: total_frames %d but %d frame records",
			ErrInconsistentDataset, ds.VideoInfo.TotalFrames, len(ds.FrameData))
	}
	for i, fr := range ds.FrameData {
		if fr.Frame != i {
			return fmt.Errorf("%w: frame %d at position %d", ErrInconsistentDataset, fr.Frame, i)
		}
	}

	seen := make(map[string]bool, len(model.PhaseNames))
	prevEnd := -1
	for _, span := range ds.PhasesSummary {
		if _, ok := model.PhaseLabel(span.Phase); !ok {
			return fmt.Errorf("%w: unknown phase %q", ErrInconsistentDataset, span.Phase)
		}
		if span.StartFrame > span.EndFrame {
			return fmt.Errorf("%w: span %q runs %d..%d", ErrInconsistentDataset,
				span.Phase, span.StartFrame, span.EndFrame)
		}
		if span.DurationFrames != span.EndFrame-span.StartFrame+1 {
			return fmt.Errorf("%w: span %q duration %d does not match bounds %d..%d",
				ErrInconsistentDataset, span.Phase, span.DurationFrames, span.StartFrame, span.EndFrame)
		}
		if span.StartFrame <= prevEnd {
			return fmt.Errorf("%w: span %q starting at %d overlaps previous end %d",
				ErrInconsistentDataset, span.Phase, span.StartFrame, prevEnd)
		}
		prevEnd = span.EndFrame
		seen[span.Phase] = true
	}
	for _, name := range model.PhaseNames {
		if !seen[name] {
			return fmt.Errorf("%w: phase %q never occurs", ErrInconsistentDataset, name)
		}
	}

	ix, err := phase.NewIndex(ds.PhasesSummary, ds.VideoInfo.FPS)
	if err != nil {
		return err
	}
	for _, fr := range ds.FrameData {
		if want := ix.Lookup(fr.Frame).Phase; fr.PhaseInfo.Phase != want {
			return fmt.Errorf("%w: frame %d annotated %q, spans say %q",
				ErrInconsistentDataset, fr.Frame, fr.PhaseInfo.Phase, want)
		}
	}
	return nil
}
