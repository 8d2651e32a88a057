package video

import (
	"context"
	"fmt"
	"image"
	"strings"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"

	"github.com/lanefour/divetrace/internal/domain/model"
	"github.com/lanefour/divetrace/pkg/metrics"
)

// Supported tracker kinds.
const (
	TrackerCSRT = "csrt"
	TrackerKCF  = "kcf"
)

// NewTracker creates an OpenCV tracker of the given kind.
func NewTracker(kind string) (gocv.Tracker, error) {
	switch strings.ToLower(kind) {
	case TrackerCSRT:
		return contrib.NewTrackerCSRT(), nil
	case TrackerKCF:
		return contrib.NewTrackerKCF(), nil
	default:
		return nil, fmt.Errorf("%w: %q (known: %s, %s)", ErrUnknownTracker, kind, TrackerCSRT, TrackerKCF)
	}
}

// Track seeds a tracker with seed on the first frame of the video at src and
// follows it through the stream, recording one box per decoded frame. Frames
// where the tracker lost the target repeat the last fix and are listed in
// Lost.
func Track(ctx context.Context, src string, seed model.ROI, kind string, opts ...TrackOption) (*model.TrackFile, error) {
	cfg := trackConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	capture, err := Open(src)
	if err != nil {
		return nil, err
	}
	defer capture.Close()

	info := capture.Info()
	if err := ValidateROI(seed, info.Width, info.Height); err != nil {
		return nil, err
	}

	tracker, err := NewTracker(kind)
	if err != nil {
		return nil, err
	}
	defer tracker.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	if !capture.Read(&frame) || frame.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrNoFrames, src)
	}

	rect := image.Rect(seed.X, seed.Y, seed.X+seed.Width, seed.Y+seed.Height)
	if !tracker.Init(frame, rect) {
		return nil, fmt.Errorf("%w: %s tracker on %s", ErrTrackerInit, kind, src)
	}

	var annotated *Writer
	if cfg.annotatePath != "" {
		annotated, err = NewWriter(cfg.annotatePath, info.FPS, info.Width, info.Height)
		if err != nil {
			return nil, err
		}
		defer annotated.Close()
	}

	out := &model.TrackFile{VideoInfo: info}
	out.Boxes = append(out.Boxes, boxFromRect(0, rect))
	metrics.RecordFrameProcessed()
	if annotated != nil {
		DrawBox(&frame, seed, kind)
		if err := annotated.Write(frame); err != nil {
			return nil, err
		}
	}

	for n := 1; capture.Read(&frame); n++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("track cancelled: %w", err)
		}
		if frame.Empty() {
			metrics.RecordFrameSkipped()
			continue
		}

		box, ok := tracker.Update(frame)
		if ok {
			out.Boxes = append(out.Boxes, boxFromRect(n, box))
			metrics.RecordFrameProcessed()
		} else {
			// Repeat the last fix so the trace stays per-frame.
			last := out.Boxes[len(out.Boxes)-1]
			last.Frame = n
			last.Tracked = false
			out.Boxes = append(out.Boxes, last)
			out.Lost = append(out.Lost, n)
			metrics.RecordFrameSkipped()
		}

		if annotated != nil {
			if ok {
				DrawBox(&frame, roiFromRect(box), kind)
			} else {
				DrawLabel(&frame, "track lost")
			}
			if err := annotated.Write(frame); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

func boxFromRect(frame int, r image.Rectangle) model.TrackedBox {
	return model.TrackedBox{
		Frame:   frame,
		X:       r.Min.X,
		Y:       r.Min.Y,
		Width:   r.Dx(),
		Height:  r.Dy(),
		Tracked: true,
	}
}

func roiFromRect(r image.Rectangle) model.ROI {
	return model.ROI{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}
