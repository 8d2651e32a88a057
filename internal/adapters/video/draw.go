package video

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/lanefour/divetrace/internal/domain/model"
	"github.com/lanefour/divetrace/pkg/metrics"
)

var (
	boxColor   = color.RGBA{G: 255}
	labelColor = color.RGBA{R: 255}
)

// DrawBox draws roi on the frame with an optional label above it.
func DrawBox(frame *gocv.Mat, roi model.ROI, label string) {
	rect := image.Rect(roi.X, roi.Y, roi.X+roi.Width, roi.Y+roi.Height)
	gocv.Rectangle(frame, rect, boxColor, 2)
	if label != "" {
		org := image.Pt(roi.X, roi.Y-8)
		if org.Y < 12 {
			org.Y = roi.Y + 16
		}
		gocv.PutText(frame, label, org, gocv.FontHersheySimplex, 0.5, boxColor, 1)
	}
}

// DrawLabel writes text in the top-left corner of the frame.
func DrawLabel(frame *gocv.Mat, text string) {
	gocv.PutText(frame, text, image.Pt(12, 28), gocv.FontHersheySimplex, 0.8, labelColor, 2)
}

// Annotate writes a copy of the video at src with a label drawn on each
// frame. Labels are keyed by frame number; frames without one pass
// through unchanged. Returns the number of frames written.
func Annotate(ctx context.Context, src, dst string, labels map[int]string) (int, error) {
	capture, err := Open(src)
	if err != nil {
		return 0, err
	}
	defer capture.Close()

	info := capture.Info()
	out, err := NewWriter(dst, info.FPS, info.Width, info.Height)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	for n := 0; capture.Read(&frame); n++ {
		if err := ctx.Err(); err != nil {
			return out.Count(), fmt.Errorf("annotate cancelled: %w", err)
		}
		if frame.Empty() {
			metrics.RecordFrameSkipped()
			continue
		}

		if label, ok := labels[n]; ok && label != "" {
			DrawLabel(&frame, label)
		}
		if err := out.Write(frame); err != nil {
			return out.Count(), err
		}
		metrics.RecordFrameProcessed()
	}

	return out.Count(), nil
}
