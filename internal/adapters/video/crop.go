package video

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/lanefour/divetrace/internal/domain/model"
	"github.com/lanefour/divetrace/internal/domain/pose"
	"github.com/lanefour/divetrace/pkg/metrics"
)

// CropResult describes a finished crop run.
type CropResult struct {
	Source model.VideoInfo `json:"source"`
	Output model.VideoInfo `json:"output"`
}

// Crop writes a copy of the video at src containing only the roi region of
// every frame, preserving FPS.
func Crop(ctx context.Context, src, dst string, roi model.ROI, opts ...Option) (*CropResult, error) {
	capture, err := Open(src)
	if err != nil {
		return nil, err
	}
	defer capture.Close()

	info := capture.Info()
	if err := ValidateROI(roi, info.Width, info.Height); err != nil {
		return nil, err
	}

	out, err := NewWriter(dst, info.FPS, roi.Width, roi.Height, opts...)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	rect := image.Rect(roi.X, roi.Y, roi.X+roi.Width, roi.Y+roi.Height)
	frame := gocv.NewMat()
	defer frame.Close()

	for capture.Read(&frame) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("crop cancelled: %w", err)
		}
		if frame.Empty() {
			metrics.RecordFrameSkipped()
			continue
		}

		region := frame.Region(rect)
		err := out.Write(region)
		region.Close()
		if err != nil {
			return nil, err
		}
		metrics.RecordFrameProcessed()
	}

	return &CropResult{
		Source: info,
		Output: model.VideoInfo{
			Path:        dst,
			FPS:         info.FPS,
			TotalFrames: out.Count(),
			Width:       roi.Width,
			Height:      roi.Height,
			Orientation: pose.Orientation(roi.Width, roi.Height),
		},
	}, nil
}
