package video_test

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/lanefour/divetrace/internal/adapters/video"
	"github.com/lanefour/divetrace/internal/domain/model"
)

func TestValidateROI(t *testing.T) {
	Convey("Given a 1920x1080 frame", t, func() {
		const width, height = 1920, 1080

		Convey("A region inside the frame is accepted", func() {
			roi := model.ROI{X: 100, Y: 50, Width: 640, Height: 480}
			So(video.ValidateROI(roi, width, height), ShouldBeNil)
		})

		Convey("A region covering the whole frame is accepted", func() {
			roi := model.ROI{X: 0, Y: 0, Width: width, Height: height}
			So(video.ValidateROI(roi, width, height), ShouldBeNil)
		})

		Convey("A region crossing the right edge is rejected", func() {
			roi := model.ROI{X: 1800, Y: 0, Width: 200, Height: 100}
			err := video.ValidateROI(roi, width, height)
			So(errors.Is(err, video.ErrInvalidROI), ShouldBeTrue)
		})

		Convey("A region crossing the bottom edge is rejected", func() {
			roi := model.ROI{X: 0, Y: 1000, Width: 100, Height: 200}
			err := video.ValidateROI(roi, width, height)
			So(errors.Is(err, video.ErrInvalidROI), ShouldBeTrue)
		})

		Convey("A region with a negative origin is rejected", func() {
			roi := model.ROI{X: -1, Y: 0, Width: 100, Height: 100}
			err := video.ValidateROI(roi, width, height)
			So(errors.Is(err, video.ErrInvalidROI), ShouldBeTrue)
		})

		Convey("A degenerate region is rejected", func() {
			roi := model.ROI{X: 10, Y: 10, Width: 0, Height: 100}
			err := video.ValidateROI(roi, width, height)
			So(errors.Is(err, video.ErrInvalidROI), ShouldBeTrue)
		})
	})
}

func TestNewTrackerKind(t *testing.T) {
	Convey("Given a tracker kind", t, func() {
		Convey("An unknown kind is rejected with the known kinds named", func() {
			_, err := video.NewTracker("mosse")
			So(errors.Is(err, video.ErrUnknownTracker), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "csrt")
			So(err.Error(), ShouldContainSubstring, "kcf")
		})

		Convey("Kind matching is case-insensitive", func() {
			tracker, err := video.NewTracker("CSRT")
			So(err, ShouldBeNil)
			So(tracker, ShouldNotBeNil)
			tracker.Close()
		})
	})
}

func TestOpenMissingVideo(t *testing.T) {
	Convey("Opening a nonexistent video fails with ErrOpenVideo", t, func() {
		_, err := video.Open("testdata/definitely-missing.mp4")
		So(errors.Is(err, video.ErrOpenVideo), ShouldBeTrue)
	})
}
