// Package main video commands: crop, track, pose and predict operate
// directly on video files.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cropIn  string
	cropOut string
	cropROI string

	trackIn        string
	trackOut       string
	trackAnnotated string
	trackSeed      string

	poseIn  string
	poseOut string

	predictIn        string
	predictOut       string
	predictAnnotated string
)

// cropCmd cuts a fixed region out of every frame
var cropCmd = &cobra.Command{
	Use:   "crop",
	Short: "Crop a fixed region out of every video frame",
	Long: `Writes a copy of the input video containing only the given region,
preserving the source frame rate.

Example:
  divetrace crop --in dive.mp4 --out dive_crop.mp4 --roi 300,0,480,1080`,
	RunE: runCrop,
}

// trackCmd follows the athlete through the video
var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Track the athlete from a seed box through the video",
	Long: `Follows the subject from a seed rectangle through every frame and
writes the box trace as a JSON artifact. Frames where the tracker lost
the target repeat the last fix and are listed separately.

Example:
  divetrace track --in dive_crop.mp4 --out track.json --seed 120,40,200,380`,
	RunE: runTrack,
}

// poseCmd extracts body keypoints
var poseCmd = &cobra.Command{
	Use:   "pose",
	Short: "Extract body keypoints from every frame",
	Long: `Decodes the video and runs pose inference across a worker pool,
writing per-frame keypoints as a JSON artifact. Frames where no pose
was detected keep an empty keypoint set.

Example:
  divetrace pose --in dive_crop.mp4 --out poses.json`,
	RunE: runPose,
}

// predictCmd classifies a whole video
var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Classify the phase of every frame in a video",
	Long: `Runs pose extraction and the trained classifier over the video and
writes per-frame phase predictions. Frames without a detected pose keep
an empty phase. Requires a trained model, either from config or the
--model flag. With --annotated, also writes a copy of the video with
the predicted phase drawn on each frame.

Example:
  divetrace predict --model model.json --in dive_crop.mp4 --out predictions.json`,
	RunE: runPredict,
}

func init() {
	cropCmd.Flags().StringVar(&cropIn, "in", "", "Input video file (required)")
	cropCmd.Flags().StringVar(&cropOut, "out", "", "Output video file (required)")
	cropCmd.Flags().StringVar(&cropROI, "roi", "", "Crop region as x,y,width,height (required)")
	_ = cropCmd.MarkFlagRequired("in")
	_ = cropCmd.MarkFlagRequired("out")
	_ = cropCmd.MarkFlagRequired("roi")

	trackCmd.Flags().StringVar(&trackIn, "in", "", "Input video file (required)")
	trackCmd.Flags().StringVar(&trackOut, "out", "", "Output track artifact (required)")
	trackCmd.Flags().StringVar(&trackAnnotated, "annotated", "", "Optional annotated preview video")
	trackCmd.Flags().StringVar(&trackSeed, "seed", "", "Seed box as x,y,width,height (required)")
	_ = trackCmd.MarkFlagRequired("in")
	_ = trackCmd.MarkFlagRequired("out")
	_ = trackCmd.MarkFlagRequired("seed")

	poseCmd.Flags().StringVar(&poseIn, "in", "", "Input video file (required)")
	poseCmd.Flags().StringVar(&poseOut, "out", "", "Output pose artifact (required)")
	_ = poseCmd.MarkFlagRequired("in")
	_ = poseCmd.MarkFlagRequired("out")

	predictCmd.Flags().StringVar(&predictIn, "in", "", "Input video file (required)")
	predictCmd.Flags().StringVar(&predictOut, "out", "", "Output prediction artifact (required)")
	predictCmd.Flags().StringVar(&predictAnnotated, "annotated", "", "Optional annotated video with predicted phases")
	_ = predictCmd.MarkFlagRequired("in")
	_ = predictCmd.MarkFlagRequired("out")
}

func runCrop(cmd *cobra.Command, args []string) error {
	roi, err := parseROI(cropROI)
	if err != nil {
		return err
	}

	svc := newService()
	result, err := svc.Crop(cmd.Context(), cropIn, cropOut, roi)
	if err != nil {
		return fmt.Errorf("crop failed: %w", err)
	}
	return printJSON(result)
}

func runTrack(cmd *cobra.Command, args []string) error {
	seed, err := parseROI(trackSeed)
	if err != nil {
		return err
	}

	svc := newService()
	track, err := svc.Track(cmd.Context(), trackIn, trackOut, trackAnnotated, seed)
	if err != nil {
		return fmt.Errorf("track failed: %w", err)
	}
	return printJSON(map[string]interface{}{
		"output": trackOut,
		"frames": len(track.Boxes),
		"lost":   len(track.Lost),
	})
}

func runPose(cmd *cobra.Command, args []string) error {
	svc := newService()
	poses, err := svc.ExtractPose(cmd.Context(), poseIn, poseOut)
	if err != nil {
		return fmt.Errorf("pose extraction failed: %w", err)
	}

	detected := 0
	for _, kps := range poses.Frames {
		if len(kps) > 0 {
			detected++
		}
	}
	return printJSON(map[string]interface{}{
		"output":   poseOut,
		"frames":   poses.VideoInfo.TotalFrames,
		"detected": detected,
	})
}

func runPredict(cmd *cobra.Command, args []string) error {
	if classifierPath() == "" {
		return fmt.Errorf("predict needs a trained model: set --model or model_path in config")
	}

	svc := newService()
	if err := svc.Start(cmd.Context()); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	predictions, err := svc.PredictVideo(cmd.Context(), predictIn, predictOut, predictAnnotated)
	if err != nil {
		return fmt.Errorf("predict failed: %w", err)
	}

	classified := 0
	for _, p := range predictions.Predictions {
		if p.Phase != "" {
			classified++
		}
	}
	return printJSON(map[string]interface{}{
		"output":     predictOut,
		"frames":     len(predictions.Predictions),
		"classified": classified,
		"model_id":   predictions.ModelID,
	})
}
