// Package main dataset commands: phases, merge, normalize, split, pack,
// inspect and synth build and examine training artifacts.
package main

import (
	"fmt"

	"github.com/lanefour/divetrace/internal/domain/model"
	"github.com/lanefour/divetrace/internal/domain/phase"
	"github.com/lanefour/divetrace/internal/domain/synth"
	"github.com/spf13/cobra"
)

var (
	phasesIn  string
	phasesOut string

	mergePhases string
	mergePoses  string
	mergeOut    string
	mergeStats  bool

	normalizeIn     string
	normalizeOut    string
	normalizeWidth  int
	normalizeHeight int

	splitIn     string
	splitOutDir string
	splitTrain  float64
	splitVal    float64
	splitTest   float64
	splitSeed   int64

	packIn  string
	packOut string

	synthOut      string
	synthSeed     int64
	synthDives    int
	synthFPS      float64
	synthWidth    int
	synthHeight   int
	synthNoise    float64
	synthDropRate float64
)

// phasesCmd imports annotation exports
var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "Import phase annotations from CVAT XML or COCO JSON",
	Long: `Reads an annotation export, groups per-frame phase tags into
contiguous spans and writes the phase artifact. The export format is
picked by file extension: .xml reads as CVAT, everything else as COCO.

Example:
  divetrace phases --in annotations.xml --out phases.json`,
	RunE: runPhases,
}

// mergeCmd joins phases and poses
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge phase spans and pose keypoints into a dataset",
	Long: `Joins the phase artifact with the pose artifact on frame number and
writes one dataset carrying keypoints and phase labels per frame.
Frames outside every span are labeled untagged.

Example:
  divetrace merge --phases phases.json --poses poses.json --out dataset.json`,
	RunE: runMerge,
}

// normalizeCmd scales keypoints into the unit square
var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize dataset keypoints into the unit square",
	Long: `Scales pixel keypoint coordinates by the frame dimensions so every
coordinate lands in [0, 1] and stamps the frame orientation. Width and
height default to the dataset's own dimensions.

Example:
  divetrace normalize --in dataset.json --out dataset_normalized.json`,
	RunE: runNormalize,
}

// splitCmd partitions a dataset
var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split a dataset into train, val and test parts",
	Long: `Shuffles the dataset frames with a seeded generator and partitions
them by the given ratios. Writes train.json, val.json, test.json and a
manifest recording the split parameters.

Example:
  divetrace split --in dataset_normalized.json --out-dir split/ --seed 42`,
	RunE: runSplit,
}

// packCmd encodes training records
var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Pack a dataset into binary training records",
	Long: `Flattens tagged dataset frames into feature vectors and writes them
as length-prefixed binary records ready for training. Untagged frames
are dropped.

Example:
  divetrace pack --in split/train.json --out pack/train.tfrecord`,
	RunE: runPack,
}

// inspectCmd summarizes an artifact
var inspectCmd = &cobra.Command{
	Use:   "inspect [artifact]",
	Short: "Summarize a dataset or record artifact",
	Long: `Prints a summary of the artifact at the given path. Record files
(.tfrecord) report sample and feature counts; datasets report video
info and per-phase frame statistics.

Example:
  divetrace inspect dataset.json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

// synthCmd generates a synthetic dataset
var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Generate a synthetic dive dataset",
	Long: `Generates a labeled dataset of synthetic dives for pipeline tests
and classifier smoke training. Equal seeds reproduce equal datasets.

Example:
  divetrace synth --out synthetic.json --dives 16 --seed 7`,
	RunE: runSynth,
}

func init() {
	phasesCmd.Flags().StringVar(&phasesIn, "in", "", "Annotation export file (required)")
	phasesCmd.Flags().StringVar(&phasesOut, "out", "", "Output phase artifact (required)")
	_ = phasesCmd.MarkFlagRequired("in")
	_ = phasesCmd.MarkFlagRequired("out")

	mergeCmd.Flags().StringVar(&mergePhases, "phases", "", "Phase artifact (required)")
	mergeCmd.Flags().StringVar(&mergePoses, "poses", "", "Pose artifact (required)")
	mergeCmd.Flags().StringVar(&mergeOut, "out", "", "Output dataset (required)")
	mergeCmd.Flags().BoolVar(&mergeStats, "stats", false, "Include per-phase frame statistics")
	_ = mergeCmd.MarkFlagRequired("phases")
	_ = mergeCmd.MarkFlagRequired("poses")
	_ = mergeCmd.MarkFlagRequired("out")

	normalizeCmd.Flags().StringVar(&normalizeIn, "in", "", "Input dataset (required)")
	normalizeCmd.Flags().StringVar(&normalizeOut, "out", "", "Output dataset (required)")
	normalizeCmd.Flags().IntVar(&normalizeWidth, "width", 0, "Frame width override")
	normalizeCmd.Flags().IntVar(&normalizeHeight, "height", 0, "Frame height override")
	_ = normalizeCmd.MarkFlagRequired("in")
	_ = normalizeCmd.MarkFlagRequired("out")

	splitCmd.Flags().StringVar(&splitIn, "in", "", "Input dataset (required)")
	splitCmd.Flags().StringVar(&splitOutDir, "out-dir", "", "Output directory (required)")
	splitCmd.Flags().Float64Var(&splitTrain, "train", 0, "Train ratio (defaults from config)")
	splitCmd.Flags().Float64Var(&splitVal, "val", 0, "Val ratio (defaults from config)")
	splitCmd.Flags().Float64Var(&splitTest, "test", 0, "Test ratio (defaults from config)")
	splitCmd.Flags().Int64Var(&splitSeed, "seed", -1, "Shuffle seed (defaults from config)")
	_ = splitCmd.MarkFlagRequired("in")
	_ = splitCmd.MarkFlagRequired("out-dir")

	packCmd.Flags().StringVar(&packIn, "in", "", "Input dataset (required)")
	packCmd.Flags().StringVar(&packOut, "out", "", "Output record file (required)")
	_ = packCmd.MarkFlagRequired("in")
	_ = packCmd.MarkFlagRequired("out")

	synthCmd.Flags().StringVar(&synthOut, "out", "", "Output dataset (required)")
	synthCmd.Flags().Int64Var(&synthSeed, "seed", 42, "Random seed")
	synthCmd.Flags().IntVar(&synthDives, "dives", 0, "Number of dives")
	synthCmd.Flags().Float64Var(&synthFPS, "fps", 0, "Nominal frame rate")
	synthCmd.Flags().IntVar(&synthWidth, "width", 0, "Frame width in pixels")
	synthCmd.Flags().IntVar(&synthHeight, "height", 0, "Frame height in pixels")
	synthCmd.Flags().Float64Var(&synthNoise, "noise", -1, "Landmark noise in pixels")
	synthCmd.Flags().Float64Var(&synthDropRate, "drop-rate", -1, "Fraction of frames without a pose")
	_ = synthCmd.MarkFlagRequired("out")
}

func runPhases(cmd *cobra.Command, args []string) error {
	svc := newService()
	phases, err := svc.ImportPhases(cmd.Context(), phasesIn, phasesOut)
	if err != nil {
		return fmt.Errorf("phase import failed: %w", err)
	}
	return printJSON(map[string]interface{}{
		"output": phasesOut,
		"spans":  len(phases.Phases),
		"frames": phases.VideoInfo.TotalFrames,
	})
}

func runMerge(cmd *cobra.Command, args []string) error {
	svc := newService()
	ds, err := svc.Merge(cmd.Context(), mergePhases, mergePoses, mergeOut)
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	tagged := 0
	for _, fr := range ds.FrameData {
		if fr.PhaseInfo.Phase != model.PhaseUntagged {
			tagged++
		}
	}
	summary := map[string]interface{}{
		"output": mergeOut,
		"frames": len(ds.FrameData),
		"tagged": tagged,
	}
	if mergeStats {
		summary["stats"] = phase.Stats(ds.FrameData)
	}
	return printJSON(summary)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	svc := newService()
	ds, err := svc.Normalize(cmd.Context(), normalizeIn, normalizeOut, normalizeWidth, normalizeHeight)
	if err != nil {
		return fmt.Errorf("normalize failed: %w", err)
	}
	return printJSON(map[string]interface{}{
		"output":      normalizeOut,
		"frames":      len(ds.FrameData),
		"orientation": ds.VideoInfo.Orientation,
	})
}

func runSplit(cmd *cobra.Command, args []string) error {
	ratios := splitRatios(splitTrain, splitVal, splitTest)
	seed := cfg.SplitSeed
	if splitSeed >= 0 {
		seed = splitSeed
	}

	svc := newService()
	splits, err := svc.Split(cmd.Context(), splitIn, splitOutDir, ratios, seed)
	if err != nil {
		return fmt.Errorf("split failed: %w", err)
	}
	return printJSON(splits.Manifest)
}

func runPack(cmd *cobra.Command, args []string) error {
	svc := newService()
	count, err := svc.Pack(cmd.Context(), packIn, packOut)
	if err != nil {
		return fmt.Errorf("pack failed: %w", err)
	}
	return printJSON(map[string]interface{}{
		"output":  packOut,
		"samples": count,
	})
}

func runInspect(cmd *cobra.Command, args []string) error {
	svc := newService()
	summary, err := svc.Inspect(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("inspect failed: %w", err)
	}
	return printJSON(summary)
}

func runSynth(cmd *cobra.Command, args []string) error {
	opts := []synth.Option{
		synth.WithSeed(synthSeed),
		synth.WithDives(synthDives),
		synth.WithFPS(synthFPS),
		synth.WithFrameSize(synthWidth, synthHeight),
		synth.WithNoise(synthNoise),
		synth.WithPoseDropRate(synthDropRate),
	}

	svc := newService()
	ds, err := svc.Synthesize(cmd.Context(), synthOut, opts...)
	if err != nil {
		return fmt.Errorf("synth failed: %w", err)
	}
	return printJSON(map[string]interface{}{
		"output": synthOut,
		"frames": len(ds.FrameData),
		"spans":  len(ds.PhasesSummary),
	})
}
