// Package main training commands: train, eval and run fit and score the
// phase classifier.
package main

import (
	"fmt"

	service "github.com/lanefour/divetrace/internal/app"
	"github.com/lanefour/divetrace/internal/domain/dataset"
	"github.com/spf13/cobra"
)

var (
	trainIn           string
	trainVal          string
	trainOut          string
	trainEpochs       int
	trainBatchSize    int
	trainLearningRate float64
	trainSeed         int64

	evalIn  string
	evalOut string

	runPhases       string
	runPoses        string
	runOutDir       string
	runWidth        int
	runHeight       int
	runTrainRatio   float64
	runValRatio     float64
	runTestRatio    float64
	runSplitSeed    int64
	runEpochs       int
	runBatchSize    int
	runLearningRate float64
	runTrainSeed    int64
	runForce        bool
)

// trainCmd fits the classifier
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the phase classifier on packed records",
	Long: `Fits the classifier on a packed record file and saves the trained
model. A validation record file, when given, is scored after every
epoch. Training parameters default from config.

Example:
  divetrace train --in pack/train.tfrecord --val pack/val.tfrecord --out model.json`,
	RunE: runTrain,
}

// evalCmd scores a trained model
var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a trained model on packed records",
	Long: `Scores a trained classifier on a packed record file, or directly
on a split dataset JSON, and reports loss, accuracy, the confusion
matrix and per-class precision/recall.

Example:
  divetrace eval --model model.json --in pack/test.tfrecord --out evaluation.json`,
	RunE: runEval,
}

// runCmd executes the dataset stages end to end
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run merge through eval as one pipeline",
	Long: `Executes merge, normalize, split, pack, train and eval as one
pipeline over a phase artifact and a pose artifact. Each stage records
a digest of its parameters and inputs; stages whose digest matches the
previous run are skipped unless --force is set.

Example:
  divetrace run --phases phases.json --poses poses.json --out-dir out/`,
	RunE: runPipeline,
}

func init() {
	trainCmd.Flags().StringVar(&trainIn, "in", "", "Training record file (required)")
	trainCmd.Flags().StringVar(&trainVal, "val", "", "Validation record file")
	trainCmd.Flags().StringVar(&trainOut, "out", "", "Output model file (required)")
	trainCmd.Flags().IntVar(&trainEpochs, "epochs", 0, "Training epochs (defaults from config)")
	trainCmd.Flags().IntVar(&trainBatchSize, "batch-size", 0, "Batch size (defaults from config)")
	trainCmd.Flags().Float64Var(&trainLearningRate, "learning-rate", 0, "Learning rate (defaults from config)")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", -1, "Init and shuffle seed (defaults from config)")
	_ = trainCmd.MarkFlagRequired("in")
	_ = trainCmd.MarkFlagRequired("out")

	evalCmd.Flags().StringVar(&evalIn, "in", "", "Record file or split JSON to score (required)")
	evalCmd.Flags().StringVar(&evalOut, "out", "", "Output evaluation artifact")
	_ = evalCmd.MarkFlagRequired("in")

	runCmd.Flags().StringVar(&runPhases, "phases", "", "Phase artifact (required)")
	runCmd.Flags().StringVar(&runPoses, "poses", "", "Pose artifact (required)")
	runCmd.Flags().StringVar(&runOutDir, "out-dir", "", "Output directory (required)")
	runCmd.Flags().IntVar(&runWidth, "width", 0, "Frame width override for normalize")
	runCmd.Flags().IntVar(&runHeight, "height", 0, "Frame height override for normalize")
	runCmd.Flags().Float64Var(&runTrainRatio, "train", 0, "Train ratio (defaults from config)")
	runCmd.Flags().Float64Var(&runValRatio, "val", 0, "Val ratio (defaults from config)")
	runCmd.Flags().Float64Var(&runTestRatio, "test", 0, "Test ratio (defaults from config)")
	runCmd.Flags().Int64Var(&runSplitSeed, "split-seed", -1, "Shuffle seed (defaults from config)")
	runCmd.Flags().IntVar(&runEpochs, "epochs", 0, "Training epochs (defaults from config)")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 0, "Batch size (defaults from config)")
	runCmd.Flags().Float64Var(&runLearningRate, "learning-rate", 0, "Learning rate (defaults from config)")
	runCmd.Flags().Int64Var(&runTrainSeed, "train-seed", -1, "Init and shuffle seed (defaults from config)")
	runCmd.Flags().BoolVar(&runForce, "force", false, "Rerun every stage even when digests match")
	_ = runCmd.MarkFlagRequired("phases")
	_ = runCmd.MarkFlagRequired("poses")
	_ = runCmd.MarkFlagRequired("out-dir")
}

// trainParams resolves training parameters: flag over config.
func trainParams(epochs, batchSize int, learningRate float64, seed int64) service.TrainParams {
	params := service.TrainParams{
		Epochs:       cfg.TrainEpochs,
		BatchSize:    cfg.TrainBatchSize,
		LearningRate: cfg.TrainLearningRate,
		Seed:         cfg.TrainSeed,
	}
	if epochs > 0 {
		params.Epochs = epochs
	}
	if batchSize > 0 {
		params.BatchSize = batchSize
	}
	if learningRate > 0 {
		params.LearningRate = learningRate
	}
	if seed >= 0 {
		params.Seed = seed
	}
	return params
}

// splitRatios resolves split ratios: flags over config.
func splitRatios(train, val, test float64) dataset.Ratios {
	if train > 0 || val > 0 || test > 0 {
		return dataset.Ratios{Train: train, Val: val, Test: test}
	}
	return dataset.Ratios{Train: cfg.SplitTrain, Val: cfg.SplitVal, Test: cfg.SplitTest}
}

func runTrain(cmd *cobra.Command, args []string) error {
	params := trainParams(trainEpochs, trainBatchSize, trainLearningRate, trainSeed)

	svc := newService()
	network, _, err := svc.Train(cmd.Context(), trainIn, trainVal, trainOut, params)
	if err != nil {
		return fmt.Errorf("train failed: %w", err)
	}
	return printJSON(network.TrainingInfo())
}

func runEval(cmd *cobra.Command, args []string) error {
	if classifierPath() == "" {
		return fmt.Errorf("eval needs a trained model: set --model or model_path in config")
	}

	svc := newService()
	evaluation, err := svc.Evaluate(cmd.Context(), classifierPath(), evalIn, evalOut)
	if err != nil {
		return fmt.Errorf("eval failed: %w", err)
	}
	return printJSON(evaluation)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	seed := cfg.SplitSeed
	if runSplitSeed >= 0 {
		seed = runSplitSeed
	}
	params := service.RunParams{
		PhasesPath: runPhases,
		PosesPath:  runPoses,
		OutDir:     runOutDir,
		Width:      runWidth,
		Height:     runHeight,
		Ratios:     splitRatios(runTrainRatio, runValRatio, runTestRatio),
		SplitSeed:  seed,
		Train:      trainParams(runEpochs, runBatchSize, runLearningRate, runTrainSeed),
		Force:      runForce,
	}

	svc := newService()
	result, err := svc.Run(cmd.Context(), params)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	return printJSON(result)
}
