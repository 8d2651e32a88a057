package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lanefour/divetrace/internal/adapters/artifact"
	service "github.com/lanefour/divetrace/internal/app"
	"github.com/lanefour/divetrace/internal/domain/dataset"
	"github.com/lanefour/divetrace/internal/domain/model"
	"github.com/lanefour/divetrace/internal/domain/synth"
	"github.com/lanefour/divetrace/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service over a temp store", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		store := artifact.NewFileStore()
		svc := service.New(service.WithStore(store))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When running the offline stages over a synthetic dataset", func() {
			datasetPath := filepath.Join(dir, "dataset.json")
			ds, err := svc.Synthesize(ctx, datasetPath,
				synth.WithSeed(11),
				synth.WithDives(4),
			)
			So(err, ShouldBeNil)
			So(store.Exists(datasetPath), ShouldBeTrue)

			normalizedPath := filepath.Join(dir, "normalized.json")
			normalized, err := svc.Normalize(ctx, datasetPath, normalizedPath, 0, 0)
			So(err, ShouldBeNil)
			So(normalized.VideoInfo.Width, ShouldEqual, ds.VideoInfo.Width)

			splitDir := filepath.Join(dir, "split")
			splits, err := svc.Split(ctx, normalizedPath, splitDir, dataset.DefaultRatios(), 7)
			So(err, ShouldBeNil)

			Convey("Then the split partitions every frame", func() {
				total := splits.Manifest.TrainFrames + splits.Manifest.ValFrames + splits.Manifest.TestFrames
				So(total, ShouldEqual, len(ds.FrameData))
				So(store.Exists(filepath.Join(splitDir, service.SplitManifestFile)), ShouldBeTrue)
			})

			Convey("And packing, training and evaluating close the loop", func() {
				packTrain := filepath.Join(dir, "train.tfrecord")
				packVal := filepath.Join(dir, "val.tfrecord")
				packTest := filepath.Join(dir, "test.tfrecord")

				trainCount, err := svc.Pack(ctx, filepath.Join(splitDir, service.SplitTrainFile), packTrain)
				So(err, ShouldBeNil)
				So(trainCount, ShouldBeGreaterThan, 0)

				valCount, err := svc.Pack(ctx, filepath.Join(splitDir, service.SplitValFile), packVal)
				So(err, ShouldBeNil)
				So(valCount, ShouldBeGreaterThan, 0)

				testCount, err := svc.Pack(ctx, filepath.Join(splitDir, service.SplitTestFile), packTest)
				So(err, ShouldBeNil)
				So(testCount, ShouldBeGreaterThan, 0)

				modelPath := filepath.Join(dir, "model.json")
				network, history, err := svc.Train(ctx, packTrain, packVal, modelPath, service.TrainParams{
					Epochs:       3,
					BatchSize:    16,
					LearningRate: 0.005,
					Seed:         1,
				})
				So(err, ShouldBeNil)
				So(len(history), ShouldEqual, 3)
				So(history[0].Validated, ShouldBeTrue)
				So(network.TrainingInfo(), ShouldNotBeNil)
				So(network.TrainingInfo().Samples, ShouldEqual, trainCount)
				So(store.Exists(modelPath), ShouldBeTrue)

				evalPath := filepath.Join(dir, "evaluation.json")
				eval, err := svc.Evaluate(ctx, modelPath, packTest, evalPath)
				So(err, ShouldBeNil)
				So(eval.Samples, ShouldEqual, testCount)
				So(eval.Accuracy, ShouldBeGreaterThanOrEqualTo, 0)
				So(eval.Accuracy, ShouldBeLessThanOrEqualTo, 1)
				So(len(eval.Confusion), ShouldEqual, len(model.PhaseNames))
				So(store.Exists(evalPath), ShouldBeTrue)

				Convey("And eval takes the split JSON directly", func() {
					direct, err := svc.Evaluate(ctx, modelPath, filepath.Join(splitDir, service.SplitTestFile), "")
					So(err, ShouldBeNil)
					So(direct.Samples, ShouldEqual, testCount)
				})

				Convey("And inspect understands both artifact kinds", func() {
					summary, err := svc.Inspect(ctx, datasetPath)
					So(err, ShouldBeNil)
					So(summary["kind"], ShouldEqual, "dataset")
					So(summary["frames"], ShouldEqual, len(ds.FrameData))

					summary, err = svc.Inspect(ctx, packTrain)
					So(err, ShouldBeNil)
					So(summary["kind"], ShouldEqual, "records")
					So(summary["samples"], ShouldEqual, trainCount)
				})
			})
		})
	})
}

func TestServiceRun(t *testing.T) {
	Convey("Given phase and pose artifacts from a synthetic dive", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		store := artifact.NewFileStore()
		svc := service.New(service.WithStore(store))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		ds, err := synth.New(synth.WithSeed(5), synth.WithDives(4)).Generate()
		So(err, ShouldBeNil)

		phases := model.PhaseFile{VideoInfo: ds.VideoInfo, Phases: ds.PhasesSummary}
		poses := model.PoseFile{
			VideoInfo: ds.VideoInfo,
			Frames:    make(map[int]model.FrameKeypoints, len(ds.FrameData)),
		}
		for _, frame := range ds.FrameData {
			poses.Frames[frame.Frame] = frame.Keypoints
		}

		phasesPath := filepath.Join(dir, "phases.json")
		posesPath := filepath.Join(dir, "poses.json")
		So(store.WriteJSON(ctx, phasesPath, phases), ShouldBeNil)
		So(store.WriteJSON(ctx, posesPath, poses), ShouldBeNil)

		params := service.RunParams{
			PhasesPath: phasesPath,
			PosesPath:  posesPath,
			OutDir:     filepath.Join(dir, "run"),
			Ratios:     dataset.DefaultRatios(),
			SplitSeed:  3,
			Train: service.TrainParams{
				Epochs:       2,
				BatchSize:    16,
				LearningRate: 0.005,
				Seed:         2,
			},
		}

		Convey("When running the full pipeline", func() {
			result, err := svc.Run(ctx, params)
			So(err, ShouldBeNil)
			So(len(result.Stages), ShouldEqual, 6)
			for _, stage := range result.Stages {
				So(stage.Skipped, ShouldBeFalse)
				So(stage.Digest, ShouldNotBeEmpty)
			}
			So(store.Exists(result.ModelPath), ShouldBeTrue)
			So(store.Exists(result.EvalPath), ShouldBeTrue)

			Convey("Then an identical rerun skips every stage", func() {
				again, err := svc.Run(ctx, params)
				So(err, ShouldBeNil)
				So(len(again.Stages), ShouldEqual, 6)
				for _, stage := range again.Stages {
					So(stage.Skipped, ShouldBeTrue)
				}
			})

			Convey("Then force reruns every stage", func() {
				forced := params
				forced.Force = true
				again, err := svc.Run(ctx, forced)
				So(err, ShouldBeNil)
				for _, stage := range again.Stages {
					So(stage.Skipped, ShouldBeFalse)
				}
			})

			Convey("Then changing the schedule invalidates train onward", func() {
				tweaked := params
				tweaked.Train.Epochs = 3
				again, err := svc.Run(ctx, tweaked)
				So(err, ShouldBeNil)

				byName := make(map[string]service.StageResult, len(again.Stages))
				for _, stage := range again.Stages {
					byName[stage.Name] = stage
				}
				So(byName["merge"].Skipped, ShouldBeTrue)
				So(byName["normalize"].Skipped, ShouldBeTrue)
				So(byName["split"].Skipped, ShouldBeTrue)
				So(byName["pack"].Skipped, ShouldBeTrue)
				So(byName["train"].Skipped, ShouldBeFalse)
				So(byName["eval"].Skipped, ShouldBeFalse)
			})
		})

		Convey("When a run input is missing", func() {
			bad := params
			bad.PhasesPath = filepath.Join(dir, "nope.json")
			_, err := svc.Run(ctx, bad)

			Convey("Then it fails with the missing input sentinel", func() {
				So(errors.Is(err, service.ErrMissingInput), ShouldBeTrue)
			})
		})
	})
}
