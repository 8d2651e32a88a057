package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/lanefour/divetrace/internal/adapters/artifact"
	"github.com/lanefour/divetrace/internal/domain/dataset"
	"github.com/lanefour/divetrace/pkg/logger"
)

// RunManifestFile remembers stage digests between runs.
const RunManifestFile = "run_manifest.json"

// RunParams configure a full pipeline run from imported artifacts to an
// evaluated model.
type RunParams struct {
	PhasesPath string
	PosesPath  string
	OutDir     string

	// Normalize dimensions; zero values use the dataset's own.
	Width  int
	Height int

	Ratios    dataset.Ratios
	SplitSeed int64

	Train TrainParams

	// Force reruns every stage even when digests match.
	Force bool
}

// StageResult reports what the run did for one stage.
type StageResult struct {
	Name    string `json:"name"`
	Skipped bool   `json:"skipped"`
	Digest  string `json:"digest"`
}

// RunResult summarizes a pipeline run.
type RunResult struct {
	ModelPath string        `json:"model_path"`
	EvalPath  string        `json:"eval_path"`
	Stages    []StageResult `json:"stages"`
}

// runStage is one entry in the run plan. The digest covers name, params
// and input contents, so a stage reruns exactly when something upstream
// changed.
type runStage struct {
	name    string
	params  string
	inputs  []string
	outputs []string
	run     func(ctx context.Context) error
}

// runManifest persists each stage's input digest across runs.
type runManifest struct {
	Stages map[string]string `json:"stages"`
}

// Run executes merge, normalize, split, pack, train and eval in order,
// skipping stages whose inputs and parameters have not changed since the
// recorded manifest.
func (s *Service) Run(ctx context.Context, params RunParams) (*RunResult, error) {
	out := func(parts ...string) string {
		return path.Join(append([]string{params.OutDir}, parts...)...)
	}

	datasetPath := out("dataset.json")
	normalizedPath := out("dataset_normalized.json")
	splitDir := out("split")
	splitTrain := path.Join(splitDir, SplitTrainFile)
	splitVal := path.Join(splitDir, SplitValFile)
	splitTest := path.Join(splitDir, SplitTestFile)
	packTrain := out("pack", "train.tfrecord")
	packVal := out("pack", "val.tfrecord")
	packTest := out("pack", "test.tfrecord")
	modelPath := out("model.json")
	evalPath := out("evaluation.json")
	manifestPath := out(RunManifestFile)

	stages := []runStage{
		{
			name:    "merge",
			inputs:  []string{params.PhasesPath, params.PosesPath},
			outputs: []string{datasetPath},
			run: func(ctx context.Context) error {
				_, err := s.Merge(ctx, params.PhasesPath, params.PosesPath, datasetPath)
				return err
			},
		},
		{
			name:    "normalize",
			params:  fmt.Sprintf("%dx%d", params.Width, params.Height),
			inputs:  []string{datasetPath},
			outputs: []string{normalizedPath},
			run: func(ctx context.Context) error {
				_, err := s.Normalize(ctx, datasetPath, normalizedPath, params.Width, params.Height)
				return err
			},
		},
		{
			name: "split",
			params: fmt.Sprintf("%v/%v/%v seed=%d",
				params.Ratios.Train, params.Ratios.Val, params.Ratios.Test, params.SplitSeed),
			inputs:  []string{normalizedPath},
			outputs: []string{splitTrain, splitVal, splitTest, path.Join(splitDir, SplitManifestFile)},
			run: func(ctx context.Context) error {
				_, err := s.Split(ctx, normalizedPath, splitDir, params.Ratios, params.SplitSeed)
				return err
			},
		},
		{
			name:    "pack",
			inputs:  []string{splitTrain, splitVal, splitTest},
			outputs: []string{packTrain, packVal, packTest},
			run: func(ctx context.Context) error {
				packs := [][2]string{
					{splitTrain, packTrain},
					{splitVal, packVal},
					{splitTest, packTest},
				}
				for _, p := range packs {
					if _, err := s.Pack(ctx, p[0], p[1]); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			name: "train",
			params: fmt.Sprintf("epochs=%d batch=%d lr=%v seed=%d",
				params.Train.Epochs, params.Train.BatchSize, params.Train.LearningRate, params.Train.Seed),
			inputs:  []string{packTrain, packVal},
			outputs: []string{modelPath},
			run: func(ctx context.Context) error {
				_, _, err := s.Train(ctx, packTrain, packVal, modelPath, params.Train)
				return err
			},
		},
		{
			name:    "eval",
			inputs:  []string{modelPath, packTest},
			outputs: []string{evalPath},
			run: func(ctx context.Context) error {
				_, err := s.Evaluate(ctx, modelPath, packTest, evalPath)
				return err
			},
		},
	}

	manifest := s.readRunManifest(ctx, manifestPath)
	result := &RunResult{ModelPath: modelPath, EvalPath: evalPath}

	for _, stage := range stages {
		digest, err := s.stageDigest(ctx, stage)
		if err != nil {
			return nil, err
		}

		if !params.Force && manifest.Stages[stage.name] == digest && s.outputsExist(stage) {
			s.logger.Info(ctx, "stage unchanged, skipping",
				logger.String("stage", stage.name),
				logger.String("digest", digest[:12]),
			)
			result.Stages = append(result.Stages, StageResult{Name: stage.name, Skipped: true, Digest: digest})
			continue
		}

		s.logger.Info(ctx, "running stage", logger.String("stage", stage.name))
		if err := stage.run(ctx); err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage.name, err)
		}

		manifest.Stages[stage.name] = digest
		if err := s.store.WriteJSON(ctx, manifestPath, manifest); err != nil {
			return nil, err
		}
		result.Stages = append(result.Stages, StageResult{Name: stage.name, Digest: digest})
	}

	return result, nil
}

// stageDigest fingerprints a stage from its name, parameters and input
// contents. Fields are length-prefixed so boundaries stay unambiguous.
func (s *Service) stageDigest(ctx context.Context, stage runStage) (string, error) {
	h := sha256.New()
	writeField := func(data []byte) {
		var length [8]byte
		binary.BigEndian.PutUint64(length[:], uint64(len(data)))
		h.Write(length[:])
		h.Write(data)
	}
	writeField([]byte(stage.name))
	writeField([]byte(stage.params))

	for _, input := range stage.inputs {
		sub := sha256.New()
		err := s.store.ReadWith(ctx, input, func(r io.Reader) error {
			_, cerr := io.Copy(sub, r)
			return cerr
		})
		if errors.Is(err, artifact.ErrNotFound) {
			return "", fmt.Errorf("%w: stage %s needs %s", ErrMissingInput, stage.name, input)
		}
		if err != nil {
			return "", err
		}
		writeField([]byte(input))
		writeField(sub.Sum(nil))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Service) outputsExist(stage runStage) bool {
	for _, out := range stage.outputs {
		if !s.store.Exists(out) {
			return false
		}
	}
	return true
}

func (s *Service) readRunManifest(ctx context.Context, manifestPath string) *runManifest {
	manifest := &runManifest{Stages: make(map[string]string)}
	if err := s.store.ReadJSON(ctx, manifestPath, manifest); err != nil {
		return &runManifest{Stages: make(map[string]string)}
	}
	if manifest.Stages == nil {
		manifest.Stages = make(map[string]string)
	}
	return manifest
}
