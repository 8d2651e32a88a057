package service

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/lanefour/divetrace/internal/adapters/annotation"
	"github.com/lanefour/divetrace/internal/adapters/record"
	"github.com/lanefour/divetrace/internal/domain/classifier"
	"github.com/lanefour/divetrace/internal/domain/dataset"
	"github.com/lanefour/divetrace/internal/domain/model"
	"github.com/lanefour/divetrace/internal/domain/phase"
	"github.com/lanefour/divetrace/internal/domain/pose"
	"github.com/lanefour/divetrace/internal/domain/synth"
	"github.com/lanefour/divetrace/pkg/logger"
	"github.com/lanefour/divetrace/pkg/metrics"
)

// Split artifact names written under the split output directory.
const (
	SplitTrainFile    = "train.json"
	SplitValFile      = "val.json"
	SplitTestFile     = "test.json"
	SplitManifestFile = "manifest.json"
)

// Record preview size in inspect summaries.
const (
	inspectPreviewSamples  = 3
	inspectPreviewFeatures = 8
)

// ImportPhases parses an annotation export and writes the phase spans
// artifact. Files ending in .xml parse as CVAT, everything else as COCO.
func (s *Service) ImportPhases(ctx context.Context, src, out string) (*model.PhaseFile, error) {
	var imp *annotation.Import
	err := s.store.ReadWith(ctx, src, func(r io.Reader) error {
		var perr error
		if strings.HasSuffix(strings.ToLower(src), ".xml") {
			imp, perr = annotation.ParseCVAT(r)
		} else {
			imp, perr = annotation.ParseCOCO(r)
		}
		return perr
	})
	if err != nil {
		return nil, err
	}
	if len(imp.Skipped) > 0 {
		s.logger.Warn(ctx, "annotation entries skipped",
			logger.Int("count", len(imp.Skipped)),
			logger.Any("entries", imp.Skipped),
		)
	}

	spans, err := phase.GroupSpans(imp.Tags, s.fps)
	if err != nil {
		return nil, err
	}

	phases := &model.PhaseFile{
		VideoInfo: model.VideoInfo{
			TotalFrames: phase.TotalFrames(spans),
			FPS:         s.fps,
			Width:       imp.Width,
			Height:      imp.Height,
		},
		Phases: spans,
	}
	if imp.Width > 0 && imp.Height > 0 {
		phases.VideoInfo.Orientation = pose.Orientation(imp.Width, imp.Height)
	}

	if err := s.store.WriteJSON(ctx, out, phases); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "imported phase annotations",
		logger.String("source", src),
		logger.Int("tags", len(imp.Tags)),
		logger.Int("spans", len(spans)),
	)
	return phases, nil
}

// Merge joins a phase artifact with a pose artifact into the merged
// dataset consumed by the training stages.
func (s *Service) Merge(ctx context.Context, phasesPath, posesPath, out string) (*model.Dataset, error) {
	var phases model.PhaseFile
	if err := s.store.ReadJSON(ctx, phasesPath, &phases); err != nil {
		return nil, err
	}
	var poses model.PoseFile
	if err := s.store.ReadJSON(ctx, posesPath, &poses); err != nil {
		return nil, err
	}

	ds, err := dataset.Merge(phases, poses)
	if err != nil {
		return nil, err
	}
	if err := s.store.WriteJSON(ctx, out, ds); err != nil {
		return nil, err
	}

	tagged := 0
	for _, frame := range ds.FrameData {
		if frame.PhaseInfo.Phase != model.PhaseUntagged {
			tagged++
		}
	}
	s.logger.Info(ctx, "merged dataset",
		logger.String("output", out),
		logger.Int("frames", len(ds.FrameData)),
		logger.Int("tagged", tagged),
		logger.Int("spans", len(ds.PhasesSummary)),
		logger.Any("stats", phase.Stats(ds.FrameData)),
	)
	return ds, nil
}

// Normalize scales a merged dataset's keypoints into the unit square.
// Explicit width/height override the dataset's stamped dimensions.
func (s *Service) Normalize(ctx context.Context, src, out string, width, height int) (*model.Dataset, error) {
	var ds model.Dataset
	if err := s.store.ReadJSON(ctx, src, &ds); err != nil {
		return nil, err
	}
	if err := pose.NormalizeDataset(&ds, width, height); err != nil {
		return nil, err
	}
	if err := s.store.WriteJSON(ctx, out, &ds); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "normalized dataset",
		logger.String("output", out),
		logger.Int("width", ds.VideoInfo.Width),
		logger.Int("height", ds.VideoInfo.Height),
		logger.String("orientation", ds.VideoInfo.Orientation),
	)
	return &ds, nil
}

// Split cuts a merged dataset into train/val/test sets and writes the
// three datasets plus the split manifest under outDir.
func (s *Service) Split(ctx context.Context, src, outDir string, ratios dataset.Ratios, seed int64) (*dataset.Splits, error) {
	var ds model.Dataset
	if err := s.store.ReadJSON(ctx, src, &ds); err != nil {
		return nil, err
	}

	splits, err := dataset.Split(&ds, ratios, seed)
	if err != nil {
		return nil, err
	}

	outputs := map[string]any{
		SplitTrainFile:    splits.Train,
		SplitValFile:      splits.Val,
		SplitTestFile:     splits.Test,
		SplitManifestFile: splits.Manifest,
	}
	for name, v := range outputs {
		if err := s.store.WriteJSON(ctx, path.Join(outDir, name), v); err != nil {
			return nil, err
		}
	}

	s.logger.Info(ctx, "split dataset",
		logger.String("run_id", splits.Manifest.RunID),
		logger.Int64("seed", seed),
		logger.Int("train", splits.Manifest.TrainFrames),
		logger.Int("val", splits.Manifest.ValFrames),
		logger.Int("test", splits.Manifest.TestFrames),
	)
	return splits, nil
}

// Pack flattens a dataset's tagged frames into feature samples and writes
// them as a length-delimited record file. Returns the sample count.
func (s *Service) Pack(ctx context.Context, src, out string) (int, error) {
	var ds model.Dataset
	if err := s.store.ReadJSON(ctx, src, &ds); err != nil {
		return 0, err
	}

	samples, err := dataset.Pack(&ds)
	if err != nil {
		return 0, err
	}

	err = s.store.WriteWith(ctx, out, func(w io.Writer) error {
		writer := record.NewWriter(w)
		for _, sample := range samples {
			if err := writer.Write(sample); err != nil {
				return err
			}
			metrics.RecordRecordWritten()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	counts := dataset.LabelCounts(samples)
	labels := make(map[string]interface{}, len(counts))
	for i, name := range model.PhaseNames {
		labels[name] = counts[i]
	}
	s.logger.Info(ctx, "packed samples",
		logger.String("output", out),
		logger.Int("samples", len(samples)),
		logger.Any("labels", labels),
	)
	return len(samples), nil
}

// Inspect summarizes a pipeline artifact. Record files report sample and
// label counts plus a short record preview, JSON datasets report
// per-phase frame statistics.
func (s *Service) Inspect(ctx context.Context, artifactPath string) (map[string]interface{}, error) {
	if strings.HasSuffix(strings.ToLower(artifactPath), ".tfrecord") {
		return s.inspectRecords(ctx, artifactPath)
	}
	return s.inspectDataset(ctx, artifactPath)
}

func (s *Service) inspectRecords(ctx context.Context, artifactPath string) (map[string]interface{}, error) {
	var samples []model.Sample
	err := s.store.ReadWith(ctx, artifactPath, func(r io.Reader) error {
		var rerr error
		samples, rerr = record.ReadAll(r)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	for range samples {
		metrics.RecordRecordRead()
	}

	counts := dataset.LabelCounts(samples)
	labels := make(map[string]interface{}, len(counts))
	for i, name := range model.PhaseNames {
		labels[name] = counts[i]
	}

	preview := make([]map[string]interface{}, 0, inspectPreviewSamples)
	for i, sample := range samples {
		if i == inspectPreviewSamples {
			break
		}
		head := sample.Features
		if len(head) > inspectPreviewFeatures {
			head = head[:inspectPreviewFeatures]
		}
		name := model.PhaseUntagged
		if sample.Label >= 0 && sample.Label < len(model.PhaseNames) {
			name = model.PhaseNames[sample.Label]
		}
		preview = append(preview, map[string]interface{}{
			"label":    sample.Label,
			"phase":    name,
			"features": head,
		})
	}

	return map[string]interface{}{
		"path":     artifactPath,
		"kind":     "records",
		"samples":  len(samples),
		"features": pose.FeatureCount,
		"labels":   labels,
		"preview":  preview,
	}, nil
}

func (s *Service) inspectDataset(ctx context.Context, artifactPath string) (map[string]interface{}, error) {
	var ds model.Dataset
	if err := s.store.ReadJSON(ctx, artifactPath, &ds); err != nil {
		return nil, err
	}

	stats := phase.Stats(ds.FrameData)
	phases := make(map[string]interface{}, len(stats))
	for name, stat := range stats {
		phases[name] = map[string]interface{}{
			"frames":   stat.FrameCount,
			"poses":    stat.PoseCount,
			"minFrame": stat.MinFrame,
			"maxFrame": stat.MaxFrame,
		}
	}
	return map[string]interface{}{
		"path":   artifactPath,
		"kind":   "dataset",
		"video":  ds.VideoInfo,
		"frames": len(ds.FrameData),
		"spans":  len(ds.PhasesSummary),
		"phases": phases,
	}, nil
}

// TrainParams control the optimizer schedule. Zero values fall back to
// the classifier defaults.
type TrainParams struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         int64
}

// Train fits a new classifier on the packed samples at recordsPath and
// writes the weights to out. Validation metrics are tracked per epoch
// when valPath is non-empty.
func (s *Service) Train(ctx context.Context, recordsPath, valPath, out string, params TrainParams) (*classifier.Network, []classifier.EpochStats, error) {
	samples, err := s.readSamples(ctx, recordsPath)
	if err != nil {
		return nil, nil, err
	}

	opts := []classifier.TrainOption{
		classifier.WithEpochs(params.Epochs),
		classifier.WithBatchSize(params.BatchSize),
		classifier.WithLearningRate(params.LearningRate),
		classifier.WithSeed(params.Seed),
		classifier.WithProgress(func(st classifier.EpochStats) {
			metrics.RecordTrainingEpoch(st.Loss, st.Accuracy)
			fields := []logger.Field{
				logger.Int("epoch", st.Epoch),
				logger.Float64("loss", st.Loss),
				logger.Float64("accuracy", st.Accuracy),
			}
			if st.Validated {
				fields = append(fields,
					logger.Float64("val_loss", st.ValLoss),
					logger.Float64("val_accuracy", st.ValAccuracy),
				)
			}
			s.logger.Info(ctx, "epoch finished", fields...)
		}),
	}
	if valPath != "" {
		val, err := s.readSamples(ctx, valPath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, classifier.WithValidation(val))
	}

	network := classifier.New(classifier.WithInitSeed(params.Seed))
	history, err := network.Train(ctx, samples, opts...)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.WriteWith(ctx, out, network.Save); err != nil {
		return nil, nil, err
	}

	info := network.TrainingInfo()
	s.logger.Info(ctx, "trained classifier",
		logger.String("model_id", network.ID()),
		logger.String("output", out),
		logger.Int("samples", info.Samples),
		logger.Int("epochs", info.Epochs),
		logger.Float64("loss", info.FinalLoss),
		logger.Float64("accuracy", info.FinalAccuracy),
	)
	return network, history, nil
}

// Evaluate runs a trained classifier over packed samples. The model at
// modelPath is used when given, otherwise the one loaded at Start. The
// evaluation report is written to out when out is non-empty.
func (s *Service) Evaluate(ctx context.Context, modelPath, recordsPath, out string) (*classifier.Evaluation, error) {
	network := s.Network()
	if modelPath != "" {
		var err error
		network, err = s.loadModel(ctx, modelPath)
		if err != nil {
			return nil, err
		}
	}
	if network == nil {
		return nil, ErrModelNotLoaded
	}

	samples, err := s.readSamples(ctx, recordsPath)
	if err != nil {
		return nil, err
	}

	eval, err := network.Evaluate(samples)
	if err != nil {
		return nil, err
	}

	if out != "" {
		if err := s.store.WriteJSON(ctx, out, eval); err != nil {
			return nil, err
		}
	}
	s.logger.Info(ctx, "evaluated classifier",
		logger.String("model_id", network.ID()),
		logger.Int("samples", eval.Samples),
		logger.Float64("loss", eval.Loss),
		logger.Float64("accuracy", eval.Accuracy),
	)
	return &eval, nil
}

// Synthesize fabricates a merged dataset from the parametric dive model
// and writes it to out.
func (s *Service) Synthesize(ctx context.Context, out string, opts ...synth.Option) (*model.Dataset, error) {
	ds, err := synth.New(opts...).Generate()
	if err != nil {
		return nil, err
	}
	if err := synth.Verify(ds); err != nil {
		return nil, err
	}
	if err := s.store.WriteJSON(ctx, out, ds); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "synthesized dataset",
		logger.String("output", out),
		logger.Int("frames", ds.VideoInfo.TotalFrames),
		logger.Int("spans", len(ds.PhasesSummary)),
	)
	return ds, nil
}

// readSamples loads labeled samples from recordsPath. Split JSON
// datasets are packed on the fly so train and eval take them directly.
func (s *Service) readSamples(ctx context.Context, recordsPath string) ([]model.Sample, error) {
	if strings.HasSuffix(strings.ToLower(recordsPath), ".json") {
		var ds model.Dataset
		if err := s.store.ReadJSON(ctx, recordsPath, &ds); err != nil {
			return nil, err
		}
		return dataset.Pack(&ds)
	}

	var samples []model.Sample
	err := s.store.ReadWith(ctx, recordsPath, func(r io.Reader) error {
		var rerr error
		samples, rerr = record.ReadAll(r)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	for range samples {
		metrics.RecordRecordRead()
	}
	return samples, nil
}
