package service

import (
	"context"
	"fmt"
	"time"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/lanefour/divetrace/internal/adapters/mq/queue"
	"github.com/lanefour/divetrace/internal/adapters/mq/worker"
	"github.com/lanefour/divetrace/internal/adapters/posenet"
	"github.com/lanefour/divetrace/internal/adapters/video"
	"github.com/lanefour/divetrace/internal/domain/model"
	"github.com/lanefour/divetrace/internal/domain/pose"
	"github.com/lanefour/divetrace/pkg/logger"
	"github.com/lanefour/divetrace/pkg/metrics"
)

// Backoff while the frame queue is at capacity.
const enqueueRetryDelay = 5 * time.Millisecond

// Crop writes a copy of src reduced to the region of interest.
func (s *Service) Crop(ctx context.Context, src, dst string, roi model.ROI) (*video.CropResult, error) {
	result, err := video.Crop(ctx, src, dst, roi)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "cropped video",
		logger.String("source", src),
		logger.String("output", dst),
		logger.Int("frames", result.Output.TotalFrames),
		logger.Int("width", result.Output.Width),
		logger.Int("height", result.Output.Height),
	)
	return result, nil
}

// Track follows the subject from a seed box through src and writes the
// box trace artifact to out. An annotated preview video is written when
// annotated is non-empty.
func (s *Service) Track(ctx context.Context, src, out, annotated string, seed model.ROI) (*model.TrackFile, error) {
	var opts []video.TrackOption
	if annotated != "" {
		opts = append(opts, video.WithAnnotatedOutput(annotated))
	}

	track, err := video.Track(ctx, src, seed, s.trackerKind, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.store.WriteJSON(ctx, out, track); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "tracked subject",
		logger.String("source", src),
		logger.String("tracker", s.trackerKind),
		logger.Int("frames", len(track.Boxes)),
		logger.Int("lost", len(track.Lost)),
	)
	return track, nil
}

// ExtractPose decodes src, runs pose inference across the worker pool
// and writes the keypoints artifact to out.
func (s *Service) ExtractPose(ctx context.Context, src, out string) (*model.PoseFile, error) {
	poses, err := s.extractPose(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := s.store.WriteJSON(ctx, out, poses); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "wrote pose artifact",
		logger.String("output", out),
		logger.Int("frames", poses.VideoInfo.TotalFrames),
	)
	return poses, nil
}

// PredictVideo runs pose extraction over src and classifies every frame.
// Frames without a detected pose keep an empty phase. The predictions
// artifact is written to out when out is non-empty; an annotated copy of
// the video with the predicted phase drawn on each frame is written when
// annotated is non-empty.
func (s *Service) PredictVideo(ctx context.Context, src, out, annotated string) (*model.PredictionFile, error) {
	network := s.Network()
	if network == nil {
		return nil, ErrModelNotLoaded
	}

	poses, err := s.extractPose(ctx, src)
	if err != nil {
		return nil, err
	}
	info := poses.VideoInfo

	predictions := &model.PredictionFile{
		VideoInfo:   info,
		ModelID:     network.ID(),
		Predictions: make([]model.Prediction, 0, info.TotalFrames),
	}
	classified := 0
	for frame := 0; frame < info.TotalFrames; frame++ {
		var ts float64
		if info.FPS > 0 {
			ts = float64(frame) / info.FPS
		}

		kps := poses.Frames[frame]
		if len(kps) == 0 {
			predictions.Predictions = append(predictions.Predictions, model.Prediction{
				Frame:     frame,
				Timestamp: ts,
			})
			continue
		}
		normalized, err := pose.NormalizeFrame(kps, info.Width, info.Height)
		if err != nil {
			return nil, err
		}
		result, err := network.Predict(pose.Flatten(normalized))
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", frame, err)
		}
		metrics.RecordPrediction(result.Phase)
		classified++

		predictions.Predictions = append(predictions.Predictions, model.Prediction{
			Frame:      frame,
			Timestamp:  ts,
			Phase:      result.Phase,
			Confidence: result.Confidence,
		})
	}
	s.predictions.Add(int64(classified))

	if out != "" {
		if err := s.store.WriteJSON(ctx, out, predictions); err != nil {
			return nil, err
		}
	}
	if annotated != "" {
		labels := make(map[int]string, classified)
		for _, p := range predictions.Predictions {
			if p.Phase == "" {
				continue
			}
			labels[p.Frame] = fmt.Sprintf("%s %.2f", p.Phase, p.Confidence)
		}
		if _, err := video.Annotate(ctx, src, annotated, labels); err != nil {
			return nil, err
		}
	}
	s.logger.Info(ctx, "classified video",
		logger.String("source", src),
		logger.Int("frames", info.TotalFrames),
		logger.Int("classified", classified),
		logger.String("model_id", network.ID()),
	)
	return predictions, nil
}

// poseJob carries one decoded frame to the pose workers. The job owns
// its mat; the processor releases it.
type poseJob struct {
	frame int
	mat   gocv.Mat
}

// poseResult is one worker's output for a frame.
type poseResult struct {
	frame int
	kps   model.FrameKeypoints
}

// decodeStats is what the decode loop saw: frames includes undecodable
// frames, jobs only the ones handed to the workers.
type decodeStats struct {
	frames int
	jobs   int
}

// poseProcessor owns one estimator. Inference backends are not safe for
// concurrent use, so each worker gets its own through the pool factory.
type poseProcessor struct {
	estimator posenet.Estimator
	results   chan<- poseResult
	logger    logger.Logger
}

func (p *poseProcessor) Process(ctx context.Context, job poseJob) error {
	defer job.mat.Close()

	start := time.Now()
	kps, err := p.estimator.Estimate(&job.mat)
	metrics.RecordPoseInferenceLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		// The frame stays in the artifact with an empty keypoint set.
		metrics.RecordErrorByComponent("posenet", "inference")
		p.logger.Warn(ctx, "pose inference failed",
			logger.Int("frame", job.frame),
			logger.Error(err),
		)
		kps = model.FrameKeypoints{}
	} else {
		metrics.RecordFrameProcessed()
	}

	select {
	case p.results <- poseResult{frame: job.frame, kps: kps}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *poseProcessor) Close() error {
	return p.estimator.Close()
}

// extractPose fans decoded frames out to a pool of estimator workers and
// reassembles the results in frame order.
func (s *Service) extractPose(ctx context.Context, src string) (*model.PoseFile, error) {
	capture, err := video.Open(src)
	if err != nil {
		return nil, err
	}
	defer capture.Close()
	info := capture.Info()

	q := queue.NewInMemoryQueue[poseJob](
		queue.WithCapacity(s.queueSize),
		queue.WithBufferSize(s.queueSize),
	)
	results := make(chan poseResult, s.queueSize)

	pool, err := worker.NewPool[poseJob](s.workerCount, q, func(int) (worker.Processor[poseJob], error) {
		estimator, err := posenet.NewDNN(s.poseModelPath, posenet.WithInputSize(s.poseInputSize))
		if err != nil {
			return nil, err
		}
		return &poseProcessor{
			estimator: estimator,
			results:   results,
			logger:    s.logger.Named("pose"),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	pool.Start(gctx)

	produced := make(chan decodeStats, 1)
	frames := make(map[int]model.FrameKeypoints, info.TotalFrames)
	var stats decodeStats

	// Decode sequentially; each job owns a clone of the frame buffer.
	g.Go(func() error {
		defer func() { _ = q.Close() }()

		frame := gocv.NewMat()
		defer frame.Close()

		st := decodeStats{}
		for capture.Read(&frame) {
			metrics.RecordFrameDecoded()
			if frame.Empty() {
				metrics.RecordFrameSkipped()
				st.frames++
				continue
			}
			job := poseJob{frame: st.frames, mat: frame.Clone()}
			if err := enqueueJob(gctx, q, job); err != nil {
				job.mat.Close()
				return err
			}
			st.frames++
			st.jobs++
		}
		produced <- st
		return nil
	})

	// Collect until every enqueued job has reported back.
	g.Go(func() error {
		got := 0
		want := -1
		for want < 0 || got < want {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case st := <-produced:
				stats = st
				want = st.jobs
			case r := <-results:
				frames[r.frame] = r.kps
				got++
			}
		}
		return nil
	})

	err = g.Wait()
	pool.Stop()
	if err != nil {
		// Release mats still parked in the queue.
		for job := range q.Dequeue(context.Background()) {
			job.mat.Close()
		}
		return nil, err
	}

	// The container header can lie about frame counts; trust the decode loop.
	info.TotalFrames = stats.frames
	poses := &model.PoseFile{
		VideoInfo: info,
		Frames:    make(map[int]model.FrameKeypoints, stats.frames),
	}
	detected := 0
	for i := 0; i < stats.frames; i++ {
		kps := frames[i]
		if kps == nil {
			kps = model.FrameKeypoints{}
		}
		if len(kps) > 0 {
			detected++
		}
		poses.Frames[i] = kps
	}

	s.logger.Info(ctx, "pose extraction finished",
		logger.String("source", src),
		logger.Int("frames", stats.frames),
		logger.Int("detected", detected),
		logger.Int("workers", pool.Size()),
	)
	return poses, nil
}

// enqueueJob retries while the queue is at capacity.
func enqueueJob(ctx context.Context, q queue.Queue[poseJob], job poseJob) error {
	for !q.Enqueue(ctx, job) {
		if q.IsClosed() {
			return ErrQueueClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(enqueueRetryDelay):
		}
	}
	return nil
}
