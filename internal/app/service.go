// Package service provides the core pipeline service that implements
// the dependencies required by the HTTP API and the CLI commands.
package service

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lanefour/divetrace/internal/adapters/artifact"
	"github.com/lanefour/divetrace/internal/adapters/video"
	"github.com/lanefour/divetrace/internal/domain/classifier"
	"github.com/lanefour/divetrace/internal/domain/model"
	"github.com/lanefour/divetrace/internal/domain/pose"
	"github.com/lanefour/divetrace/pkg/logger"
	"github.com/lanefour/divetrace/pkg/metrics"
)

// Service implements the pipeline stages over one artifact store.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   artifact.Store
	network *classifier.Network

	// Configuration
	modelPath     string
	poseModelPath string
	poseInputSize int
	trackerKind   string
	fps           float64
	queueSize     int
	workerCount   int

	// State
	started     bool
	startedAt   time.Time
	predictions atomic.Int64

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the artifact store the pipeline reads and writes through.
func WithStore(store artifact.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithModelPath sets the classifier weights to load on Start.
func WithModelPath(path string) Option {
	return func(s *Service) {
		s.modelPath = path
	}
}

// WithPoseModelPath sets the ONNX pose model used for keypoint extraction.
func WithPoseModelPath(path string) Option {
	return func(s *Service) {
		s.poseModelPath = path
	}
}

// WithPoseInputSize sets the square input resolution of the pose model.
func WithPoseInputSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.poseInputSize = size
		}
	}
}

// WithTrackerKind selects the OpenCV tracker used by the tracking stage.
func WithTrackerKind(kind string) Option {
	return func(s *Service) {
		if kind != "" {
			s.trackerKind = kind
		}
	}
}

// WithFPS sets the frame rate assumed for annotation imports that carry
// no timing of their own.
func WithFPS(fps float64) Option {
	return func(s *Service) {
		if fps > 0 {
			s.fps = fps
		}
	}
}

// WithQueueSize sets the maximum size of the frame queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of pose inference workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		store:         artifact.NewFileStore(),
		poseInputSize: 256,
		trackerKind:   video.TrackerCSRT,
		fps:           30.0,
		queueSize:     256,
		workerCount:   runtime.NumCPU() * 2,
		logger:        nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the service and loads the classifier weights when a
// model path is configured.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting pipeline service...")

	if s.modelPath != "" {
		network, err := s.loadModel(ctx, s.modelPath)
		if err != nil {
			return fmt.Errorf("load model %s: %w", s.modelPath, err)
		}
		s.network = network
		s.logger.Info(ctx, "classifier model loaded",
			logger.String("model_id", network.ID()),
			logger.Int("input_size", network.InputSize()),
			logger.Any("classes", network.Classes()),
		)
	}

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "pipeline service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Bool("modelLoaded", s.network != nil),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping pipeline service...")

	s.started = false
	s.logger.Info(context.Background(), "pipeline service stopped",
		logger.Int64("predictions", s.predictions.Load()),
	)
}

func (s *Service) loadModel(ctx context.Context, path string) (*classifier.Network, error) {
	var network *classifier.Network
	err := s.store.ReadWith(ctx, path, func(r io.Reader) error {
		n, err := classifier.Load(r)
		if err != nil {
			return err
		}
		network = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return network, nil
}

// Network returns the loaded classifier, nil before Start or when no
// model path was configured.
func (s *Service) Network() *classifier.Network {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.network
}

// PredictVector classifies a single flattened feature vector.
func (s *Service) PredictVector(ctx context.Context, features []float32) (classifier.Result, error) {
	s.mu.RLock()
	network := s.network
	s.mu.RUnlock()

	if network == nil {
		return classifier.Result{}, ErrModelNotLoaded
	}

	result, err := network.Predict(features)
	if err != nil {
		return classifier.Result{}, err
	}

	s.predictions.Add(1)
	metrics.RecordPrediction(result.Phase)
	s.logger.Debug(ctx, "classified feature vector",
		logger.String("phase", result.Phase),
		logger.Float64("confidence", result.Confidence),
	)
	return result, nil
}

// PredictKeypoints flattens one frame of keypoints into the training
// feature layout and classifies it.
func (s *Service) PredictKeypoints(ctx context.Context, kps model.FrameKeypoints) (classifier.Result, error) {
	return s.PredictVector(ctx, pose.Flatten(kps))
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"trackerKind": s.trackerKind,
		"modelLoaded": s.network != nil,
	}

	if s.started {
		stats["uptimeSeconds"] = time.Since(s.startedAt).Seconds()
		stats["predictions"] = s.predictions.Load()
	}

	if s.network != nil {
		stats["modelID"] = s.network.ID()
		stats["classes"] = s.network.Classes()
		if info := s.network.TrainingInfo(); info != nil {
			stats["modelTrainedAt"] = info.TrainedAt
			stats["modelAccuracy"] = info.FinalAccuracy
		}
	}

	return stats
}
