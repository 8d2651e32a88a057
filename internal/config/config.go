// Package config defines pipeline configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers file and env on top.
// - External errors must be wrapped via this package's sentinel kinds.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoder: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address of the inference service.
	Addr string `koanf:"addr"`

	// ModelPath points at a trained classifier file.
	ModelPath string `koanf:"model_path"`

	// PoseModelPath points at the landmark network used for pose extraction.
	PoseModelPath string `koanf:"pose_model_path"`

	// PoseInputSize is the square input tensor size of the landmark network.
	PoseInputSize int `koanf:"pose_input_size"`

	// FPS is assumed for annotation exports that carry no timing of their own.
	FPS float64 `koanf:"fps"`

	// TrackerKind selects the object tracker: csrt or kcf.
	TrackerKind string `koanf:"tracker_kind"`

	// FrameQueueSize bounds the in-memory frame queue.
	FrameQueueSize int `koanf:"frame_queue_size"`

	// WorkerCount sets the number of pose inference workers.
	WorkerCount int `koanf:"worker_count"`

	// TrainEpochs, TrainBatchSize, TrainLearningRate and TrainSeed drive
	// classifier training.
	TrainEpochs       int     `koanf:"train_epochs"`
	TrainBatchSize    int     `koanf:"train_batch_size"`
	TrainLearningRate float64 `koanf:"train_learning_rate"`
	TrainSeed         int64   `koanf:"train_seed"`

	// SplitTrain, SplitVal and SplitTest are the dataset split ratios.
	SplitTrain float64 `koanf:"split_train"`
	SplitVal   float64 `koanf:"split_val"`
	SplitTest  float64 `koanf:"split_test"`

	// SplitSeed seeds the split shuffle.
	SplitSeed int64 `koanf:"split_seed"`
}

// New creates a Config with the pipeline defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		PoseInputSize:     256,
		FPS:               30.0,
		TrackerKind:       "csrt",
		FrameQueueSize:    256,
		WorkerCount:       runtime.NumCPU() * 2,
		TrainEpochs:       20,
		TrainBatchSize:    32,
		TrainLearningRate: 0.001,
		TrainSeed:         42,
		SplitTrain:        0.7,
		SplitVal:          0.2,
		SplitTest:         0.1,
		SplitSeed:         42,
	}
}
