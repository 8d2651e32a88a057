package config_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/lanefour/divetrace/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			// Clear any existing environment variables
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.FrameQueueSize, convey.ShouldEqual, 256)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
				convey.So(cfg.TrackerKind, convey.ShouldEqual, "csrt")
				convey.So(cfg.FPS, convey.ShouldEqual, 30.0)
				convey.So(cfg.TrainEpochs, convey.ShouldEqual, 20)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			// Set environment variables
			_ = os.Setenv("DIVETRACE_ADDR", ":8080")
			_ = os.Setenv("DIVETRACE_FRAME_QUEUE_SIZE", "1024")
			_ = os.Setenv("DIVETRACE_WORKER_COUNT", "16")
			_ = os.Setenv("DIVETRACE_TRACKER_KIND", "kcf")
			_ = os.Setenv("DIVETRACE_TRAIN_LEARNING_RATE", "0.0005")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.FrameQueueSize, convey.ShouldEqual, 1024)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.TrackerKind, convey.ShouldEqual, "kcf")
				convey.So(cfg.TrainLearningRate, convey.ShouldEqual, 0.0005)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			// Create a temporary YAML config file
			yamlContent := `
addr: ":9090"
frame_queue_size: 512
worker_count: 24
tracker_kind: "kcf"
fps: 50
train_epochs: 40
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			// Set the config file path
			_ = os.Setenv("DIVETRACE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.FrameQueueSize, convey.ShouldEqual, 512)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 24)
				convey.So(cfg.TrackerKind, convey.ShouldEqual, "kcf")
				convey.So(cfg.FPS, convey.ShouldEqual, 50.0)
				convey.So(cfg.TrainEpochs, convey.ShouldEqual, 40)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			// Create a YAML config file
			yamlContent := `
addr: ":9090"
frame_queue_size: 512
worker_count: 24
train_epochs: 40
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			// Set both file and environment variables
			_ = os.Setenv("DIVETRACE_CONFIG", tmpFile)
			_ = os.Setenv("DIVETRACE_ADDR", ":8080")      // This should override the file
			_ = os.Setenv("DIVETRACE_WORKER_COUNT", "32") // This should override the file
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")         // Overridden by env
				convey.So(cfg.FrameQueueSize, convey.ShouldEqual, 512)   // From file
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)       // Overridden by env
				convey.So(cfg.TrainEpochs, convey.ShouldEqual, 40)       // From file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			// Create an invalid YAML file
			invalidYaml := `invalid: yaml: content: [`
			tmpFile := createTempConfigFile(invalidYaml)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("DIVETRACE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("DIVETRACE_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("DIVETRACE_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an unknown tracker kind", func() {
			_ = os.Setenv("DIVETRACE_TRACKER_KIND", "mosse")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "tracker_kind")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an unknown log format", func() {
			_ = os.Setenv("DIVETRACE_LOG_FORMAT", "xml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "log_format")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a non-positive fps", func() {
			_ = os.Setenv("DIVETRACE_FPS", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "fps")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with partial YAML file", func() {
			// Create a YAML file with only some fields
			yamlContent := `
addr: ":9090"
worker_count: 16
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("DIVETRACE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should merge with defaults for missing fields", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")       // From file
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)     // From file
				convey.So(cfg.FrameQueueSize, convey.ShouldEqual, 256) // From defaults
				convey.So(cfg.TrackerKind, convey.ShouldEqual, "csrt") // From defaults
				convey.So(cfg.FPS, convey.ShouldEqual, 30.0)           // From defaults
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("DIVETRACE_FRAME_QUEUE_SIZE", "invalid")
			_ = os.Setenv("DIVETRACE_WORKER_COUNT", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigLoaderEdgeCases(t *testing.T) {
	convey.Convey("Given config loader edge cases", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with zero sizing values", func() {
			_ = os.Setenv("DIVETRACE_FRAME_QUEUE_SIZE", "0")
			_ = os.Setenv("DIVETRACE_WORKER_COUNT", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should pass them through for the runtime to default", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.FrameQueueSize, convey.ShouldEqual, 0)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When loading config with special characters in addr", func() {
			_ = os.Setenv("DIVETRACE_ADDR", "localhost:8080")
			_ = os.Setenv("DIVETRACE_ADDR", "0.0.0.0:9090")
			_ = os.Setenv("DIVETRACE_ADDR", "[::1]:8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should handle various addr formats", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, "[::1]:8080") // Last one wins
			})
		})

		convey.Convey("When loading config with YAML file containing comments", func() {
			yamlContent := `
# Pipeline sizing
frame_queue_size: 512  # Inline comment
worker_count: 24
# Model locations
model_path: "artifacts/model.json"
pose_model_path: "models/pose.onnx"
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("DIVETRACE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should parse YAML with comments", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.FrameQueueSize, convey.ShouldEqual, 512)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 24)
				convey.So(cfg.ModelPath, convey.ShouldEqual, "artifacts/model.json")
				convey.So(cfg.PoseModelPath, convey.ShouldEqual, "models/pose.onnx")
			})
		})

		convey.Convey("When loading config with YAML file containing empty values", func() {
			yamlContent := `
addr: ""
frame_queue_size:
worker_count: 24
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("DIVETRACE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return validation error for empty addr", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"DIVETRACE_CONFIG",
		"DIVETRACE_ADDR",
		"DIVETRACE_LOG_LEVEL",
		"DIVETRACE_LOG_FORMAT",
		"DIVETRACE_MODEL_PATH",
		"DIVETRACE_POSE_MODEL_PATH",
		"DIVETRACE_POSE_INPUT_SIZE",
		"DIVETRACE_FPS",
		"DIVETRACE_TRACKER_KIND",
		"DIVETRACE_FRAME_QUEUE_SIZE",
		"DIVETRACE_WORKER_COUNT",
		"DIVETRACE_TRAIN_EPOCHS",
		"DIVETRACE_TRAIN_BATCH_SIZE",
		"DIVETRACE_TRAIN_LEARNING_RATE",
		"DIVETRACE_TRAIN_SEED",
		"DIVETRACE_SPLIT_TRAIN",
		"DIVETRACE_SPLIT_VAL",
		"DIVETRACE_SPLIT_TEST",
		"DIVETRACE_SPLIT_SEED",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "divetrace-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
