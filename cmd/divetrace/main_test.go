package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/lanefour/divetrace/internal/adapters/http/api"
	"github.com/lanefour/divetrace/internal/adapters/http/docs"
	service "github.com/lanefour/divetrace/internal/app"
	"github.com/lanefour/divetrace/internal/config"
	"github.com/lanefour/divetrace/pkg/logger"
	"github.com/lanefour/divetrace/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

// Initialize logging for tests
func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			// Test with environment variables
			_ = os.Setenv("DIVETRACE_ADDR", ":8080")
			_ = os.Setenv("DIVETRACE_FRAME_QUEUE_SIZE", "1000")
			_ = os.Setenv("DIVETRACE_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("DIVETRACE_ADDR")
				_ = os.Unsetenv("DIVETRACE_FRAME_QUEUE_SIZE")
				_ = os.Unsetenv("DIVETRACE_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				loaded, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(loaded, convey.ShouldNotBeNil)
				convey.So(loaded.Addr, convey.ShouldEqual, ":8080")
				convey.So(loaded.FrameQueueSize, convey.ShouldEqual, 1000)
				convey.So(loaded.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := service.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable with custom options", func() {
				svc := service.New(
					service.WithWorkerCount(8),
					service.WithQueueSize(2000),
					service.WithTrackerKind("kcf"),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			svc := service.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then HTTP server should be creatable", func() {
				server := api.NewServer(svc, svc)
				convey.So(server, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then metrics manager should be creatable", func() {
				registry := prometheus.NewRegistry()
				manager := metrics.NewManager(metrics.WithPrometheusRegistry(registry))
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it should stop with its context", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing service metrics updater", func() {
			svc := service.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then it should stop with its context", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startServiceMetricsUpdater(ctx, svc)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(func() {
					updateSystemMetrics()
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing service metrics update", func() {
			svc := service.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(func() {
					updateServiceMetrics(svc)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing the optional metrics listener", func() {
			convey.Convey("Then an empty address is a no-op", func() {
				convey.So(func() {
					startMetricsListener(context.Background(), "")
				}, convey.ShouldNotPanic)
			})

			convey.Convey("Then a bound listener stops with its context", func() {
				ctx, cancel := context.WithCancel(context.Background())
				convey.So(func() {
					startMetricsListener(ctx, "127.0.0.1:0")
				}, convey.ShouldNotPanic)
				cancel()
			})
		})
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given main application integration", t, func() {
		convey.Convey("When testing full application setup", func() {
			_ = os.Setenv("DIVETRACE_ADDR", ":8080")
			_ = os.Setenv("DIVETRACE_WORKER_COUNT", "2")
			defer func() {
				_ = os.Unsetenv("DIVETRACE_ADDR")
				_ = os.Unsetenv("DIVETRACE_WORKER_COUNT")
			}()

			convey.Convey("Then all components should work together", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				// Load configuration into the CLI global
				var err error
				cfg, err = config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)

				// Build the service the way commands do
				svc := newService()
				convey.So(svc, convey.ShouldNotBeNil)

				// Create HTTP mux and register all routes
				mux := http.NewServeMux()
				api.NewServer(svc, svc).Register(ctx, mux)
				docs.Register(ctx, mux)

				// Stop service
				svc.Stop()
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When testing invalid configuration", func() {
			_ = os.Setenv("DIVETRACE_ADDR", "")
			defer func() { _ = os.Unsetenv("DIVETRACE_ADDR") }()

			convey.Convey("Then configuration loading should fail", func() {
				ctx := context.Background()
				loaded, err := config.Load(ctx)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(loaded, convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing service creation with invalid options", func() {
			convey.Convey("Then service should handle invalid options gracefully", func() {
				svc := service.New(
					service.WithWorkerCount(0),
					service.WithQueueSize(0),
					service.WithTrackerKind(""),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestParseROI(t *testing.T) {
	convey.Convey("Given the ROI flag parser", t, func() {
		convey.Convey("When parsing a well formed rectangle", func() {
			roi, err := parseROI("300, 0, 480, 1080")

			convey.So(err, convey.ShouldBeNil)
			convey.So(roi.X, convey.ShouldEqual, 300)
			convey.So(roi.Y, convey.ShouldEqual, 0)
			convey.So(roi.Width, convey.ShouldEqual, 480)
			convey.So(roi.Height, convey.ShouldEqual, 1080)
		})

		convey.Convey("When a component is missing", func() {
			_, err := parseROI("300,0,480")

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "x,y,width,height")
		})

		convey.Convey("When a component is not a number", func() {
			_, err := parseROI("300,0,wide,1080")

			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestParamResolution(t *testing.T) {
	convey.Convey("Given loaded defaults", t, func() {
		cfg = config.New()

		convey.Convey("When no training flags are set", func() {
			params := trainParams(0, 0, 0, -1)

			convey.So(params.Epochs, convey.ShouldEqual, cfg.TrainEpochs)
			convey.So(params.BatchSize, convey.ShouldEqual, cfg.TrainBatchSize)
			convey.So(params.LearningRate, convey.ShouldEqual, cfg.TrainLearningRate)
			convey.So(params.Seed, convey.ShouldEqual, cfg.TrainSeed)
		})

		convey.Convey("When training flags override the config", func() {
			params := trainParams(5, 64, 0.01, 7)

			convey.So(params.Epochs, convey.ShouldEqual, 5)
			convey.So(params.BatchSize, convey.ShouldEqual, 64)
			convey.So(params.LearningRate, convey.ShouldEqual, 0.01)
			convey.So(params.Seed, convey.ShouldEqual, 7)
		})

		convey.Convey("When no ratio flags are set", func() {
			ratios := splitRatios(0, 0, 0)

			convey.So(ratios.Train, convey.ShouldEqual, cfg.SplitTrain)
			convey.So(ratios.Val, convey.ShouldEqual, cfg.SplitVal)
			convey.So(ratios.Test, convey.ShouldEqual, cfg.SplitTest)
		})

		convey.Convey("When ratio flags are set", func() {
			ratios := splitRatios(0.8, 0.1, 0.1)

			convey.So(ratios.Train, convey.ShouldEqual, 0.8)
			convey.So(ratios.Val, convey.ShouldEqual, 0.1)
			convey.So(ratios.Test, convey.ShouldEqual, 0.1)
		})

		convey.Convey("When the model flag is set", func() {
			modelPath = "override.json"
			defer func() { modelPath = "" }()

			convey.So(classifierPath(), convey.ShouldEqual, "override.json")
		})
	})
}
