package metrics

import (
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			registryOpt := WithPrometheusRegistry(prometheus.NewRegistry())

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(registryOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with empty overrides", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the defaults should survive", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "divetrace")
				So(manager.subsystem, ShouldEqual, "pipeline")
				So(reflect.DeepEqual(manager.histogramBuckets, prometheus.DefBuckets), ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given metrics recording", t, func() {
		Convey("When recording pipeline metrics", func() {
			Convey("Then it should record decoded frames", func() {
				So(func() {
					RecordFrameDecoded()
					RecordFrameDecoded()
					RecordFrameDecoded()
				}, ShouldNotPanic)
			})

			Convey("And it should record processed frames", func() {
				So(func() {
					RecordFrameProcessed()
					RecordFrameProcessed()
				}, ShouldNotPanic)
			})

			Convey("And it should record skipped frames", func() {
				So(func() {
					RecordFrameSkipped()
				}, ShouldNotPanic)
			})

			Convey("And it should record pose inference latency", func() {
				So(func() {
					RecordPoseInferenceLatency(12.0)
					RecordPoseInferenceLatency(18.5)
					RecordPoseInferenceLatency(25.0)
				}, ShouldNotPanic)
			})

			Convey("And it should record predictions by phase", func() {
				So(func() {
					RecordPrediction("Setup")
					RecordPrediction("Takeoff")
					RecordPrediction("Flight")
					RecordPrediction("Entry")
				}, ShouldNotPanic)
			})
		})

		Convey("When recording dataset metrics", func() {
			Convey("Then it should record written records", func() {
				So(func() {
					RecordRecordWritten()
					RecordRecordWritten()
				}, ShouldNotPanic)
			})

			Convey("And it should record read records", func() {
				So(func() {
					RecordRecordRead()
				}, ShouldNotPanic)
			})
		})

		Convey("When recording training metrics", func() {
			Convey("Then it should record epochs with loss and accuracy", func() {
				So(func() {
					RecordTrainingEpoch(1.386, 0.25)
					RecordTrainingEpoch(0.693, 0.71)
					RecordTrainingEpoch(0.214, 0.93)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording HTTP metrics", func() {
			Convey("Then it should record HTTP requests", func() {
				So(func() {
					RecordHTTPRequest("/healthz", "GET", "200")
					RecordHTTPRequest("/predict", "POST", "200")
					RecordHTTPRequest("/stats", "GET", "200")
				}, ShouldNotPanic)
			})

			Convey("And it should record HTTP request duration", func() {
				So(func() {
					RecordHTTPRequestDuration("/healthz", "GET", "200", 5.0)
					RecordHTTPRequestDuration("/predict", "POST", "200", 10.0)
					RecordHTTPRequestDuration("/stats", "GET", "200", 15.0)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording queue metrics", func() {
			Convey("Then it should update queue gauges", func() {
				So(func() {
					UpdateQueueSize(120)
					UpdateQueueCapacity(256)
					UpdateQueueUtilization(0.47)
				}, ShouldNotPanic)
			})

			Convey("And it should record queue counters", func() {
				So(func() {
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					RecordQueueDequeueError()
				}, ShouldNotPanic)
			})

			Convey("And it should record queue processing latency", func() {
				So(func() {
					RecordQueueProcessingLatency(3.0)
					RecordQueueProcessingLatency(7.5)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording worker metrics", func() {
			Convey("Then it should update worker gauges", func() {
				So(func() {
					UpdateWorkerActiveCount(4)
					UpdateWorkerIdleCount(2)
				}, ShouldNotPanic)
			})

			Convey("And it should record worker latency and errors", func() {
				So(func() {
					RecordWorkerProcessingLatency(22.0)
					RecordWorkerError()
				}, ShouldNotPanic)
			})
		})

		Convey("When recording error metrics", func() {
			Convey("Then it should record errors by component", func() {
				So(func() {
					RecordErrorByComponent("posenet", "inference_failed")
					RecordErrorByComponent("video", "decode_failed")
					RecordErrorByComponent("queue", "full")
				}, ShouldNotPanic)
			})
		})
	})
}

func TestMetricsRegistry(t *testing.T) {
	Convey("Given the metrics registry", t, func() {
		Convey("When gathering after recording", func() {
			RecordFrameDecoded()
			families, err := GetRegistry().Gather()

			Convey("Then gathering should succeed with metrics present", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})

			Convey("And the decoded frames metric should be registered", func() {
				found := false
				for _, f := range families {
					if f.GetName() == "divetrace_pipeline_frames_decoded_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}
