// Package main implements the divetrace command line interface. The CLI
// exposes every pipeline stage as a subcommand plus a serve mode that
// hosts the classifier behind an HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	service "github.com/lanefour/divetrace/internal/app"
	"github.com/lanefour/divetrace/internal/config"
	"github.com/lanefour/divetrace/internal/domain/model"
	"github.com/lanefour/divetrace/pkg/logger"
	"github.com/lanefour/divetrace/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose     bool
	modelPath   string
	metricsAddr string

	// Loaded once by the root PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "divetrace",
	Short: "divetrace - swim-start phase classification pipeline",
	Long: `divetrace turns raw dive videos into a trained phase classifier.

The pipeline runs in stages: crop and track isolate the athlete, pose
extracts body keypoints, phases imports annotations, merge/normalize/
split/pack produce training records, and train/eval fit and score the
classifier. Use run to execute the dataset stages end to end, or serve
to host a trained model behind an HTTP API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		if err := logger.SetLevelString(cfg.LogLevel); err != nil {
			logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
				logger.String("log_level", cfg.LogLevel), logger.Error(err))
			_ = logger.SetLevelString("info")
		}
		if verbose {
			_ = logger.SetLevelString("debug")
		}

		// Long pipeline runs can expose metrics without a full serve.
		startMetricsListener(cmd.Context(), metricsAddr)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := logger.Sync(); err != nil {
			logger.Get().Error(cmd.Context(), "log sync failed", logger.Error(err))
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "Trained classifier file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Optional address serving metrics during long runs")

	// Add commands to root
	rootCmd.AddCommand(cropCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(poseCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(phasesCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newService builds a pipeline service from the loaded config. Command
// specific options are applied after the config so they win.
func newService(opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithLogger(logger.Get()),
		service.WithPoseModelPath(cfg.PoseModelPath),
		service.WithPoseInputSize(cfg.PoseInputSize),
		service.WithFPS(cfg.FPS),
		service.WithTrackerKind(cfg.TrackerKind),
		service.WithQueueSize(cfg.FrameQueueSize),
		service.WithWorkerCount(cfg.WorkerCount),
	}
	if path := classifierPath(); path != "" {
		base = append(base, service.WithModelPath(path))
	}
	return service.New(append(base, opts...)...)
}

// classifierPath resolves the trained model location: flag over config.
func classifierPath() string {
	if modelPath != "" {
		return modelPath
	}
	return cfg.ModelPath
}

// startMetricsListener serves the metrics registry at addr until ctx is
// cancelled. A no-op when addr is empty.
func startMetricsListener(ctx context.Context, addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Get().Warn(ctx, "metrics listener failed",
				logger.String("addr", addr), logger.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

// parseROI parses a rectangle given as "x,y,width,height".
func parseROI(s string) (model.ROI, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return model.ROI{}, fmt.Errorf("roi must be x,y,width,height, got %q", s)
	}
	vals := make([]int, len(parts))
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return model.ROI{}, fmt.Errorf("roi component %q: %w", part, err)
		}
		vals[i] = v
	}
	return model.ROI{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}

// printJSON writes v to stdout as indented JSON so command output can
// feed scripts and jq.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
