// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lanefour/divetrace/internal/domain/classifier"
	"github.com/lanefour/divetrace/internal/domain/model"
	"github.com/lanefour/divetrace/internal/domain/pose"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// PredictVector classifies one flattened feature vector.
	PredictVector(ctx context.Context, features []float32) (Result, error)

	// PredictKeypoints classifies one frame of keypoints.
	PredictKeypoints(ctx context.Context, kps model.FrameKeypoints) (Result, error)
}

// Result mirrors the classification shape returned to clients.
type Result = classifier.Result

// Server wires HTTP routes for the classification API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	predictHandler *PredictHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		predictHandler: NewPredictHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/predict", MetricsMiddleware(s.predictHandler.HandlePredict, "predict"))
}

// predictRequest mirrors the OpenAPI schema for POST /predict. Exactly one
// of features or keypoints must be set; keypoints use "kp_<i>" keys with
// coordinates already normalized into the unit square.
type predictRequest struct {
	Features  []float32            `json:"features,omitempty"`
	Keypoints model.FrameKeypoints `json:"keypoints,omitempty"`
}

func (p predictRequest) validate() error {
	switch {
	case len(p.Features) == 0 && len(p.Keypoints) == 0:
		return errors.New("missing features or keypoints")
	case len(p.Features) > 0 && len(p.Keypoints) > 0:
		return errors.New("features and keypoints are mutually exclusive")
	}
	if len(p.Features) > 0 && len(p.Features) != pose.FeatureCount {
		return fmt.Errorf("features must have length %d, got %d", pose.FeatureCount, len(p.Features))
	}
	return nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isModelUnavailable allows the API to translate an unloaded-model error
// to 503. This stays generic to avoid tight coupling with specific packages.
func isModelUnavailable(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "model not loaded")
}
