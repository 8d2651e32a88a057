// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lanefour/divetrace/internal/domain/classifier"
)

// PredictHandler handles classification requests.
type PredictHandler struct {
	deps Dependencies
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps Dependencies) *PredictHandler {
	return &PredictHandler{deps: deps}
}

// HandlePredict handles POST /predict requests.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	var (
		result Result
		err    error
	)
	if len(req.Features) > 0 {
		result, err = h.deps.PredictVector(r.Context(), req.Features)
	} else {
		result, err = h.deps.PredictKeypoints(r.Context(), req.Keypoints)
	}
	if err != nil {
		switch {
		case isModelUnavailable(err):
			writeError(w, http.StatusServiceUnavailable, "model_unavailable", WrapKind(op, ErrModelUnavailable, err))
		case errors.Is(err, classifier.ErrFeatureSize):
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}
