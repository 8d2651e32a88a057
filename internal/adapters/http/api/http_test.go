package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lanefour/divetrace/internal/adapters/http/api"
	"github.com/lanefour/divetrace/internal/domain/classifier"
	"github.com/lanefour/divetrace/internal/domain/model"
	"github.com/lanefour/divetrace/internal/domain/pose"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing
type mockPredictor struct {
	result    api.Result
	err       error
	lastKind  string
	lastInput int
}

func (m *mockPredictor) PredictVector(ctx context.Context, features []float32) (api.Result, error) {
	m.lastKind = "vector"
	m.lastInput = len(features)
	if m.err != nil {
		return api.Result{}, m.err
	}
	return m.result, nil
}

func (m *mockPredictor) PredictKeypoints(ctx context.Context, kps model.FrameKeypoints) (api.Result, error) {
	m.lastKind = "keypoints"
	m.lastInput = len(kps)
	if m.err != nil {
		return api.Result{}, m.err
	}
	return m.result, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func flightResult() api.Result {
	return api.Result{
		Label:      2,
		Phase:      model.PhaseFlight,
		Confidence: 0.91,
		Probs:      []float64{0.02, 0.03, 0.91, 0.04},
	}
}

func newTestServer(deps api.Dependencies, stats api.StatsProvider) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, stats).Register(context.Background(), mux)
	return mux
}

func postPredict(mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func featuresBody(n int) string {
	features := make([]float32, n)
	body, _ := json.Marshal(map[string]any{"features": features})
	return string(body)
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		predictor := &mockPredictor{result: flightResult()}
		stats := &mockStatsProvider{stats: map[string]interface{}{"started": true}}
		mux := newTestServer(predictor, stats)

		Convey("Then /healthz should serve the metrics registry", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.Len(), ShouldBeGreaterThan, 0)
		})

		Convey("Then /stats should return the provider snapshot", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")

			var got map[string]interface{}
			So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
			So(got["started"], ShouldEqual, true)
		})

		Convey("Then /predict should classify a feature vector", func() {
			w := postPredict(mux, featuresBody(pose.FeatureCount))

			So(w.Code, ShouldEqual, http.StatusOK)
			So(predictor.lastKind, ShouldEqual, "vector")
			So(predictor.lastInput, ShouldEqual, pose.FeatureCount)

			var got api.Result
			So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
			So(got.Phase, ShouldEqual, model.PhaseFlight)
			So(got.Confidence, ShouldAlmostEqual, 0.91, 1e-9)
			So(len(got.Probs), ShouldEqual, 4)
		})
	})
}

func TestPredictHandler(t *testing.T) {
	Convey("Given a predict handler", t, func() {
		predictor := &mockPredictor{result: flightResult()}
		mux := newTestServer(predictor, &mockStatsProvider{})

		Convey("When posting keypoints", func() {
			body := `{"keypoints": {"kp_0": {"x": 0.5, "y": 0.5, "z": 0, "visibility": 0.9}}}`
			w := postPredict(mux, body)

			Convey("Then the keypoint path should classify", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(predictor.lastKind, ShouldEqual, "keypoints")
				So(predictor.lastInput, ShouldEqual, 1)
			})
		})

		Convey("When the request body is malformed", func() {
			w := postPredict(mux, `{"features": [`)

			Convey("Then it should reject with bad_request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "bad_request")
			})
		})

		Convey("When neither features nor keypoints are present", func() {
			w := postPredict(mux, `{}`)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "missing features or keypoints")
		})

		Convey("When both features and keypoints are present", func() {
			body := `{"features": [1], "keypoints": {"kp_0": {"x": 1, "y": 1, "z": 0, "visibility": 1}}}`
			w := postPredict(mux, body)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "mutually exclusive")
		})

		Convey("When the feature vector has the wrong length", func() {
			w := postPredict(mux, featuresBody(10))

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "length")
		})

		Convey("When no model is loaded", func() {
			predictor.err = errors.New("classifier model not loaded")
			w := postPredict(mux, featuresBody(pose.FeatureCount))

			Convey("Then it should answer 503 with model_unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(w.Body.String(), ShouldContainSubstring, "model_unavailable")
			})
		})

		Convey("When the classifier rejects the feature size", func() {
			predictor.err = classifier.ErrFeatureSize
			w := postPredict(mux, featuresBody(pose.FeatureCount))

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When classification fails for another reason", func() {
			predictor.err = errors.New("matrix dimensions out of sync")
			w := postPredict(mux, featuresBody(pose.FeatureCount))

			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldContainSubstring, "internal_error")
		})

		Convey("When using the wrong method", func() {
			req := httptest.NewRequest(http.MethodGet, "/predict", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestStatsHandler(t *testing.T) {
	Convey("Given a stats handler", t, func() {
		stats := &mockStatsProvider{stats: map[string]interface{}{
			"started":     true,
			"predictions": 42,
		}}
		mux := newTestServer(&mockPredictor{}, stats)

		Convey("When requesting stats with POST", func() {
			req := httptest.NewRequest(http.MethodPost, "/stats", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should not be found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Given the kind helpers", t, func() {
		wrapped := api.WrapKind("api.predict", api.ErrBadRequest, errors.New("boom"))
		labeled := api.NewKind("api.predict", api.ErrModelUnavailable)

		Convey("Then sentinels should survive wrapping", func() {
			So(errors.Is(wrapped, api.ErrBadRequest), ShouldBeTrue)
			So(wrapped.Error(), ShouldContainSubstring, "boom")
			So(errors.Is(labeled, api.ErrModelUnavailable), ShouldBeTrue)
		})
	})
}
