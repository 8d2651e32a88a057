package classifier

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gonum.org/v1/gonum/mat"
)

// networkState is the JSON model file layout.
type networkState struct {
	ModelID         string        `json:"model_id"`
	CreatedAt       time.Time     `json:"created_at"`
	InputSize       int           `json:"input_size"`
	Hidden1         int           `json:"hidden1"`
	Hidden2         int           `json:"hidden2"`
	Dropout         float64       `json:"dropout"`
	Classes         []string      `json:"classes"`
	KeypointIndices []int         `json:"keypoint_indices,omitempty"`
	Layers          []layerState  `json:"layers"`
	Training        *TrainingInfo `json:"training,omitempty"`
}

type layerState struct {
	Rows    int       `json:"rows"`
	Cols    int       `json:"cols"`
	Weights []float64 `json:"weights"`
	Bias    []float64 `json:"bias"`
}

// Save writes the model as indented JSON.
func (n *Network) Save(w io.Writer) error {
	state := networkState{
		ModelID:         n.id,
		CreatedAt:       time.Now().UTC(),
		InputSize:       n.inputSize,
		Hidden1:         n.hidden1,
		Hidden2:         n.hidden2,
		Dropout:         n.dropout,
		Classes:         n.classes,
		KeypointIndices: n.featureIndices,
		Layers: []layerState{
			layerOf(n.w1, n.b1),
			layerOf(n.w2, n.b2),
			layerOf(n.w3, n.b3),
		},
		Training: n.training,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(state); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return nil
}

func layerOf(w *mat.Dense, b []float64) layerState {
	rows, cols := w.Dims()
	weights := make([]float64, rows*cols)
	copy(weights, w.RawMatrix().Data)
	bias := make([]float64, len(b))
	copy(bias, b)
	return layerState{Rows: rows, Cols: cols, Weights: weights, Bias: bias}
}

// Load reads a model saved with Save and validates its shape.
func Load(r io.Reader) (*Network, error) {
	var state networkState
	if err := json.NewDecoder(r).Decode(&state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptModel, err)
	}

	if state.InputSize <= 0 || len(state.Classes) < 2 || len(state.Layers) != 3 {
		return nil, fmt.Errorf("%w: bad dimensions", ErrCorruptModel)
	}

	wantShapes := [][2]int{
		{state.InputSize, state.Hidden1},
		{state.Hidden1, state.Hidden2},
		{state.Hidden2, len(state.Classes)},
	}
	dense := make([]*mat.Dense, 3)
	biases := make([][]float64, 3)
	for i, layer := range state.Layers {
		want := wantShapes[i]
		if layer.Rows != want[0] || layer.Cols != want[1] {
			return nil, fmt.Errorf("%w: layer %d is %dx%d, want %dx%d",
				ErrCorruptModel, i, layer.Rows, layer.Cols, want[0], want[1])
		}
		if len(layer.Weights) != layer.Rows*layer.Cols || len(layer.Bias) != layer.Cols {
			return nil, fmt.Errorf("%w: layer %d value counts", ErrCorruptModel, i)
		}
		dense[i] = mat.NewDense(layer.Rows, layer.Cols, layer.Weights)
		biases[i] = layer.Bias
	}

	n := &Network{
		inputSize:      state.InputSize,
		hidden1:        state.Hidden1,
		hidden2:        state.Hidden2,
		classes:        state.Classes,
		dropout:        state.Dropout,
		featureIndices: state.KeypointIndices,
		w1:             dense[0],
		w2:             dense[1],
		w3:             dense[2],
		b1:             biases[0],
		b2:             biases[1],
		b3:             biases[2],
		id:             state.ModelID,
		training:       state.Training,
	}
	if n.id == "" {
		return nil, fmt.Errorf("%w: missing model id", ErrCorruptModel)
	}
	return n, nil
}
