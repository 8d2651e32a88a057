package classifier

import (
	"fmt"

	"github.com/lanefour/divetrace/internal/domain/model"
)

// ClassMetrics reports precision and recall for one class.
type ClassMetrics struct {
	Phase     string  `json:"phase"`
	Support   int     `json:"support"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// Evaluation summarizes classifier performance on a labeled set.
// Confusion is indexed [true class][predicted class].
type Evaluation struct {
	Samples   int            `json:"samples"`
	Loss      float64        `json:"loss"`
	Accuracy  float64        `json:"accuracy"`
	Confusion [][]int        `json:"confusion"`
	PerClass  []ClassMetrics `json:"per_class"`
}

// Evaluate runs the network over labeled samples without dropout and
// aggregates loss, accuracy, the confusion matrix and per-class metrics.
func (n *Network) Evaluate(samples []model.Sample) (Evaluation, error) {
	if len(samples) == 0 {
		return Evaluation{}, ErrNoSamples
	}
	for i, s := range samples {
		if len(s.Features) != n.inputSize {
			return Evaluation{}, fmt.Errorf("%w: sample %d has %d features, want %d",
				ErrFeatureSize, i, len(s.Features), n.inputSize)
		}
		if s.Label < 0 || s.Label >= len(n.classes) {
			return Evaluation{}, fmt.Errorf("%w: sample %d has label %d with %d classes",
				ErrBadLabel, i, s.Label, len(n.classes))
		}
	}

	indices := make([]int, len(samples))
	for i := range indices {
		indices[i] = i
	}
	x, labels := batchMatrix(samples, indices, n.inputSize)
	probs := n.forward(x, nil).probs

	classes := len(n.classes)
	confusion := make([][]int, classes)
	for i := range confusion {
		confusion[i] = make([]int, classes)
	}

	loss, correct := batchLossAccuracy(probs, labels)
	for i, label := range labels {
		best := 0
		for j := 1; j < classes; j++ {
			if probs.At(i, j) > probs.At(i, best) {
				best = j
			}
		}
		confusion[label][best]++
	}

	perClass := make([]ClassMetrics, classes)
	for c := 0; c < classes; c++ {
		var support, predicted int
		for j := 0; j < classes; j++ {
			support += confusion[c][j]
			predicted += confusion[j][c]
		}
		m := ClassMetrics{Phase: n.classes[c], Support: support}
		if predicted > 0 {
			m.Precision = float64(confusion[c][c]) / float64(predicted)
		}
		if support > 0 {
			m.Recall = float64(confusion[c][c]) / float64(support)
		}
		perClass[c] = m
	}

	return Evaluation{
		Samples:   len(samples),
		Loss:      loss,
		Accuracy:  float64(correct) / float64(len(samples)),
		Confusion: confusion,
		PerClass:  perClass,
	}, nil
}
