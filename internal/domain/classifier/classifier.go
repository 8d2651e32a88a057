// Package classifier implements the feed-forward phase classifier: two
// hidden ReLU layers with dropout, a softmax head, and Adam training.
package classifier

import (
	"math"
	"math/rand"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/lanefour/divetrace/internal/domain/model"
)

// Network is the classifier with its weights. It is safe for concurrent
// prediction once training has finished.
type Network struct {
	inputSize int
	hidden1   int
	hidden2   int
	classes   []string
	dropout   float64

	featureIndices []int

	w1, w2, w3 *mat.Dense
	b1, b2, b3 []float64

	id       string
	training *TrainingInfo
}

// New creates a network with freshly initialized weights.
func New(opts ...Option) *Network {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	n := &Network{
		inputSize:      cfg.inputSize,
		hidden1:        cfg.hidden1,
		hidden2:        cfg.hidden2,
		classes:        cfg.classes,
		dropout:        cfg.dropout,
		featureIndices: cfg.featureIndices,
		b1:             make([]float64, cfg.hidden1),
		b2:             make([]float64, cfg.hidden2),
		b3:             make([]float64, len(cfg.classes)),
		id:             uuid.NewString(),
	}

	rng := rand.New(rand.NewSource(cfg.initSeed)) //nolint:gosec // reproducible weight init
	n.w1 = heInit(rng, cfg.inputSize, cfg.hidden1)
	n.w2 = heInit(rng, cfg.hidden1, cfg.hidden2)
	n.w3 = heInit(rng, cfg.hidden2, len(cfg.classes))
	return n
}

// heInit draws weights from N(0, 2/fanIn), the usual scheme for ReLU layers.
func heInit(rng *rand.Rand, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	std := math.Sqrt(2.0 / float64(rows))
	for i := range data {
		data[i] = rng.NormFloat64() * std
	}
	return mat.NewDense(rows, cols, data)
}

// ID returns the model identifier stamped at creation or load.
func (n *Network) ID() string { return n.id }

// InputSize returns the expected feature vector length.
func (n *Network) InputSize() int { return n.inputSize }

// Classes returns the class names in label order.
func (n *Network) Classes() []string {
	out := make([]string, len(n.classes))
	copy(out, n.classes)
	return out
}

// FeatureIndices returns the landmark indices the feature vectors were
// built from, when the model records them.
func (n *Network) FeatureIndices() []int {
	out := make([]int, len(n.featureIndices))
	copy(out, n.featureIndices)
	return out
}

// forwardCache keeps the intermediate activations a backward pass needs.
type forwardCache struct {
	x     *mat.Dense
	z1    *mat.Dense
	a1    *mat.Dense // post-ReLU, post-dropout when training
	z2    *mat.Dense
	a2    *mat.Dense
	probs *mat.Dense
	mask  *mat.Dense // dropout mask including the 1/(1-p) scale, nil at inference
}

// forward runs a batch through the network. When rng is non-nil the
// dropout layer is active with inverted scaling; inference passes nil.
func (n *Network) forward(x *mat.Dense, rng *rand.Rand) *forwardCache {
	c := &forwardCache{x: x}

	c.z1 = linear(x, n.w1, n.b1)
	c.a1 = reluOf(c.z1)

	if rng != nil && n.dropout > 0 {
		c.mask = dropoutMask(rng, c.a1, n.dropout)
		c.a1.MulElem(c.a1, c.mask)
	}

	c.z2 = linear(c.a1, n.w2, n.b2)
	c.a2 = reluOf(c.z2)

	z3 := linear(c.a2, n.w3, n.b3)
	c.probs = softmaxRows(z3)
	return c
}

// Result is one classification outcome.
type Result struct {
	Label      int       `json:"label"`
	Phase      string    `json:"phase"`
	Confidence float64   `json:"confidence"`
	Probs      []float64 `json:"probabilities"`
}

// Predict classifies a single feature vector.
func (n *Network) Predict(features []float32) (Result, error) {
	if len(features) != n.inputSize {
		return Result{}, ErrFeatureSize
	}
	x := mat.NewDense(1, n.inputSize, toFloat64(features))
	probs := n.forward(x, nil).probs

	best, bestProb := 0, probs.At(0, 0)
	out := make([]float64, len(n.classes))
	for j := range n.classes {
		out[j] = probs.At(0, j)
		if out[j] > bestProb {
			best, bestProb = j, out[j]
		}
	}
	return Result{
		Label:      best,
		Phase:      n.classes[best],
		Confidence: bestProb,
		Probs:      out,
	}, nil
}

// linear computes x*w with the bias added to every row.
func linear(x, w *mat.Dense, b []float64) *mat.Dense {
	rows, _ := x.Dims()
	_, cols := w.Dims()
	z := mat.NewDense(rows, cols, nil)
	z.Mul(x, w)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			z.Set(i, j, z.At(i, j)+b[j])
		}
	}
	return z
}

func reluOf(z *mat.Dense) *mat.Dense {
	rows, cols := z.Dims()
	a := mat.NewDense(rows, cols, nil)
	a.Apply(func(_, _ int, v float64) float64 { return math.Max(0, v) }, z)
	return a
}

func dropoutMask(rng *rand.Rand, a *mat.Dense, rate float64) *mat.Dense {
	rows, cols := a.Dims()
	scale := 1.0 / (1.0 - rate)
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if rng.Float64() >= rate {
				m.Set(i, j, scale)
			}
		}
	}
	return m
}

// softmaxRows applies a numerically stable softmax to each row.
func softmaxRows(z *mat.Dense) *mat.Dense {
	rows, cols := z.Dims()
	p := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		maxV := z.At(i, 0)
		for j := 1; j < cols; j++ {
			if z.At(i, j) > maxV {
				maxV = z.At(i, j)
			}
		}
		sum := 0.0
		for j := 0; j < cols; j++ {
			e := math.Exp(z.At(i, j) - maxV)
			p.Set(i, j, e)
			sum += e
		}
		for j := 0; j < cols; j++ {
			p.Set(i, j, p.At(i, j)/sum)
		}
	}
	return p
}

func toFloat64(features []float32) []float64 {
	out := make([]float64, len(features))
	for i, v := range features {
		out[i] = float64(v)
	}
	return out
}

// batchMatrix stacks the selected samples into one design matrix.
func batchMatrix(samples []model.Sample, idx []int, inputSize int) (*mat.Dense, []int) {
	x := mat.NewDense(len(idx), inputSize, nil)
	labels := make([]int, len(idx))
	for row, i := range idx {
		for col, v := range samples[i].Features {
			x.Set(row, col, float64(v))
		}
		labels[row] = samples[i].Label
	}
	return x, labels
}
