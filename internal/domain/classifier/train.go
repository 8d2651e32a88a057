package classifier

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/lanefour/divetrace/internal/domain/model"
)

// Default training configuration constants.
const (
	defaultEpochs       = 20
	defaultBatchSize    = 32
	defaultLearningRate = 1e-3
	defaultTrainSeed    = 42

	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8

	// probFloor keeps log() finite on saturated outputs.
	probFloor = 1e-12
)

type trainOptions struct {
	epochs       int
	batchSize    int
	learningRate float64
	seed         int64
	validation   []model.Sample
	progress     func(EpochStats)
}

func defaultTrainOptions() trainOptions {
	return trainOptions{
		epochs:       defaultEpochs,
		batchSize:    defaultBatchSize,
		learningRate: defaultLearningRate,
		seed:         defaultTrainSeed,
	}
}

// TrainOption applies a configuration option to a training run.
type TrainOption func(*trainOptions)

// WithEpochs sets the number of passes over the training set.
func WithEpochs(epochs int) TrainOption {
	return func(o *trainOptions) {
		if epochs > 0 {
			o.epochs = epochs
		}
	}
}

// WithBatchSize sets the minibatch size.
func WithBatchSize(size int) TrainOption {
	return func(o *trainOptions) {
		if size > 0 {
			o.batchSize = size
		}
	}
}

// WithLearningRate sets the Adam step size.
func WithLearningRate(lr float64) TrainOption {
	return func(o *trainOptions) {
		if lr > 0 {
			o.learningRate = lr
		}
	}
}

// WithSeed seeds the per-epoch shuffle and the dropout draws.
func WithSeed(seed int64) TrainOption {
	return func(o *trainOptions) {
		o.seed = seed
	}
}

// WithValidation evaluates the given samples after every epoch.
func WithValidation(samples []model.Sample) TrainOption {
	return func(o *trainOptions) {
		o.validation = samples
	}
}

// WithProgress installs a per-epoch callback.
func WithProgress(fn func(EpochStats)) TrainOption {
	return func(o *trainOptions) {
		o.progress = fn
	}
}

// EpochStats reports one epoch of training.
type EpochStats struct {
	Epoch       int     `json:"epoch"`
	Loss        float64 `json:"loss"`
	Accuracy    float64 `json:"accuracy"`
	ValLoss     float64 `json:"val_loss,omitempty"`
	ValAccuracy float64 `json:"val_accuracy,omitempty"`
	Validated   bool    `json:"-"`
}

// TrainingInfo records how the persisted weights were produced.
type TrainingInfo struct {
	Samples       int       `json:"samples"`
	Epochs        int       `json:"epochs"`
	BatchSize     int       `json:"batch_size"`
	LearningRate  float64   `json:"learning_rate"`
	Seed          int64     `json:"seed"`
	FinalLoss     float64   `json:"final_loss"`
	FinalAccuracy float64   `json:"final_accuracy"`
	TrainedAt     time.Time `json:"trained_at"`
}

// TrainingInfo returns the recorded training metadata, nil for an
// untrained network.
func (n *Network) TrainingInfo() *TrainingInfo { return n.training }

// Train fits the network with minibatch Adam on cross-entropy loss. Each
// epoch reshuffles the samples with the seeded generator; the same seed and
// data reproduce the same weights. The context is checked between batches.
func (n *Network) Train(ctx context.Context, samples []model.Sample, opts ...TrainOption) ([]EpochStats, error) {
	cfg := defaultTrainOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	for i, s := range samples {
		if len(s.Features) != n.inputSize {
			return nil, fmt.Errorf("%w: sample %d has %d features, want %d",
				ErrFeatureSize, i, len(s.Features), n.inputSize)
		}
		if s.Label < 0 || s.Label >= len(n.classes) {
			return nil, fmt.Errorf("%w: sample %d has label %d with %d classes",
				ErrBadLabel, i, s.Label, len(n.classes))
		}
	}

	rng := rand.New(rand.NewSource(cfg.seed)) //nolint:gosec // reproducible training
	opt := newAdam(cfg.learningRate, n)

	indices := make([]int, len(samples))
	for i := range indices {
		indices[i] = i
	}

	stats := make([]EpochStats, 0, cfg.epochs)
	for epoch := 1; epoch <= cfg.epochs; epoch++ {
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		epochLoss := 0.0
		correct := 0
		for start := 0; start < len(indices); start += cfg.batchSize {
			select {
			case <-ctx.Done():
				return stats, fmt.Errorf("training cancelled: %w", ctx.Err())
			default:
			}

			end := start + cfg.batchSize
			if end > len(indices) {
				end = len(indices)
			}
			batch := indices[start:end]

			x, labels := batchMatrix(samples, batch, n.inputSize)
			cache := n.forward(x, rng)

			loss, right := batchLossAccuracy(cache.probs, labels)
			epochLoss += loss * float64(len(batch))
			correct += right

			opt.step(n, n.backward(cache, labels))
		}

		st := EpochStats{
			Epoch:    epoch,
			Loss:     epochLoss / float64(len(samples)),
			Accuracy: float64(correct) / float64(len(samples)),
		}
		if len(cfg.validation) > 0 {
			ev, err := n.Evaluate(cfg.validation)
			if err != nil {
				return stats, fmt.Errorf("validation: %w", err)
			}
			st.ValLoss = ev.Loss
			st.ValAccuracy = ev.Accuracy
			st.Validated = true
		}
		stats = append(stats, st)
		if cfg.progress != nil {
			cfg.progress(st)
		}
	}

	last := stats[len(stats)-1]
	n.training = &TrainingInfo{
		Samples:       len(samples),
		Epochs:        cfg.epochs,
		BatchSize:     cfg.batchSize,
		LearningRate:  cfg.learningRate,
		Seed:          cfg.seed,
		FinalLoss:     last.Loss,
		FinalAccuracy: last.Accuracy,
		TrainedAt:     time.Now().UTC(),
	}
	return stats, nil
}

// gradients mirrors the parameter shapes.
type gradients struct {
	w1, w2, w3 *mat.Dense
	b1, b2, b3 []float64
}

// backward computes cross-entropy gradients for one batch.
func (n *Network) backward(c *forwardCache, labels []int) *gradients {
	batch, _ := c.probs.Dims()
	inv := 1.0 / float64(batch)

	// softmax + cross-entropy collapse to probs minus one-hot
	dz3 := mat.DenseCopyOf(c.probs)
	for i, label := range labels {
		dz3.Set(i, label, dz3.At(i, label)-1)
	}
	dz3.Scale(inv, dz3)

	g := &gradients{}
	g.w3 = mulTransposed(c.a2, dz3)
	g.b3 = colSums(dz3)

	da2 := mulByTransposed(dz3, n.w3)
	dz2 := reluBackward(da2, c.z2)
	g.w2 = mulTransposed(c.a1, dz2)
	g.b2 = colSums(dz2)

	da1 := mulByTransposed(dz2, n.w2)
	if c.mask != nil {
		da1.MulElem(da1, c.mask)
	}
	dz1 := reluBackward(da1, c.z1)
	g.w1 = mulTransposed(c.x, dz1)
	g.b1 = colSums(dz1)
	return g
}

// mulTransposed returns aᵀ·b.
func mulTransposed(a, b *mat.Dense) *mat.Dense {
	_, ac := a.Dims()
	_, bc := b.Dims()
	out := mat.NewDense(ac, bc, nil)
	out.Mul(a.T(), b)
	return out
}

// mulByTransposed returns a·bᵀ.
func mulByTransposed(a, b *mat.Dense) *mat.Dense {
	ar, _ := a.Dims()
	br, _ := b.Dims()
	out := mat.NewDense(ar, br, nil)
	out.Mul(a, b.T())
	return out
}

// reluBackward gates upstream gradients by the sign of the pre-activation.
func reluBackward(da, z *mat.Dense) *mat.Dense {
	rows, cols := da.Dims()
	dz := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if z.At(i, j) > 0 {
				dz.Set(i, j, da.At(i, j))
			}
		}
	}
	return dz
}

func colSums(m *mat.Dense) []float64 {
	rows, cols := m.Dims()
	sums := make([]float64, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			sums[j] += m.At(i, j)
		}
	}
	return sums
}

// batchLossAccuracy returns the mean cross-entropy and the number of
// correct argmax predictions in the batch.
func batchLossAccuracy(probs *mat.Dense, labels []int) (float64, int) {
	_, cols := probs.Dims()
	loss := 0.0
	correct := 0
	for i, label := range labels {
		p := probs.At(i, label)
		if p < probFloor {
			p = probFloor
		}
		loss -= math.Log(p)

		best := 0
		for j := 1; j < cols; j++ {
			if probs.At(i, j) > probs.At(i, best) {
				best = j
			}
		}
		if best == label {
			correct++
		}
	}
	return loss / float64(len(labels)), correct
}

// adam holds first and second moment estimates per parameter group.
type adam struct {
	lr    float64
	t     int
	state []adamMoments
}

type adamMoments struct {
	m, v []float64
}

func newAdam(lr float64, n *Network) *adam {
	a := &adam{lr: lr}
	for _, size := range []int{
		len(n.w1.RawMatrix().Data), len(n.b1),
		len(n.w2.RawMatrix().Data), len(n.b2),
		len(n.w3.RawMatrix().Data), len(n.b3),
	} {
		a.state = append(a.state, adamMoments{
			m: make([]float64, size),
			v: make([]float64, size),
		})
	}
	return a
}

// step applies one bias-corrected Adam update to every parameter group.
func (a *adam) step(n *Network, g *gradients) {
	a.t++
	c1 := 1 - math.Pow(adamBeta1, float64(a.t))
	c2 := 1 - math.Pow(adamBeta2, float64(a.t))

	params := [][]float64{
		n.w1.RawMatrix().Data, n.b1,
		n.w2.RawMatrix().Data, n.b2,
		n.w3.RawMatrix().Data, n.b3,
	}
	grads := [][]float64{
		g.w1.RawMatrix().Data, g.b1,
		g.w2.RawMatrix().Data, g.b2,
		g.w3.RawMatrix().Data, g.b3,
	}

	for p := range params {
		st := &a.state[p]
		for i, gr := range grads[p] {
			st.m[i] = adamBeta1*st.m[i] + (1-adamBeta1)*gr
			st.v[i] = adamBeta2*st.v[i] + (1-adamBeta2)*gr*gr
			params[p][i] -= a.lr * (st.m[i] / c1) / (math.Sqrt(st.v[i]/c2) + adamEpsilon)
		}
	}
}
