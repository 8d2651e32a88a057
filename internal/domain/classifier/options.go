package classifier

import "github.com/lanefour/divetrace/internal/domain/model"

// Default network configuration constants.
const (
	defaultInputSize = 52
	defaultHidden1   = 128
	defaultHidden2   = 64
	defaultDropout   = 0.2
	defaultInitSeed  = 42
)

type options struct {
	inputSize      int
	hidden1        int
	hidden2        int
	dropout        float64
	classes        []string
	featureIndices []int
	initSeed       int64
}

func defaultOptions() options {
	return options{
		inputSize: defaultInputSize,
		hidden1:   defaultHidden1,
		hidden2:   defaultHidden2,
		dropout:   defaultDropout,
		classes:   model.PhaseNames,
		initSeed:  defaultInitSeed,
	}
}

// Option applies a configuration option to a new Network.
type Option func(*options)

// WithInputSize sets the feature vector length.
func WithInputSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.inputSize = size
		}
	}
}

// WithHiddenSizes sets the two hidden layer widths.
func WithHiddenSizes(h1, h2 int) Option {
	return func(o *options) {
		if h1 > 0 && h2 > 0 {
			o.hidden1 = h1
			o.hidden2 = h2
		}
	}
}

// WithDropout sets the dropout rate applied after the first hidden layer.
func WithDropout(rate float64) Option {
	return func(o *options) {
		if rate >= 0 && rate < 1 {
			o.dropout = rate
		}
	}
}

// WithClasses sets the class names in label order.
func WithClasses(classes []string) Option {
	return func(o *options) {
		if len(classes) > 1 {
			o.classes = classes
		}
	}
}

// WithFeatureIndices records the landmark indices behind the feature
// vector layout, persisted with the model for consumers to verify.
func WithFeatureIndices(indices []int) Option {
	return func(o *options) {
		o.featureIndices = indices
	}
}

// WithInitSeed seeds the weight initialization.
func WithInitSeed(seed int64) Option {
	return func(o *options) {
		o.initSeed = seed
	}
}
