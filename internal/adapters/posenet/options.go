package posenet

const (
	defaultInputSize         = 256
	defaultOutputName        = "Identity"
	defaultValuesPerLandmark = 5
	defaultScoreThreshold    = 0.3
)

// Option configures a DNN estimator.
type Option func(*DNN)

// WithInputSize sets the square input tensor size expected by the model.
func WithInputSize(size int) Option {
	return func(d *DNN) {
		if size > 0 {
			d.inputSize = size
		}
	}
}

// WithOutputName sets the network output layer to read landmarks from.
func WithOutputName(name string) Option {
	return func(d *DNN) {
		if name != "" {
			d.outputName = name
		}
	}
}

// WithValuesPerLandmark sets how many floats the model emits per landmark.
func WithValuesPerLandmark(n int) Option {
	return func(d *DNN) {
		if n >= 3 {
			d.valuesPer = n
		}
	}
}

// WithScoreThreshold sets the mean visibility below which a frame is
// reported as having no pose.
func WithScoreThreshold(threshold float32) Option {
	return func(d *DNN) {
		if threshold >= 0 && threshold <= 1 {
			d.threshold = threshold
		}
	}
}
