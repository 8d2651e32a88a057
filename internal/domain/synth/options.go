package synth

// Default generation parameters: a portrait lane crop at 30 fps, eight
// dives, a few pixels of landmark noise and a small pose-miss rate.
const (
	defaultSeed     int64 = 42
	defaultFPS            = 30.0
	defaultWidth          = 540
	defaultHeight         = 960
	defaultDives          = 8
	defaultNoise          = 3.0
	defaultDropRate       = 0.02
)

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets the random seed. Equal seeds reproduce equal datasets.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// WithFPS sets the nominal frame rate stamped into the dataset.
func WithFPS(fps float64) Option {
	return func(g *Generator) {
		if fps > 0 {
			g.fps = fps
		}
	}
}

// WithFrameSize sets the synthetic frame dimensions in pixels.
func WithFrameSize(width, height int) Option {
	return func(g *Generator) {
		if width > 0 && height > 0 {
			g.width = width
			g.height = height
		}
	}
}

// WithDives sets how many dives the dataset strings together.
func WithDives(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.dives = n
		}
	}
}

// WithNoise sets the landmark position noise in pixels.
func WithNoise(px float64) Option {
	return func(g *Generator) {
		if px >= 0 {
			g.noise = px
		}
	}
}

// WithPoseDropRate sets the fraction of frames that lose their pose, in
// [0, 1].
func WithPoseDropRate(rate float64) Option {
	return func(g *Generator) {
		if rate >= 0 && rate <= 1 {
			g.dropRate = rate
		}
	}
}
