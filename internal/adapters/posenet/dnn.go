package posenet

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/lanefour/divetrace/internal/domain/model"
	"github.com/lanefour/divetrace/pkg/metrics"
)

// DNN is an Estimator backed by a single-person landmark network loaded
// through gocv.ReadNet. A DNN is not safe for concurrent use; create one
// per worker.
type DNN struct {
	net        gocv.Net
	inputSize  int
	outputName string
	valuesPer  int
	threshold  float32
}

var _ Estimator = (*DNN)(nil)

// NewDNN loads the landmark model at modelPath.
func NewDNN(modelPath string, opts ...Option) (*DNN, error) {
	d := &DNN{
		inputSize:  defaultInputSize,
		outputName: defaultOutputName,
		valuesPer:  defaultValuesPerLandmark,
		threshold:  defaultScoreThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrLoadModel, modelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	d.net = net
	return d, nil
}

// Estimate runs the network on one frame and maps its output to pixel-space
// landmarks.
func (d *DNN) Estimate(frame *gocv.Mat) (model.FrameKeypoints, error) {
	start := time.Now()

	blob := gocv.BlobFromImage(*frame, 1.0/255.0,
		image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward(d.outputName)
	defer out.Close()

	ptr, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read network output: %w", err)
	}
	raw := make([]float32, len(ptr))
	copy(raw, ptr)

	kps, err := parseLandmarks(raw, d.valuesPer, d.inputSize,
		frame.Cols(), frame.Rows(), d.threshold)
	if err != nil {
		return nil, err
	}

	metrics.RecordPoseInferenceLatency(float64(time.Since(start).Milliseconds()))
	if len(kps) == 0 {
		metrics.RecordFrameSkipped()
	}
	return kps, nil
}

// Close releases the network.
func (d *DNN) Close() error {
	return d.net.Close()
}
