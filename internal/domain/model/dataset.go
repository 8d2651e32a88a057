package model

// PhaseTag is one human annotation: a phase label on a single frame.
type PhaseTag struct {
	Frame int    `json:"frame"`
	Phase string `json:"phase"`
}

// PhaseSpan is a maximal run of consecutive frames sharing one phase.
// Frame bounds are inclusive; times are seconds from the start of the video.
type PhaseSpan struct {
	Phase           string  `json:"phase"`
	StartFrame      int     `json:"start_frame"`
	EndFrame        int     `json:"end_frame"`
	DurationFrames  int     `json:"duration_frames"`
	StartTime       float64 `json:"start_time"`
	EndTime         float64 `json:"end_time"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// PhaseFile is the phase-import artifact.
type PhaseFile struct {
	VideoInfo VideoInfo   `json:"video_info"`
	Phases    []PhaseSpan `json:"phases"`
}

// PhaseInfo is the per-frame phase annotation attached during merge.
// PhaseProgress is the frame's position within its span, scaled by the
// span length; TimeInPhase is seconds since the span began.
type PhaseInfo struct {
	Phase         string  `json:"phase"`
	PhaseProgress float64 `json:"phase_progress"`
	TimeInPhase   float64 `json:"time_in_phase"`
}

// FrameRecord is one merged frame: pose keypoints plus phase annotation.
type FrameRecord struct {
	Frame     int            `json:"frame"`
	Timestamp float64        `json:"timestamp"`
	Keypoints FrameKeypoints `json:"keypoints"`
	PhaseInfo PhaseInfo      `json:"phase_info"`
}

// Dataset is the merged artifact consumed by normalize, split and pack.
type Dataset struct {
	VideoInfo     VideoInfo     `json:"video_info"`
	PhasesSummary []PhaseSpan   `json:"phases_summary"`
	FrameData     []FrameRecord `json:"frame_data"`
}

// Sample is one training example: the flattened feature vector and the
// integer class label.
type Sample struct {
	Features []float32
	Label    int
}

// Prediction is one frame of classifier output.
type Prediction struct {
	Frame      int     `json:"frame"`
	Timestamp  float64 `json:"timestamp"`
	Phase      string  `json:"phase"`
	Confidence float64 `json:"confidence"`
}

// PredictionFile is the JSON artifact written by video inference.
type PredictionFile struct {
	VideoInfo   VideoInfo    `json:"video_info"`
	ModelID     string       `json:"model_id,omitempty"`
	Predictions []Prediction `json:"predictions"`
}
