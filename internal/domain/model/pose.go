package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LandmarkCount is the number of body landmarks the pose model emits per frame.
const LandmarkCount = 33

// Keypoint is a single body landmark. X and Y are pixels until the
// normalization stage divides them by the frame dimensions.
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// FrameKeypoints maps landmark index to keypoint. It marshals with
// "kp_<i>" keys so pose files stay readable by the annotation tooling.
type FrameKeypoints map[int]Keypoint

func (k FrameKeypoints) MarshalJSON() ([]byte, error) {
	m := make(map[string]Keypoint, len(k))
	for idx, kp := range k {
		m[fmt.Sprintf("kp_%d", idx)] = kp
	}
	return json.Marshal(m)
}

func (k *FrameKeypoints) UnmarshalJSON(data []byte) error {
	var raw map[string]Keypoint
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(FrameKeypoints, len(raw))
	for key, kp := range raw {
		idx, ok := indexedKey(key, "kp_")
		if !ok {
			continue
		}
		out[idx] = kp
	}
	*k = out
	return nil
}

// PoseFile is the pose-extraction artifact: one keypoint set per frame,
// keyed "frame_<n>" at the top level, plus a "video_info" header. Consumers
// that only understand frame keys ignore the header.
type PoseFile struct {
	VideoInfo VideoInfo
	Frames    map[int]FrameKeypoints
}

func (p PoseFile) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Frames)+1)
	m["video_info"] = p.VideoInfo
	for frame, kps := range p.Frames {
		m[fmt.Sprintf("frame_%d", frame)] = kps
	}
	return json.Marshal(m)
}

func (p *PoseFile) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := PoseFile{Frames: make(map[int]FrameKeypoints, len(raw))}
	for key, msg := range raw {
		if key == "video_info" {
			if err := json.Unmarshal(msg, &out.VideoInfo); err != nil {
				return fmt.Errorf("video_info: %w", err)
			}
			continue
		}
		frame, ok := indexedKey(key, "frame_")
		if !ok {
			continue
		}
		var kps FrameKeypoints
		if err := json.Unmarshal(msg, &kps); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		out.Frames[frame] = kps
	}
	*p = out
	return nil
}

// indexedKey parses keys of the form "<prefix><n>" with a non-negative n.
func indexedKey(key, prefix string) (int, bool) {
	if !strings.HasPrefix(key, prefix) {
		return 0, false
	}
	idx, err := strconv.Atoi(key[len(prefix):])
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
