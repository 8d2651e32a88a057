// Package model contains domain models passed between pipeline stages.
package model

// VideoInfo describes the source video a pipeline artifact was derived from.
// Width, height and orientation are stamped by the stages that know them.
type VideoInfo struct {
	Path        string  `json:"video_path,omitempty"`
	TotalFrames int     `json:"total_frames"`
	FPS         float64 `json:"fps"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	Orientation string  `json:"orientation,omitempty"`
}

// ROI is a rectangular region of interest in pixel coordinates.
type ROI struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TrackedBox is one frame of tracker output. Tracked is false on frames
// where the tracker lost the target; the box then repeats the last fix.
type TrackedBox struct {
	Frame   int  `json:"frame"`
	X       int  `json:"x"`
	Y       int  `json:"y"`
	Width   int  `json:"width"`
	Height  int  `json:"height"`
	Tracked bool `json:"tracked"`
}

// TrackFile is the JSON artifact written by the tracking stage.
type TrackFile struct {
	VideoInfo VideoInfo    `json:"video_info"`
	Boxes     []TrackedBox `json:"boxes"`
	Lost      []int        `json:"lost_frames,omitempty"`
}
