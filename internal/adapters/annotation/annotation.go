// Package annotation imports per-frame phase labels from annotation tool
// exports: CVAT images-with-tags XML and COCO category JSON.
package annotation

import (
	"github.com/lanefour/divetrace/internal/domain/model"
)

// Import is the result of parsing an annotation export: raw frame tags
// ready for span grouping, plus whatever frame dimensions the export
// carried (zero when absent or inconsistent across images).
type Import struct {
	Tags   []model.PhaseTag
	Width  int
	Height int

	// Skipped lists source entries that could not be mapped to a frame
	// number, e.g. COCO file names not of the form frame_<n>.
	Skipped []string
}
