package annotation

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lanefour/divetrace/internal/domain/model"
)

type cocoExport struct {
	Images      []cocoImage      `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
	Categories  []cocoCategory   `json:"categories"`
}

type cocoImage struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type cocoAnnotation struct {
	ImageID    int `json:"image_id"`
	CategoryID int `json:"category_id"`
}

type cocoCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ParseCOCO reads a COCO JSON export. Annotations resolve through the
// category and image tables; image file names must carry the frame number
// as frame_<n> before the extension. Names that do not are collected in
// Skipped, an annotation referencing a missing image is dropped, and a
// missing category is an error.
func ParseCOCO(r io.Reader) (*Import, error) {
	var export cocoExport
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedExport, err)
	}

	categories := make(map[int]string, len(export.Categories))
	for _, c := range export.Categories {
		categories[c.ID] = c.Name
	}
	images := make(map[int]cocoImage, len(export.Images))
	for _, img := range export.Images {
		images[img.ID] = img
	}

	imp := &Import{Tags: make([]model.PhaseTag, 0, len(export.Annotations))}
	dimsSeen := false
	dimsMixed := false
	for _, ann := range export.Annotations {
		phase, ok := categories[ann.CategoryID]
		if !ok {
			return nil, fmt.Errorf("%w: category %d", ErrUnknownCategory, ann.CategoryID)
		}
		img, ok := images[ann.ImageID]
		if !ok {
			continue
		}

		frame, ok := frameNumber(img.FileName)
		if !ok {
			imp.Skipped = append(imp.Skipped, img.FileName)
			continue
		}
		imp.Tags = append(imp.Tags, model.PhaseTag{Frame: frame, Phase: phase})

		if img.Width <= 0 || img.Height <= 0 {
			continue
		}
		if !dimsSeen {
			imp.Width, imp.Height = img.Width, img.Height
			dimsSeen = true
		} else if imp.Width != img.Width || imp.Height != img.Height {
			dimsMixed = true
		}
	}
	if dimsMixed {
		imp.Width, imp.Height = 0, 0
	}
	return imp, nil
}

// frameNumber extracts n from file names like "frame_12.png". The base
// name is everything before the first dot.
func frameNumber(fileName string) (int, bool) {
	base := strings.SplitN(fileName, ".", 2)[0]
	if !strings.HasPrefix(base, "frame_") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(base, "frame_"))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
