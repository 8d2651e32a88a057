package annotation

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/lanefour/divetrace/internal/domain/model"
)

// cvatExport mirrors the CVAT "images" XML layout: image elements with
// frame ids and per-image tag children.
type cvatExport struct {
	XMLName xml.Name    `xml:"annotations"`
	Images  []cvatImage `xml:"image"`
}

type cvatImage struct {
	ID     int       `xml:"id,attr"`
	Name   string    `xml:"name,attr"`
	Width  int       `xml:"width,attr"`
	Height int       `xml:"height,attr"`
	Tags   []cvatTag `xml:"tag"`
}

type cvatTag struct {
	Label string `xml:"label,attr"`
}

// ParseCVAT reads a CVAT XML export. Each tagged image yields one frame
// tag per non-empty label; image dimensions are reported when every image
// agrees on them.
func ParseCVAT(r io.Reader) (*Import, error) {
	var export cvatExport
	if err := xml.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedExport, err)
	}

	imp := &Import{Tags: make([]model.PhaseTag, 0, len(export.Images))}
	dimsSeen := false
	dimsMixed := false
	for _, image := range export.Images {
		for _, tag := range image.Tags {
			if tag.Label == "" {
				continue
			}
			imp.Tags = append(imp.Tags, model.PhaseTag{Frame: image.ID, Phase: tag.Label})
		}

		if image.Width <= 0 || image.Height <= 0 {
			continue
		}
		if !dimsSeen {
			imp.Width, imp.Height = image.Width, image.Height
			dimsSeen = true
		} else if imp.Width != image.Width || imp.Height != image.Height {
			dimsMixed = true
		}
	}
	if dimsMixed {
		imp.Width, imp.Height = 0, 0
	}
	return imp, nil
}
