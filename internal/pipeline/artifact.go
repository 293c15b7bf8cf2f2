package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"texsvg/internal/geometry"
)

// parseArtifactBBox computes the bounding box of a vector artifact from
// its viewBox, falling back to the width/height attributes. An artifact
// without a computable box is malformed: a successful stage run must
// never report one.
func parseArtifactBBox(svg []byte) (geometry.BBox, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(svg); err != nil {
		return geometry.BBox{}, fmt.Errorf("artifact is not well-formed XML: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "svg" {
		return geometry.BBox{}, fmt.Errorf("artifact has no svg root element")
	}

	if vb := root.SelectAttrValue("viewBox", ""); vb != "" {
		bbox, err := geometry.ParseBBox(vb)
		if err != nil {
			return geometry.BBox{}, fmt.Errorf("bad viewBox: %w", err)
		}
		if bbox.W <= 0 || bbox.H <= 0 {
			return geometry.BBox{}, fmt.Errorf("degenerate viewBox %q", vb)
		}
		return bbox, nil
	}

	w, errW := parseLength(root.SelectAttrValue("width", ""))
	h, errH := parseLength(root.SelectAttrValue("height", ""))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return geometry.BBox{}, fmt.Errorf("artifact has neither viewBox nor usable width/height")
	}
	return geometry.BBox{W: w, H: h}, nil
}

// parseLength reads an SVG length, tolerating a trailing unit suffix.
func parseLength(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	for _, unit := range []string{"pt", "px", "mm", "cm", "in"} {
		trimmed = strings.TrimSuffix(trimmed, unit)
	}
	return strconv.ParseFloat(trimmed, 64)
}
