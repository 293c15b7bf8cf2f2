// Package geometry computes the affine placement of compiled artifacts.
package geometry

import (
	"fmt"
	"strconv"
	"strings"

	"texsvg/internal/document"
)

// Point is a position in document coordinates.
type Point struct {
	X float64
	Y float64
}

// BBox is an axis-aligned bounding box with the origin at the top left.
type BBox struct {
	X float64
	Y float64
	W float64
	H float64
}

// Center returns the centroid of the box.
func (b BBox) Center() Point {
	return Point{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Scaled returns the box scaled uniformly about the coordinate origin.
func (b BBox) Scaled(s float64) BBox {
	return BBox{X: b.X * s, Y: b.Y * s, W: b.W * s, H: b.H * s}
}

// Translated returns the box shifted by (dx, dy).
func (b BBox) Translated(dx, dy float64) BBox {
	return BBox{X: b.X + dx, Y: b.Y + dy, W: b.W, H: b.H}
}

// AnchorPoint returns the reference point of the box for the given anchor.
// Unknown axis values fall back to middle/center.
func (b BBox) AnchorPoint(a document.Anchor) Point {
	var p Point
	switch a.V {
	case document.VTop:
		p.Y = b.Y
	case document.VBottom:
		p.Y = b.Y + b.H
	default:
		p.Y = b.Y + b.H/2
	}
	switch a.H {
	case document.HLeft:
		p.X = b.X
	case document.HRight:
		p.X = b.X + b.W
	default:
		p.X = b.X + b.W/2
	}
	return p
}

// String renders the box in the persisted "x y w h" attribute form.
func (b BBox) String() string {
	return fmt.Sprintf("%s %s %s %s",
		formatFloat(b.X), formatFloat(b.Y), formatFloat(b.W), formatFloat(b.H))
}

// ParseBBox reads the persisted "x y w h" form.
func ParseBBox(s string) (BBox, error) {
	fields := strings.Fields(s)
	if len(fields) != 4 {
		return BBox{}, fmt.Errorf("bounding box needs 4 fields, got %d in %q", len(fields), s)
	}
	var vals [4]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return BBox{}, fmt.Errorf("bad bounding box field %q: %w", f, err)
		}
		vals[i] = v
	}
	return BBox{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

// formatFloat uses the shortest representation that round-trips exactly,
// which keeps repeated compiles byte-stable.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
