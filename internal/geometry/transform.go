package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"texsvg/internal/document"
)

// Transform is a uniform scale followed by a translation. It is derived
// for one placement and never stored apart from the node it positions.
type Transform struct {
	Scale float64
	Tx    float64
	Ty    float64
}

// Identity is the neutral transform.
var Identity = Transform{Scale: 1}

// Apply maps a point through the transform.
func (t Transform) Apply(p Point) Point {
	return Point{X: p.X*t.Scale + t.Tx, Y: p.Y*t.Scale + t.Ty}
}

// ApplyBBox maps a box through the transform.
func (t Transform) ApplyBBox(b BBox) BBox {
	return b.Scaled(t.Scale).Translated(t.Tx, t.Ty)
}

// JacobianSqrt is the square root of the transform determinant. For a
// uniform scale it equals the scale itself; it is persisted so hosts can
// detect manual resizes, and is never fed back into placement.
func (t Transform) JacobianSqrt() float64 {
	return math.Sqrt(math.Abs(t.Scale * t.Scale))
}

// String renders the SVG matrix form matrix(s,0,0,s,tx,ty).
func (t Transform) String() string {
	s := formatFloat(t.Scale)
	return fmt.Sprintf("matrix(%s,0,0,%s,%s,%s)", s, s, formatFloat(t.Tx), formatFloat(t.Ty))
}

// ParseTransform reads back the matrix form produced by String. Only
// uniform, shear-free matrices are accepted; anything else means the host
// (or the user) edited the transform by hand.
func ParseTransform(s string) (Transform, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "matrix(") || !strings.HasSuffix(trimmed, ")") {
		return Transform{}, fmt.Errorf("not a matrix transform: %q", s)
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(trimmed, "matrix("), ")")
	parts := strings.FieldsFunc(inner, func(r rune) bool { return r == ',' || r == ' ' })
	if len(parts) != 6 {
		return Transform{}, fmt.Errorf("matrix needs 6 entries, got %d in %q", len(parts), s)
	}
	var m [6]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return Transform{}, fmt.Errorf("bad matrix entry %q: %w", p, err)
		}
		m[i] = v
	}
	if m[1] != 0 || m[2] != 0 || m[0] != m[3] {
		return Transform{}, fmt.Errorf("transform %q is not a uniform scale", s)
	}
	return Transform{Scale: m[0], Tx: m[4], Ty: m[5]}, nil
}

// Place positions a freshly created artifact: the natural bounding box is
// scaled uniformly by the requested scale and its center is moved to the
// caller-supplied insertion point.
func Place(natural BBox, scale float64, at Point) Transform {
	center := natural.Scaled(scale).Center()
	return Transform{Scale: scale, Tx: at.X - center.X, Ty: at.Y - center.Y}
}

// Reconcile positions a recompiled artifact against the node it replaces:
// the anchor point of the scaled new box is translated onto the anchor
// point of the old box exactly. The applied scale comes solely from the
// requested scale, never from the old node's rendered size, so manual
// non-uniform resizes cannot compound into distortion.
func Reconcile(natural BBox, scale float64, old BBox, anchor document.Anchor) Transform {
	pOld := old.AnchorPoint(anchor)
	pNew := natural.Scaled(scale).AnchorPoint(anchor)
	return Transform{Scale: scale, Tx: pOld.X - pNew.X, Ty: pOld.Y - pNew.Y}
}
