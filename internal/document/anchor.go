package document

import "strings"

// VAlign is the vertical half of an anchor.
type VAlign string

// HAlign is the horizontal half of an anchor.
type HAlign string

const (
	VTop    VAlign = "top"
	VMiddle VAlign = "middle"
	VBottom VAlign = "bottom"

	HLeft   HAlign = "left"
	HCenter HAlign = "center"
	HRight  HAlign = "right"
)

// Anchor is one of the nine reference points used to align an old and a
// newly compiled node. The canonical string form is "<vertical> <horizontal>",
// e.g. "middle center" or "top left".
type Anchor struct {
	V VAlign
	H HAlign
}

// DefaultAnchor is used when no anchor is recorded on a node.
var DefaultAnchor = Anchor{V: VMiddle, H: HCenter}

// ParseAnchor reads the two-word anchor form. Unknown words fall back
// per axis to middle/center rather than failing, so metadata written by
// newer versions still places nodes sensibly.
func ParseAnchor(s string) Anchor {
	a := DefaultAnchor
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) != 2 {
		return a
	}
	switch VAlign(fields[0]) {
	case VTop, VMiddle, VBottom:
		a.V = VAlign(fields[0])
	}
	switch HAlign(fields[1]) {
	case HLeft, HCenter, HRight:
		a.H = HAlign(fields[1])
	}
	return a
}

func (a Anchor) String() string {
	v, h := a.V, a.H
	if v == "" {
		v = VMiddle
	}
	if h == "" {
		h = HCenter
	}
	return string(v) + " " + string(h)
}
