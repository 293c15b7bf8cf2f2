package svgnode

import (
	"strings"

	"github.com/beevik/etree"
)

// blackish holds the renderings of "no explicit color": the converter
// emits one of these for uncolored TeX output.
var blackish = map[string]bool{
	"rgb(0%,0%,0%)": true,
	"black":         true,
	"none":          true,
	"#000000":       true,
}

// colorProperties are the style entries that carry coloring between an
// old node and its recompiled replacement.
var colorProperties = []string{"fill", "stroke", "opacity", "stroke-opacity", "fill-opacity"}

// IsColorized reports whether any element of the node carries a
// non-black fill or stroke, as attribute or style entry. Markup whose
// source sets an explicit color renders this way, and such fresh
// coloring always wins over coloring applied in the host editor.
func (n *Node) IsColorized() bool {
	colorized := false
	walkElements(n.el, func(e *etree.Element) {
		for _, prop := range []string{"stroke", "fill"} {
			if value := e.SelectAttrValue(prop, ""); value != "" && !isBlackish(value) {
				colorized = true
			}
			if value, ok := parseStyle(e.SelectAttrValue("style", "")).get(prop); ok && !isBlackish(value) {
				colorized = true
			}
		}
	})
	return colorized
}

// ImportGroupColorStyle applies the color-relevant part of src's
// top-level style to every element of n. Strokes take the imported
// fill color so fraction bars and rules recolor together with glyphs,
// style-duplicating attributes are dropped, and elements without a
// stroke-width get 0 to keep glyphs from bolding.
func (n *Node) ImportGroupColorStyle(src *Node) {
	srcStyle := parseStyle(src.el.SelectAttrValue("style", ""))
	if srcStyle.empty() {
		return
	}

	colorStyle := newStyle()
	for _, prop := range colorProperties {
		if value, ok := srcStyle.get(prop); ok && strings.ToLower(value) != "none" {
			colorStyle.set(prop, value)
		}
	}

	fill, hasFill := colorStyle.get("fill")
	walkElements(n.el, func(e *etree.Element) {
		style := parseStyle(e.SelectAttrValue("style", ""))
		for _, prop := range colorStyle.keys {
			style.set(prop, colorStyle.values[prop])
		}
		if _, ok := style.get("stroke"); ok && hasFill {
			style.set("stroke", fill)
		}
		for _, prop := range []string{"stroke", "fill"} {
			if _, ok := srcStyle.get(prop); ok {
				e.RemoveAttr(prop)
			}
		}
		if _, ok := style.get("stroke-width"); !ok {
			style.set("stroke-width", "0")
		}
		e.CreateAttr("style", style.String())
	})
}

// SetNoneStrokesToZeroWidth adds stroke-width:0 to every element whose
// style sets stroke to none. Without it, recoloring the group in the
// host editor bolds the glyphs.
func (n *Node) SetNoneStrokesToZeroWidth() {
	walkElements(n.el, func(e *etree.Element) {
		style := parseStyle(e.SelectAttrValue("style", ""))
		if value, ok := style.get("stroke"); ok && strings.ToLower(value) == "none" {
			style.set("stroke-width", "0")
			e.CreateAttr("style", style.String())
		}
	})
}

func isBlackish(value string) bool {
	return blackish[strings.ReplaceAll(strings.ToLower(value), " ", "")]
}

// walkElements visits el and every element below it.
func walkElements(el *etree.Element, visit func(*etree.Element)) {
	visit(el)
	for _, child := range el.ChildElements() {
		walkElements(child, visit)
	}
}

// style is an ordered property list backing the style attribute.
// Order is preserved so untouched declarations round-trip unchanged.
type style struct {
	keys   []string
	values map[string]string
}

func newStyle() *style {
	return &style{values: make(map[string]string)}
}

func parseStyle(raw string) *style {
	s := newStyle()
	for _, decl := range strings.Split(raw, ";") {
		prop, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		s.set(strings.TrimSpace(prop), strings.TrimSpace(value))
	}
	return s
}

func (s *style) get(prop string) (string, bool) {
	value, ok := s.values[prop]
	return value, ok
}

func (s *style) set(prop, value string) {
	if _, ok := s.values[prop]; !ok {
		s.keys = append(s.keys, prop)
	}
	s.values[prop] = value
}

func (s *style) empty() bool {
	return len(s.keys) == 0
}

func (s *style) String() string {
	decls := make([]string, 0, len(s.keys))
	for _, prop := range s.keys {
		decls = append(decls, prop+":"+s.values[prop])
	}
	return strings.Join(decls, ";")
}
