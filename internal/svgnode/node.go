package svgnode

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"texsvg/internal/geometry"
)

// Node is one managed group in a host document: the rendered drawing
// plus the metadata needed to re-edit it.
type Node struct {
	el *etree.Element
	// prefix is the namespace prefix the metadata attributes use in
	// this document; freshly imported nodes always use NamespacePrefix.
	prefix string
}

// drawingTags lists the artifact elements worth carrying into the
// managed group; converter chrome (sodipodi:namedview, metadata) is
// left behind.
var drawingTags = map[string]bool{
	"g": true, "path": true, "rect": true, "circle": true, "ellipse": true,
	"line": true, "polyline": true, "polygon": true, "text": true,
	"image": true, "use": true, "defs": true, "symbol": true,
}

// urlRefPattern matches url(#id) references in attribute values.
var urlRefPattern = regexp.MustCompile(`url\(#([^)(]*)\)`)

// ImportArtifact turns a converter-produced SVG document into a managed
// group: top-level drawing elements are gathered under one <g> and
// every element id is replaced with a fresh unique one, with url(#...)
// references rewritten to match. Converters reuse ids across runs, so
// without the rewrite two imported nodes would alias each other's
// gradients and clips.
func ImportArtifact(svg []byte, meta Metadata) (*Node, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(svg); err != nil {
		return nil, fmt.Errorf("artifact is not well-formed XML: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "svg" {
		return nil, fmt.Errorf("artifact has no svg root element")
	}

	group := etree.NewElement("g")
	for _, child := range root.ChildElements() {
		if drawingTags[child.Tag] {
			group.AddChild(child.Copy())
		}
	}
	if len(group.ChildElements()) == 0 {
		return nil, fmt.Errorf("artifact contains no drawing elements")
	}

	makeIDsUnique(group)
	group.CreateAttr("id", NamespacePrefix+"-"+uuid.NewString())
	writeMetadata(group, meta)

	return &Node{el: group, prefix: NamespacePrefix}, nil
}

// makeIDsUnique rewrites every id under el and every url(#...)
// reference to the renamed ids. References to ids defined outside el
// are left untouched.
func makeIDsUnique(el *etree.Element) {
	rename := make(map[string]string)

	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		if old := e.SelectAttrValue("id", ""); old != "" {
			fresh := "id-" + uuid.NewString()
			e.CreateAttr("id", fresh)
			rename[old] = fresh
		}
		for _, child := range e.ChildElements() {
			walk(child)
		}
	}
	walk(el)

	var rewrite func(*etree.Element)
	rewrite = func(e *etree.Element) {
		for _, attr := range e.Attr {
			if !strings.Contains(attr.Value, "url(#") {
				continue
			}
			value := urlRefPattern.ReplaceAllStringFunc(attr.Value, func(match string) string {
				old := urlRefPattern.FindStringSubmatch(match)[1]
				if fresh, ok := rename[old]; ok {
					return "url(#" + fresh + ")"
				}
				return match
			})
			e.CreateAttr(attr.FullKey(), value)
		}
		for _, child := range e.ChildElements() {
			rewrite(child)
		}
	}
	rewrite(el)
}

// ID returns the node's element id.
func (n *Node) ID() string {
	return n.el.SelectAttrValue("id", "")
}

// Metadata reads the persisted round-trip state.
func (n *Node) Metadata() (Metadata, error) {
	return readMetadata(n.el, n.prefix)
}

// SetMetadata replaces the persisted round-trip state.
func (n *Node) SetMetadata(m Metadata) {
	writeMetadata(n.el, m)
}

// Transform reads the node's placement. A node without a transform
// attribute sits at identity.
func (n *Node) Transform() (geometry.Transform, error) {
	raw := n.el.SelectAttrValue("transform", "")
	if raw == "" {
		return geometry.Transform{Scale: 1}, nil
	}
	return geometry.ParseTransform(raw)
}

// SetTransform writes the node's placement and refreshes the persisted
// jacobian so the host can introspect the rendered scale.
func (n *Node) SetTransform(t geometry.Transform) {
	n.el.CreateAttr("transform", t.String())
	n.el.CreateAttr(n.prefix+":"+keyJacobianSqrt, formatFloat(t.JacobianSqrt()))
}

// Element exposes the underlying group for host-document surgery.
func (n *Node) Element() *etree.Element {
	return n.el
}
