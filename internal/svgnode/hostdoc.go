package svgnode

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"texsvg/internal/geometry"
)

// HostDocument is the SVG file the managed nodes live in. One edit
// session owns the value; nothing here is safe for concurrent use.
type HostDocument struct {
	doc  *etree.Document
	root *etree.Element
	// prefix the document binds to the metadata namespace; "texsvg"
	// unless the document declares another one.
	prefix string
}

// Load reads a host document from disk.
func Load(path string) (*HostDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse reads a host document from raw bytes.
func Parse(data []byte) (*HostDocument, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("document is not well-formed XML: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "svg" {
		return nil, fmt.Errorf("document has no svg root element")
	}
	return &HostDocument{doc: doc, root: root, prefix: resolvePrefix(root)}, nil
}

// NewHostDocument creates an empty host document sized to the given
// box, for compiling straight to a fresh file.
func NewHostDocument(width, height float64) *HostDocument {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("svg")
	root.CreateAttr("xmlns", "http://www.w3.org/2000/svg")
	root.CreateAttr("xmlns:xlink", "http://www.w3.org/1999/xlink")
	root.CreateAttr("width", formatFloat(width)+"pt")
	root.CreateAttr("height", formatFloat(height)+"pt")
	root.CreateAttr("viewBox", geometry.BBox{W: width, H: height}.String())
	return &HostDocument{doc: doc, root: root, prefix: NamespacePrefix}
}

// SetViewBox resizes the document to the given box, for documents
// created around a single freshly compiled node.
func (h *HostDocument) SetViewBox(b geometry.BBox) {
	h.root.CreateAttr("width", formatFloat(b.W)+"pt")
	h.root.CreateAttr("height", formatFloat(b.H)+"pt")
	h.root.CreateAttr("viewBox", b.String())
}

// resolvePrefix finds the prefix the document binds to the metadata
// namespace. Documents written by this program use "texsvg", but a
// host editor may rebind the declaration on save.
func resolvePrefix(root *etree.Element) string {
	prefix := NamespacePrefix
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, attr := range e.Attr {
			if attr.Space == "xmlns" && attr.Value == Namespace {
				prefix = attr.Key
				return
			}
		}
		for _, child := range e.ChildElements() {
			walk(child)
		}
	}
	walk(root)
	return prefix
}

// ManagedNodes returns every managed node in document order. A node is
// managed when it carries the namespaced source-text attribute.
func (h *HostDocument) ManagedNodes() []*Node {
	var nodes []*Node
	walkElements(h.root, func(e *etree.Element) {
		if e.SelectAttr(h.prefix+":"+keyText) != nil {
			nodes = append(nodes, &Node{el: e, prefix: h.prefix})
		}
	})
	return nodes
}

// NodeByID returns the managed node with the given element id.
func (h *HostDocument) NodeByID(id string) (*Node, error) {
	for _, n := range h.ManagedNodes() {
		if n.ID() == id {
			return n, nil
		}
	}
	return nil, fmt.Errorf("no managed node with id %q", id)
}

// Insert appends a node under the document root.
func (h *HostDocument) Insert(n *Node) {
	h.root.AddChild(n.el)
}

// Replace swaps old for fresh at old's position, keeping document
// order (and therefore z-order) intact.
func (h *HostDocument) Replace(old, fresh *Node) error {
	parent := old.el.Parent()
	if parent == nil {
		return fmt.Errorf("node %q is not attached to the document", old.ID())
	}
	idx := old.el.Index()
	parent.InsertChildAt(idx, fresh.el)
	parent.RemoveChild(old.el)
	return nil
}

// Center returns the midpoint of the document's view box, the default
// insertion point for fresh nodes.
func (h *HostDocument) Center() geometry.Point {
	if vb := h.root.SelectAttrValue("viewBox", ""); vb != "" {
		if bbox, err := geometry.ParseBBox(vb); err == nil {
			return bbox.Center()
		}
	}
	w, errW := parseDocLength(h.root.SelectAttrValue("width", ""))
	hgt, errH := parseDocLength(h.root.SelectAttrValue("height", ""))
	if errW == nil && errH == nil {
		return geometry.Point{X: w / 2, Y: hgt / 2}
	}
	return geometry.Point{}
}

// Save writes the document atomically: a sibling temp file is renamed
// over the target so a crash never leaves a half-written host file.
func (h *HostDocument) Save(path string) error {
	h.doc.Indent(2)
	data, err := h.doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize document: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".texsvg-*.svg")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("failed to write %s: %w", path, writeErr)
		}
		return fmt.Errorf("failed to write %s: %w", path, closeErr)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// WriteTo streams the document, for `--output -`.
func (h *HostDocument) WriteTo(w io.Writer) error {
	h.doc.Indent(2)
	_, err := h.doc.WriteTo(w)
	return err
}

func parseDocLength(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	for _, unit := range []string{"pt", "px", "mm", "cm", "in"} {
		trimmed = strings.TrimSuffix(trimmed, unit)
	}
	return strconv.ParseFloat(trimmed, 64)
}
