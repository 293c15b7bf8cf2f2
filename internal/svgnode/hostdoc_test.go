package svgnode

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"texsvg/internal/document"
	"texsvg/internal/geometry"
)

const hostSVG = `<?xml version="1.0"?>
<svg xmlns="http://www.w3.org/2000/svg" xmlns:texsvg="https://texsvg.dev/ns" width="210mm" height="297mm" viewBox="0 0 210 297">
  <rect id="background" width="210" height="297" fill="white"/>
  <g id="texsvg-aaaa" texsvg:text="$a$" texsvg:engine="pdflatex" texsvg:scale="1" texsvg:version="1">
    <path d="M 0 0 H 10 Z"/>
  </g>
  <circle id="decoration" cx="10" cy="10" r="5"/>
  <g id="texsvg-bbbb" texsvg:text="$b$" texsvg:engine="typst" texsvg:scale="2" texsvg:version="1">
    <path d="M 0 0 H 20 Z"/>
  </g>
</svg>`

func TestManagedNodes(t *testing.T) {
	h, err := Parse([]byte(hostSVG))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	nodes := h.ManagedNodes()
	if len(nodes) != 2 {
		t.Fatalf("found %d managed nodes, want 2", len(nodes))
	}
	if nodes[0].ID() != "texsvg-aaaa" || nodes[1].ID() != "texsvg-bbbb" {
		t.Fatalf("node order: %q, %q", nodes[0].ID(), nodes[1].ID())
	}

	meta, err := nodes[1].Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if meta.Text != "$b$" || meta.Engine != document.EngineTypst || meta.Scale != 2 {
		t.Fatalf("metadata = %+v", meta)
	}
}

func TestNodeByID(t *testing.T) {
	h, err := Parse([]byte(hostSVG))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.NodeByID("texsvg-aaaa"); err != nil {
		t.Fatalf("NodeByID failed: %v", err)
	}
	if _, err := h.NodeByID("background"); err == nil {
		t.Fatal("unmanaged element resolved as node")
	}
	if _, err := h.NodeByID("missing"); err == nil {
		t.Fatal("missing id resolved as node")
	}
}

func TestReplacePreservesDocumentOrder(t *testing.T) {
	h, err := Parse([]byte(hostSVG))
	if err != nil {
		t.Fatal(err)
	}
	old, err := h.NodeByID("texsvg-aaaa")
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := ImportArtifact([]byte(artifactSVG), testMeta())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Replace(old, fresh); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	var order []string
	for _, child := range h.root.ChildElements() {
		order = append(order, child.SelectAttrValue("id", child.Tag))
	}
	want := []string{"background", fresh.ID(), "decoration", "texsvg-bbbb"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestReplaceDetachedNodeFails(t *testing.T) {
	h, err := Parse([]byte(hostSVG))
	if err != nil {
		t.Fatal(err)
	}
	detached, err := ImportArtifact([]byte(artifactSVG), testMeta())
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := ImportArtifact([]byte(artifactSVG), testMeta())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Replace(detached, fresh); err == nil {
		t.Fatal("replacing a detached node should fail")
	}
}

func TestInsertThenReload(t *testing.T) {
	h := NewHostDocument(100, 50)
	fresh, err := ImportArtifact([]byte(artifactSVG), Metadata{
		Text:   "$x \\in \\mathbb{R}$",
		Engine: document.EnginePDFLaTeX,
		Scale:  1.0,
		Anchor: document.DefaultAnchor,
	})
	if err != nil {
		t.Fatal(err)
	}
	fresh.SetTransform(geometry.Place(geometry.BBox{W: 30, H: 8}, 1.0, h.Center()))
	h.Insert(fresh)

	path := filepath.Join(t.TempDir(), "out.svg")
	if err := h.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	nodes := reloaded.ManagedNodes()
	if len(nodes) != 1 {
		t.Fatalf("found %d managed nodes after reload, want 1", len(nodes))
	}
	meta, err := nodes[0].Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if meta.Text != "$x \\in \\mathbb{R}$" {
		t.Fatalf("text after reload = %q", meta.Text)
	}
	tr, err := nodes[0].Transform()
	if err != nil {
		t.Fatal(err)
	}
	want := geometry.Place(geometry.BBox{W: 30, H: 8}, 1.0, geometry.Point{X: 50, Y: 25})
	if tr != want {
		t.Fatalf("transform after reload = %+v, want %+v", tr, want)
	}
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.svg")
	if err := os.WriteFile(path, []byte(hostSVG), 0o600); err != nil {
		t.Fatal(err)
	}

	h, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestCenter(t *testing.T) {
	tests := []struct {
		name string
		svg  string
		want geometry.Point
	}{
		{
			name: "viewBox",
			svg:  `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 210 297"/>`,
			want: geometry.Point{X: 105, Y: 148.5},
		},
		{
			name: "offset viewBox",
			svg:  `<svg xmlns="http://www.w3.org/2000/svg" viewBox="10 20 100 60"/>`,
			want: geometry.Point{X: 60, Y: 50},
		},
		{
			name: "width and height only",
			svg:  `<svg xmlns="http://www.w3.org/2000/svg" width="100pt" height="40pt"/>`,
			want: geometry.Point{X: 50, Y: 20},
		},
		{
			name: "nothing usable",
			svg:  `<svg xmlns="http://www.w3.org/2000/svg"/>`,
			want: geometry.Point{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Parse([]byte(tt.svg))
			if err != nil {
				t.Fatal(err)
			}
			if got := h.Center(); got != tt.want {
				t.Fatalf("Center = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWriteTo(t *testing.T) {
	h, err := Parse([]byte(hostSVG))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := h.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if !strings.Contains(buf.String(), "texsvg:text") {
		t.Fatal("serialized document lost metadata attributes")
	}
}

func TestParseRejectsNonSVG(t *testing.T) {
	if _, err := Parse([]byte(`<html xmlns="x"/>`)); err == nil {
		t.Fatal("non-svg root accepted")
	}
	if _, err := Parse([]byte("totally not xml")); err == nil {
		t.Fatal("malformed input accepted")
	}
}

func TestResolvePrefixRebound(t *testing.T) {
	rebound := strings.ReplaceAll(hostSVG, "texsvg:", "tt:")
	rebound = strings.ReplaceAll(rebound, "xmlns:texsvg", "xmlns:tt")
	h, err := Parse([]byte(rebound))
	if err != nil {
		t.Fatal(err)
	}
	if len(h.ManagedNodes()) != 2 {
		t.Fatal("nodes lost after prefix rebinding")
	}
}
