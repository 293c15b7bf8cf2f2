// Package svgnode manages the re-editable SVG groups: importing fresh
// artifacts, embedding round-trip metadata, reconciling style, and
// editing the host document.
package svgnode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/unicode/norm"

	"texsvg/internal/document"
	"texsvg/internal/geometry"
)

// Namespace qualifies every metadata attribute written to a managed
// node. The prefix is declared on the node itself so the host document
// needs no preparation.
const (
	Namespace       = "https://texsvg.dev/ns"
	NamespacePrefix = "texsvg"
)

// metaVersion tags the metadata format, not the program release.
// Readers must tolerate keys added by later formats.
const metaVersion = "1"

// Metadata attribute keys, relative to the namespace prefix.
const (
	keyText         = "text"
	keyEngine       = "engine"
	keyPreamble     = "preamble"
	keyScale        = "scale"
	keyAnchor       = "anchor"
	keyStrokeToPath = "stroke-to-path"
	keyBBox         = "bbox"
	keyJacobianSqrt = "jacobian-sqrt"
	keyVersion      = "version"
)

// Metadata is the full round-trip state persisted on a managed node.
// Text, engine, preamble and scale survive save/reopen losslessly; the
// rest is informational or geometric bookkeeping.
type Metadata struct {
	Text         string
	Engine       document.Engine
	Preamble     string
	Scale        float64
	Anchor       document.Anchor
	StrokeToPath bool
	BBox         geometry.BBox
	JacobianSqrt float64
	Version      string
}

// MetadataFromDocument snapshots the compile parameters of a source
// document for embedding.
func MetadataFromDocument(doc document.SourceDocument) Metadata {
	return Metadata{
		Text:         doc.Text,
		Engine:       doc.Engine,
		Preamble:     doc.Preamble,
		Scale:        doc.Scale,
		Anchor:       doc.Anchor,
		StrokeToPath: doc.StrokeToPath,
		Version:      metaVersion,
	}
}

// Document rehydrates a source document from persisted metadata.
func (m Metadata) Document() document.SourceDocument {
	return document.SourceDocument{
		Text:         m.Text,
		Engine:       m.Engine,
		Preamble:     m.Preamble,
		Scale:        m.Scale,
		Anchor:       m.Anchor,
		StrokeToPath: m.StrokeToPath,
	}
}

// writeMetadata embeds m on el, declaring the namespace prefix there.
func writeMetadata(el *etree.Element, m Metadata) {
	el.CreateAttr("xmlns:"+NamespacePrefix, Namespace)
	set := func(key, value string) {
		el.CreateAttr(NamespacePrefix+":"+key, value)
	}
	set(keyText, escapeText(m.Text))
	set(keyEngine, string(m.Engine))
	set(keyPreamble, m.Preamble)
	set(keyScale, strconv.FormatFloat(m.Scale, 'g', -1, 64))
	set(keyAnchor, m.Anchor.String())
	set(keyStrokeToPath, strconv.FormatBool(m.StrokeToPath))
	set(keyBBox, m.BBox.String())
	set(keyJacobianSqrt, strconv.FormatFloat(m.JacobianSqrt, 'g', -1, 64))
	set(keyVersion, metaVersion)
}

// readMetadata recovers metadata from a managed element. Missing or
// malformed optional fields fall back to defaults so nodes written by
// newer formats, or hand-edited ones, still open.
func readMetadata(el *etree.Element, prefix string) (Metadata, error) {
	get := func(key string) string {
		return el.SelectAttrValue(prefix+":"+key, "")
	}

	text, err := unescapeText(get(keyText))
	if err != nil {
		return Metadata{}, fmt.Errorf("bad %s:%s attribute: %w", prefix, keyText, err)
	}

	m := Metadata{
		Text:     norm.NFC.String(text),
		Preamble: get(keyPreamble),
		Anchor:   document.ParseAnchor(get(keyAnchor)),
		Version:  get(keyVersion),
	}
	if m.Version == "" {
		m.Version = metaVersion
	}

	m.Engine = document.EnginePDFLaTeX
	if raw := get(keyEngine); raw != "" {
		engine, err := document.ParseEngine(raw)
		if err != nil {
			return Metadata{}, fmt.Errorf("bad %s:%s attribute: %w", prefix, keyEngine, err)
		}
		m.Engine = engine
	}

	m.Scale = 1.0
	if raw := get(keyScale); raw != "" {
		scale, err := strconv.ParseFloat(raw, 64)
		if err != nil || scale <= 0 {
			return Metadata{}, fmt.Errorf("bad %s:%s attribute %q", prefix, keyScale, raw)
		}
		m.Scale = scale
	}

	if raw := get(keyStrokeToPath); raw != "" {
		m.StrokeToPath, _ = strconv.ParseBool(raw)
	}
	if raw := get(keyBBox); raw != "" {
		if bbox, err := geometry.ParseBBox(raw); err == nil {
			m.BBox = bbox
		}
	}
	if raw := get(keyJacobianSqrt); raw != "" {
		m.JacobianSqrt, _ = strconv.ParseFloat(raw, 64)
	}
	return m, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// escapeText folds the source onto one attribute-safe line: newlines,
// control characters and non-printables become backslash escapes.
func escapeText(s string) string {
	quoted := strconv.Quote(s)
	return quoted[1 : len(quoted)-1]
}

// unescapeText reverses escapeText. Plain text without escapes passes
// through untouched, so attributes written by other tools still read.
func unescapeText(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	unquoted, err := strconv.Unquote(`"` + s + `"`)
	if err != nil {
		return "", err
	}
	return unquoted, nil
}
