package main

import (
	"strings"
	"testing"

	"texsvg/internal/geometry"
)

func TestParsePoint(t *testing.T) {
	tests := []struct {
		in      string
		want    geometry.Point
		wantErr bool
	}{
		{in: "10,20", want: geometry.Point{X: 10, Y: 20}},
		{in: " 1.5 , -2.25 ", want: geometry.Point{X: 1.5, Y: -2.25}},
		{in: "10", wantErr: true},
		{in: "a,b", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePoint(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parsePoint(%q) accepted", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePoint(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("parsePoint(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestReadSourceText(t *testing.T) {
	if _, err := readSourceText(strings.NewReader(""), compileParams{}); err == nil {
		t.Fatal("missing source accepted")
	}
	if _, err := readSourceText(strings.NewReader(""), compileParams{text: "$x$", textFile: "f.tex"}); err == nil {
		t.Fatal("conflicting sources accepted")
	}
	got, err := readSourceText(strings.NewReader("$from stdin$"), compileParams{textFile: "-"})
	if err != nil {
		t.Fatalf("stdin source failed: %v", err)
	}
	if got != "$from stdin$" {
		t.Fatalf("stdin source = %q", got)
	}
	got, err = readSourceText(nil, compileParams{text: "$inline$"})
	if err != nil {
		t.Fatalf("inline source failed: %v", err)
	}
	if got != "$inline$" {
		t.Fatalf("inline source = %q", got)
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{
		"": uiAuto, "auto": uiAuto, "ON": uiOn, "always": uiOn, "off": uiOff, "never": uiOff,
	} {
		got, err := readUIMode(in)
		if err != nil {
			t.Fatalf("readUIMode(%q) failed: %v", in, err)
		}
		if got != want {
			t.Fatalf("readUIMode(%q) = %d, want %d", in, got, want)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Fatal("invalid mode accepted")
	}
	if !uiOn.live() {
		t.Fatal("forced-on mode not live")
	}
	if uiOff.live() {
		t.Fatal("forced-off mode live")
	}
}
