package main

import (
	"fmt"
	"os"
	"strings"
)

// uiMode picks how batch progress is rendered: the live view, plain
// per-node lines, or whatever the output terminal supports.
type uiMode int

const (
	uiAuto uiMode = iota
	uiOn
	uiOff
)

func readUIMode(value string) (uiMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "auto":
		return uiAuto, nil
	case "on", "always":
		return uiOn, nil
	case "off", "never":
		return uiOff, nil
	}
	return uiAuto, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
}

// live reports whether the progress view should run. Auto follows the
// output terminal.
func (m uiMode) live() bool {
	if m == uiAuto {
		return isTerminal(os.Stdout)
	}
	return m == uiOn
}
