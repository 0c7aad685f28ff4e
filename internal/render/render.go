// Package render turns a finished synthesis into console text, Graphviz
// DOT or JSON. Renderers only read the tree.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/HendryAvila/adtree/internal/attacktree"
)

// Sink writes one synthesis to w.
type Sink interface {
	Render(w io.Writer, s *attacktree.Synthesis) error
}

// Format names a Sink.
type Format string

const (
	FormatText Format = "text"
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

var validFormats = map[Format]bool{
	FormatText: true,
	FormatDOT:  true,
	FormatJSON: true,
}

// ParseFormat validates a format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FormatText, nil
	}
	f := Format(s)
	if !validFormats[f] {
		return "", fmt.Errorf("invalid format %q: must be text, dot or json", s)
	}
	return f, nil
}

// New returns the Sink for f. compact only affects text output.
func New(f Format, compact bool) Sink {
	switch f {
	case FormatDOT:
		return DOT{}
	case FormatJSON:
		return JSON{Indent: "  "}
	}
	return Console{Compact: compact}
}

// JSON writes the synthesis as a JSON document.
type JSON struct {
	Indent string
}

// Render implements Sink.
func (j JSON) Render(w io.Writer, s *attacktree.Synthesis) error {
	enc := json.NewEncoder(w)
	if j.Indent != "" {
		enc.SetIndent("", j.Indent)
	}
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("render: json: %w", err)
	}
	return nil
}
