package capec

import (
	"fmt"
	"strings"
)

// Execution flow encoding markers.
const (
	stepDelimiter      = "::STEP:"
	techniqueDelimiter = "TECHNIQUE:"
	descriptionMarker  = "DESCRIPTION:"
	phaseMarker        = "PHASE:"
)

// Method is one attack technique inside an objective.
type Method struct {
	Original string `json:"original"`
	Enriched string `json:"enriched,omitempty"`
	// Suggestions holds generated countermeasures for this method. Only
	// populated by elaboration modes that request countermeasures.
	Suggestions []string `json:"suggestions,omitempty"`
}

// Text returns the enriched text when available, the original otherwise.
func (m Method) Text() string {
	if strings.TrimSpace(m.Enriched) != "" {
		return m.Enriched
	}
	return m.Original
}

// Objective is one step of a pattern's execution flow.
type Objective struct {
	Title   string   `json:"title"`
	Methods []Method `json:"methods"`
}

// ParseFlow decodes an execution flow such as
//
//	::STEP:1:PHASE:Explore:DESCRIPTION:[Survey]:TECHNIQUE:port scan::TECHNIQUE:banner grab::
//
// into one Objective per "::STEP:" delimiter. It never fails: a step
// without a usable description falls back to a positional or phase label.
func ParseFlow(text string) []Objective {
	segments := strings.Split(text, stepDelimiter)
	if len(segments) < 2 {
		return nil
	}

	objectives := make([]Objective, 0, len(segments)-1)
	for i, seg := range segments[1:] {
		objectives = append(objectives, Objective{
			Title:   stepLabel(seg, i+1),
			Methods: stepMethods(seg),
		})
	}
	return objectives
}

// stepLabel picks an objective label for one step segment, in order:
// bracketed description, unbracketed description, phase, position.
func stepLabel(seg string, n int) string {
	if title, ok := bracketedDescription(seg); ok {
		return "[" + title + "]"
	}
	if desc, ok := plainDescription(seg); ok {
		return fmt.Sprintf("[Step %d] %s", n, desc)
	}
	if phase, ok := phaseName(seg); ok {
		return fmt.Sprintf("[%s Phase]", phase)
	}
	return fmt.Sprintf("[Step %d]", n)
}

func bracketedDescription(seg string) (string, bool) {
	marker := descriptionMarker + "["
	idx := strings.Index(seg, marker)
	if idx < 0 {
		return "", false
	}
	rest := seg[idx+len(marker):]
	end := strings.Index(rest, "]")
	if end < 0 {
		return "", false
	}
	title := strings.TrimSpace(rest[:end])
	return title, title != ""
}

func plainDescription(seg string) (string, bool) {
	idx := strings.Index(seg, descriptionMarker)
	if idx < 0 {
		return "", false
	}
	rest := seg[idx+len(descriptionMarker):]
	rest = cutAtFirst(rest, ":"+techniqueDelimiter, "::")
	// Empty or unterminated brackets land here too; drop the leftovers.
	desc := strings.TrimSpace(strings.Trim(strings.TrimSpace(rest), "[]"))
	return desc, desc != ""
}

func phaseName(seg string) (string, bool) {
	idx := strings.Index(seg, phaseMarker)
	if idx < 0 {
		return "", false
	}
	rest := seg[idx+len(phaseMarker):]
	phase := strings.TrimSpace(cutAtFirst(rest, ":"))
	return phase, phase != ""
}

func stepMethods(seg string) []Method {
	parts := strings.Split(seg, techniqueDelimiter)
	var methods []Method
	for _, part := range parts[1:] {
		text, _, _ := strings.Cut(part, "::")
		if text = strings.TrimSpace(text); text != "" {
			methods = append(methods, Method{Original: text})
		}
	}
	return methods
}

// cutAtFirst returns s up to the earliest occurrence of any separator.
func cutAtFirst(s string, seps ...string) string {
	end := len(s)
	for _, sep := range seps {
		if i := strings.Index(s, sep); i >= 0 && i < end {
			end = i
		}
	}
	return s[:end]
}
