// Package capec models CAPEC attack pattern records and decodes the
// compact "::"-delimited encodings the CAPEC CSV export uses for
// execution flows, related patterns, related weaknesses and mitigations.
//
// Everything in this package is pure: no I/O, no enrichment calls.
// Method.Enriched is filled in later by the tree builder.
package capec

import (
	"fmt"
	"strings"
)

// ─── Abstraction ─────────────────────────────────────────────────────────────

// Abstraction is the CAPEC abstraction level of a pattern.
type Abstraction string

const (
	AbstractionMeta     Abstraction = "Meta"
	AbstractionStandard Abstraction = "Standard"
	AbstractionDetailed Abstraction = "Detailed"
)

// ParseAbstraction normalizes the casing of a known abstraction level.
// Unknown values are returned trimmed but otherwise untouched.
func ParseAbstraction(s string) Abstraction {
	s = strings.TrimSpace(s)
	for _, a := range []Abstraction{AbstractionMeta, AbstractionStandard, AbstractionDetailed} {
		if strings.EqualFold(s, string(a)) {
			return a
		}
	}
	return Abstraction(s)
}

// Expandable reports whether patterns of this level are expanded into
// attack trees. Meta patterns are conceptual and stay out of the tree.
func (a Abstraction) Expandable() bool {
	return a == AbstractionStandard || a == AbstractionDetailed
}

// ─── Record ──────────────────────────────────────────────────────────────────

// Record is one CAPEC attack pattern as stored in the knowledge base.
// The encoded fields are kept raw; use the Parse* functions to decode them.
type Record struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Abstraction       Abstraction `json:"abstraction"`
	Status            string      `json:"status,omitempty"`
	Description       string      `json:"description,omitempty"`
	ExecutionFlow     string      `json:"execution_flow,omitempty"`
	RelatedPatterns   string      `json:"related_patterns,omitempty"`
	RelatedWeaknesses string      `json:"related_weaknesses,omitempty"`
	Mitigations       string      `json:"mitigations,omitempty"`
}

// Title is the display title used for pattern nodes: "Name (CAPEC-ID)".
func (r *Record) Title() string {
	if r.Name == "" {
		return FormatID(r.ID)
	}
	return fmt.Sprintf("%s (%s)", r.Name, FormatID(r.ID))
}

// ─── Identifiers ─────────────────────────────────────────────────────────────

const idPrefix = "CAPEC-"

// NormalizeID strips the "CAPEC-" prefix (any case) and surrounding space,
// so "CAPEC-66", "capec-66" and " 66 " all become "66".
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) >= len(idPrefix) && strings.EqualFold(id[:len(idPrefix)], idPrefix) {
		id = id[len(idPrefix):]
	}
	return strings.TrimSpace(id)
}

// FormatID renders an identifier in its canonical "CAPEC-<n>" form.
func FormatID(id string) string {
	return idPrefix + NormalizeID(id)
}

// ─── Simple lists ────────────────────────────────────────────────────────────

// ParseMitigations decodes the "::text::text::" mitigation list.
func ParseMitigations(text string) []string {
	return splitList(text)
}

// ParseWeaknesses decodes the "::74::20::" related weakness (CWE id) list.
func ParseWeaknesses(text string) []string {
	return splitList(text)
}

func splitList(text string) []string {
	var out []string
	for _, part := range strings.Split(text, "::") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
