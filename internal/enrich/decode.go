package enrich

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
)

// DecodeList extracts a list of strings from a model reply. It tries, in
// order: a JSON array (bare, fenced, or the first array field of an
// object by key); the first bracketed span split on quotes or separators; and
// finally gives up with an empty slice. It never fails.
func DecodeList(text string) []string {
	text = strings.TrimSpace(stripFence(text))
	if text == "" {
		return []string{}
	}
	if items, ok := decodeJSONList(text); ok {
		return items
	}
	if items, ok := decodeLooseList(text); ok {
		return items
	}
	return []string{}
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string ("json") on the opening fence.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return s
}

func decodeJSONList(text string) ([]string, bool) {
	var items []string
	if err := json.Unmarshal([]byte(text), &items); err == nil {
		return clean(items), true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, false
	}
	// Several array fields: the first key in sorted order wins.
	for _, key := range slices.Sorted(maps.Keys(obj)) {
		if err := json.Unmarshal(obj[key], &items); err == nil {
			return clean(items), true
		}
	}
	return nil, false
}

func decodeLooseList(text string) ([]string, bool) {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return nil, false
	}
	end := strings.LastIndexByte(text, ']')
	if end <= start {
		return nil, false
	}
	body := text[start+1 : end]

	if items, ok := decodeJSONList("[" + body + "]"); ok {
		return items, true
	}
	if strings.Contains(body, `"`) {
		return clean(quotedItems(body)), true
	}
	return clean(strings.FieldsFunc(body, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})), true
}

// quotedItems returns the contents of each "..." run in s.
func quotedItems(s string) []string {
	var items []string
	for {
		open := strings.IndexByte(s, '"')
		if open < 0 {
			return items
		}
		rest := s[open+1:]
		closing := strings.IndexByte(rest, '"')
		if closing < 0 {
			return append(items, rest)
		}
		items = append(items, rest[:closing])
		s = rest[closing+1:]
	}
}

func clean(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(strings.Trim(strings.TrimSpace(it), `'"`))
		it = strings.TrimLeft(it, "-* ")
		if it != "" {
			out = append(out, it)
		}
	}
	return out
}
