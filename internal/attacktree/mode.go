package attacktree

import (
	"fmt"
	"strings"
)

// Mode selects which optional enrichment stages a build runs.
type Mode string

const (
	// ModeBase: objectives, methods and catalogued mitigations.
	ModeBase Mode = "base"
	// ModeCountermeasures: per-method generated countermeasures replace
	// the mitigation list.
	ModeCountermeasures Mode = "countermeasures"
	// ModeFull: countermeasures plus methods generated from related
	// weaknesses.
	ModeFull Mode = "full"
)

var validModes = map[Mode]bool{
	ModeBase:            true,
	ModeCountermeasures: true,
	ModeFull:            true,
}

// Modes lists the modes in increasing order of elaboration.
func Modes() []string {
	return []string{string(ModeBase), string(ModeCountermeasures), string(ModeFull)}
}

// ParseMode validates a mode name. Empty means base.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ModeBase, nil
	}
	m := Mode(s)
	if !validModes[m] {
		return "", fmt.Errorf("invalid mode %q: must be one of %s", s, strings.Join(Modes(), ", "))
	}
	return m, nil
}

func (m Mode) countermeasures() bool { return m == ModeCountermeasures || m == ModeFull }

func (m Mode) weaknessMethods() bool { return m == ModeFull }
