package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegister(t *testing.T) {
	r, err := ParseRegister("")
	require.NoError(t, err)
	assert.Equal(t, RegisterNonTechnical, r)

	r, err = ParseRegister(" Expert ")
	require.NoError(t, err)
	assert.Equal(t, RegisterExpert, r)

	_, err = ParseRegister("manager")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "developer, expert, nontechnical")
}

func TestInstructionsFor(t *testing.T) {
	nt := InstructionsFor(RegisterNonTechnical)
	assert.Contains(t, nt.Summarize, "super short, actionable step")
	assert.Contains(t, nt.Summarize, "no markdown")
	assert.Contains(t, nt.Countermeasures, "JSON array")
	assert.Contains(t, nt.WeaknessMethods, "CWE")

	dev := InstructionsFor(RegisterDeveloper)
	assert.NotEqual(t, nt.Summarize, dev.Summarize)

	assert.Equal(t, nt, InstructionsFor(Register("unknown")))
}

func TestNop(t *testing.T) {
	var g Gateway = Nop{}
	assert.Empty(t, g.Rewrite(context.Background(), "i", "s", DefaultProfile()))
}
