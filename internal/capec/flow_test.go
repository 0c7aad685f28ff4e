package capec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlow_TwoObjectives(t *testing.T) {
	text := "::STEP:DESCRIPTION:[Recon]:TECHNIQUE:port scan::TECHNIQUE:banner grab::" +
		"STEP:DESCRIPTION:[Exploit]:TECHNIQUE:buffer overflow::"

	objs := ParseFlow(text)
	require.Len(t, objs, 2)

	assert.Equal(t, "[Recon]", objs[0].Title)
	require.Len(t, objs[0].Methods, 2)
	assert.Equal(t, "port scan", objs[0].Methods[0].Original)
	assert.Equal(t, "banner grab", objs[0].Methods[1].Original)

	assert.Equal(t, "[Exploit]", objs[1].Title)
	require.Len(t, objs[1].Methods, 1)
	assert.Equal(t, "buffer overflow", objs[1].Methods[0].Original)
}

func TestParseFlow_Empty(t *testing.T) {
	assert.Empty(t, ParseFlow(""))
	assert.Empty(t, ParseFlow("no steps here"))
}

func TestParseFlow_LabelLadder(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "bracketed description",
			text: "::STEP:1:PHASE:Explore:DESCRIPTION:[Survey the target] The adversary looks around.:TECHNIQUE:spider::",
			want: "[Survey the target]",
		},
		{
			name: "unbracketed description",
			text: "::STEP:DESCRIPTION:Probe the login form:TECHNIQUE:try defaults::",
			want: "[Step 1] Probe the login form",
		},
		{
			name: "unterminated bracket",
			text: "::STEP:DESCRIPTION:[Probe the login form:TECHNIQUE:try defaults::",
			want: "[Step 1] Probe the login form",
		},
		{
			name: "empty brackets fall to phase",
			text: "::STEP:PHASE:Exploit:DESCRIPTION:[]::",
			want: "[Exploit Phase]",
		},
		{
			name: "phase only",
			text: "::STEP:1:PHASE:Experiment:TECHNIQUE:fuzz inputs::",
			want: "[Experiment Phase]",
		},
		{
			name: "bare step",
			text: "::STEP:TECHNIQUE:fuzz inputs::",
			want: "[Step 1]",
		},
		{
			name: "nothing at all",
			text: "::STEP:",
			want: "[Step 1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objs := ParseFlow(tt.text)
			require.Len(t, objs, 1)
			assert.Equal(t, tt.want, objs[0].Title)
		})
	}
}

func TestParseFlow_PositionalFallbackUsesStepIndex(t *testing.T) {
	objs := ParseFlow("::STEP:DESCRIPTION:[First]::STEP:TECHNIQUE:x::STEP:DESCRIPTION:third thing::")
	require.Len(t, objs, 3)
	assert.Equal(t, "[First]", objs[0].Title)
	assert.Equal(t, "[Step 2]", objs[1].Title)
	assert.Equal(t, "[Step 3] third thing", objs[2].Title)
}

func TestParseFlow_LengthMatchesDelimiters(t *testing.T) {
	inputs := []string{
		"::STEP:",
		"::STEP:::STEP:",
		"garbage::STEP:DESCRIPTION:[a]::STEP:PHASE:::STEP:TECHNIQUE:::",
		"::STEP:DESCRIPTION:[unterminated::STEP:DESCRIPTION:",
		"::STEP:1:PHASE:Explore:DESCRIPTION:[A]:TECHNIQUE:t1::TECHNIQUE:t2::STEP:2:PHASE:Exploit:DESCRIPTION:[B]::",
	}
	for _, in := range inputs {
		objs := ParseFlow(in)
		assert.Len(t, objs, strings.Count(in, "::STEP:"), "input %q", in)
		for _, o := range objs {
			assert.NotEmpty(t, o.Title, "input %q", in)
		}
	}
}

func TestParseFlow_DropsEmptyTechniques(t *testing.T) {
	objs := ParseFlow("::STEP:DESCRIPTION:[A]:TECHNIQUE:   ::TECHNIQUE:real one::")
	require.Len(t, objs, 1)
	require.Len(t, objs[0].Methods, 1)
	assert.Equal(t, "real one", objs[0].Methods[0].Original)
}

func TestMethod_Text(t *testing.T) {
	assert.Equal(t, "orig", Method{Original: "orig"}.Text())
	assert.Equal(t, "orig", Method{Original: "orig", Enriched: "  "}.Text())
	assert.Equal(t, "short", Method{Original: "orig", Enriched: "short"}.Text())
}
