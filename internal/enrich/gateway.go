// Package enrich turns raw CAPEC text into short, register-appropriate
// prose through an OpenAI-compatible chat completion backend.
//
// The Gateway contract is deliberately lossy: a failed call produces an
// empty string and callers fall back to the original text.
package enrich

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Profile selects the backend model and sampling for one rewrite.
type Profile struct {
	Model       string  `json:"model" yaml:"model"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// DefaultProfile is the small local reasoning model served by LM Studio.
func DefaultProfile() Profile {
	return Profile{
		Model:       "deepseek-r1-distill-qwen-7b",
		Temperature: 0.7,
	}
}

// Gateway rewrites source text following instructions. It never fails:
// any backend problem yields "".
type Gateway interface {
	Rewrite(ctx context.Context, instructions, source string, p Profile) string
}

// GatewayFunc adapts a plain function to the Gateway interface.
type GatewayFunc func(ctx context.Context, instructions, source string, p Profile) string

// Rewrite calls f.
func (f GatewayFunc) Rewrite(ctx context.Context, instructions, source string, p Profile) string {
	return f(ctx, instructions, source, p)
}

// Nop is the gateway used when enrichment is disabled.
type Nop struct{}

// Rewrite always returns "".
func (Nop) Rewrite(context.Context, string, string, Profile) string { return "" }

// ─── Registers ───────────────────────────────────────────────────────────────

// Register is the audience the rewritten text is written for.
type Register string

const (
	RegisterNonTechnical Register = "nontechnical"
	RegisterDeveloper    Register = "developer"
	RegisterExpert       Register = "expert"
)

var validRegisters = map[Register]bool{
	RegisterNonTechnical: true,
	RegisterDeveloper:    true,
	RegisterExpert:       true,
}

// Registers returns every known register, sorted.
func Registers() []string {
	out := make([]string, 0, len(validRegisters))
	for r := range validRegisters {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}

// ParseRegister validates a register name. Empty means nontechnical.
func ParseRegister(s string) (Register, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RegisterNonTechnical, nil
	}
	r := Register(s)
	if !validRegisters[r] {
		return "", fmt.Errorf("invalid register %q: must be one of %s",
			s, strings.Join(Registers(), ", "))
	}
	return r, nil
}

// ─── Instructions ────────────────────────────────────────────────────────────

// Instructions are the system prompts used for each enrichment task.
type Instructions struct {
	// Summarize rewrites one attack method into a short actionable step.
	Summarize string
	// Countermeasures asks for a JSON list of countermeasures against a
	// method, given the pattern's catalogued mitigations.
	Countermeasures string
	// WeaknessMethods asks for a JSON list of attack methods exploiting
	// the listed CWE weaknesses.
	WeaknessMethods string
}

const (
	plainTextRule = " You should NOT add anything, such as further instructions or additional " +
		"information, to the text. It should only be text, no markdown, code, lists or anything like that."
	jsonListRule = " Answer with a JSON array of strings and nothing else. Each entry is one short " +
		"sentence. Return an empty array if nothing applies."
)

var audience = map[Register]string{
	RegisterNonTechnical: "Use plain words a non-technical reader understands.",
	RegisterDeveloper:    "Write for a software developer; name concrete coding practices where relevant.",
	RegisterExpert:       "Write for a security specialist; keep precise technical terminology.",
}

// InstructionsFor returns the prompt set for a register. Unknown
// registers get the nontechnical wording.
func InstructionsFor(r Register) Instructions {
	tone, ok := audience[r]
	if !ok {
		tone = audience[RegisterNonTechnical]
	}
	return Instructions{
		Summarize: "Rewrite the text as a super short, actionable step. " + tone + plainTextRule,
		Countermeasures: "The text describes one attack method followed by the catalogued mitigations " +
			"of its attack pattern. List concrete countermeasures that stop this specific method. " +
			tone + jsonListRule,
		WeaknessMethods: "The text lists CWE weakness identifiers related to an attack pattern. " +
			"List concrete attack methods an attacker would use to exploit them. " +
			tone + jsonListRule,
	}
}
