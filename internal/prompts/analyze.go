// Package prompts implements MCP prompt handlers for attack tree analysis.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to call the capec_* tools in a specific sequence.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/adtree/internal/attacktree"
	"github.com/HendryAvila/adtree/internal/capec"
)

// AnalyzePrompt handles the capec-analyze MCP prompt.
// It walks the AI from a pattern id to a reviewed attack-defense tree.
type AnalyzePrompt struct{}

// NewAnalyzePrompt creates an AnalyzePrompt.
func NewAnalyzePrompt() *AnalyzePrompt {
	return &AnalyzePrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *AnalyzePrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("capec-analyze",
		mcp.WithPromptDescription(
			"Analyze a CAPEC attack pattern: look it up, place it in its hierarchy, "+
				"synthesize its attack-defense tree and review the defenses.",
		),
		mcp.WithArgument("id",
			mcp.ArgumentDescription("CAPEC pattern id, e.g. 66 or CAPEC-66"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("mode",
			mcp.ArgumentDescription("Build mode: "+strings.Join(attacktree.Modes(), ", ")+". Default: countermeasures"),
		),
	)
}

// Handle processes the capec-analyze prompt request.
func (p *AnalyzePrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	id := capec.NormalizeID(req.Params.Arguments["id"])
	if id == "" {
		return nil, fmt.Errorf("argument 'id' is required")
	}
	mode := req.Params.Arguments["mode"]
	if mode == "" {
		mode = string(attacktree.ModeCountermeasures)
	}
	if _, err := attacktree.ParseMode(mode); err != nil {
		return nil, err
	}
	ref := capec.FormatID(id)

	return &mcp.GetPromptResult{
		Description: "Attack-defense analysis of " + ref,
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to understand how %[1]s can be carried out and defended against.\n\n"+
						"1. Call `capec_lookup` with id %[2]s and summarize the pattern in two sentences\n"+
						"2. Call `capec_ancestry` with id %[2]s and tell me which broader attacks it specializes\n"+
						"3. Call `capec_attack_tree` with id %[2]s, mode %[3]s and ancestry true, then walk me "+
						"through each objective and its methods\n"+
						"4. For every method, say whether the countermeasures under it actually stop it, "+
						"and name any gap\n"+
						"5. Finish with the three defenses I should put in place first",
					ref, id, mode,
				)),
			},
		},
	}, nil
}
