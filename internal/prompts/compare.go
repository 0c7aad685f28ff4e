package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/adtree/internal/capec"
)

// CompareRegistersPrompt handles the capec-compare-registers MCP prompt.
// It has the AI score one tree in every audience register.
type CompareRegistersPrompt struct{}

// NewCompareRegistersPrompt creates a CompareRegistersPrompt.
func NewCompareRegistersPrompt() *CompareRegistersPrompt {
	return &CompareRegistersPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *CompareRegistersPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("capec-compare-registers",
		mcp.WithPromptDescription(
			"Compare how complex one attack tree reads for non-technical, developer "+
				"and expert audiences.",
		),
		mcp.WithArgument("id",
			mcp.ArgumentDescription("CAPEC pattern id, e.g. 66 or CAPEC-66"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the capec-compare-registers prompt request.
func (p *CompareRegistersPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	id := capec.NormalizeID(req.Params.Arguments["id"])
	if id == "" {
		return nil, fmt.Errorf("argument 'id' is required")
	}

	return &mcp.GetPromptResult{
		Description: "Register comparison for " + capec.FormatID(id),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Call `capec_complexity` three times with id %s and mode countermeasures, "+
						"once per register: nontechnical, developer, expert.\n\n"+
						"Then:\n"+
						"1. Show the three results side by side in one table\n"+
						"2. Tell me which register has the highest language score and why\n"+
						"3. Point out any register whose node count differs from the others",
					id,
				)),
			},
		},
	}, nil
}
