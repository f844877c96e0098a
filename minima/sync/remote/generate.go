package remote

import (
	"context"
)

type GenerateRequest struct {
	Prompt      string   `json:"prompt"`
	Temperature float64  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	StudyMode   bool     `json:"study_mode,omitempty"`
	ActiveTools []string `json:"active_tools,omitempty"`
}

type GenerateResult struct {
	Response string `json:"response"`
	Provider string `json:"provider"`
}

// Generator is the text-generation capability consumed by message dispatch.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

func (c *Client) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	var out GenerateResult
	if err := c.do(ctx, "POST", "/api/generate", req, &out); err != nil {
		return GenerateResult{}, err
	}
	return out, nil
}
