package controllers

import (
	"context"
	"errors"

	"minima/minima/services/llm"
	"minima/minima/utils/logging"
	"minima/minima/utils/types"

	"go.uber.org/zap"
)

var ErrEmptyPrompt = errors.New("prompt is required")

type GenerateController struct {
	llm *llm.Service
}

func NewGenerateController(svc *llm.Service) *GenerateController {
	return &GenerateController{llm: svc}
}

func (c *GenerateController) Generate(ctx context.Context, req types.GenerateRequest) (*types.GenerateResponse, error) {
	if req.Prompt == "" {
		logging.AppLogger.Warn("empty prompt received")
		return nil, ErrEmptyPrompt
	}
	if req.Provider != "" {
		if err := c.llm.SwitchProvider(req.Provider); err != nil {
			return nil, err
		}
	}
	text, provider, err := c.llm.Generate(ctx, llm.GenerateParams{
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	logging.AppLogger.Info("generated response",
		zap.String("provider", provider), zap.Int("length", len(text)))
	return &types.GenerateResponse{Response: text, Provider: provider}, nil
}

func (c *GenerateController) Provider() string {
	return c.llm.Provider()
}

func (c *GenerateController) SwitchProvider(name string) error {
	return c.llm.SwitchProvider(name)
}
