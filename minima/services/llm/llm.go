package llm

import (
	"context"
	"fmt"
	"sync"

	"minima/minima/config"
	"minima/minima/utils/logging"

	"go.uber.org/zap"
)

type GenerateParams struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Client is one text-generation provider.
type Client interface {
	Name() string
	Generate(ctx context.Context, p GenerateParams) (string, error)
}

// Service multiplexes generation across providers, one active at a time.
type Service struct {
	mu       sync.Mutex
	provider string
	clients  map[string]Client
}

func NewService(cfg config.Config) *Service {
	clients := make(map[string]Client)
	if cfg.OpenAIAPIKey != "" {
		clients["openai"] = NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}
	if cfg.GeminiAPIKey != "" {
		clients["gemini"] = NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	provider := cfg.DefaultProvider
	if _, ok := clients[provider]; !ok {
		for name := range clients {
			provider = name
			break
		}
	}
	return &Service{provider: provider, clients: clients}
}

func (s *Service) Provider() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider
}

func (s *Service) SwitchProvider(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[name]; !ok {
		return fmt.Errorf("unknown provider: %s", name)
	}
	s.provider = name
	logging.AppLogger.Info("switched LLM provider", zap.String("provider", name))
	return nil
}

func (s *Service) client() (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[s.provider]
	if !ok {
		return nil, fmt.Errorf("no LLM provider configured")
	}
	return c, nil
}

// Generate runs the prompt through the active provider and returns the
// response text together with the provider name that produced it.
func (s *Service) Generate(ctx context.Context, p GenerateParams) (string, string, error) {
	defer logging.LogDuration(ctx, "llm_service_generate")()

	if p.Temperature == 0 {
		p.Temperature = 0.7
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = 500
	}
	c, err := s.client()
	if err != nil {
		return "", "", err
	}
	text, err := c.Generate(ctx, p)
	if err != nil {
		logging.ErrorLogger.Error("llm generate failed",
			zap.String("provider", c.Name()), zap.Error(err))
		return "", c.Name(), err
	}
	return text, c.Name(), nil
}
