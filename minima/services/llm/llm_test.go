package llm

import (
	"context"
	"testing"

	"minima/minima/config"
)

type stubClient struct {
	name   string
	lastP  GenerateParams
	result string
}

func (c *stubClient) Name() string { return c.name }

func (c *stubClient) Generate(ctx context.Context, p GenerateParams) (string, error) {
	c.lastP = p
	return c.result, nil
}

func stubService(clients ...*stubClient) *Service {
	s := NewService(config.Config{})
	for _, c := range clients {
		s.clients[c.name] = c
	}
	s.provider = clients[0].name
	return s
}

func TestSwitchProvider(t *testing.T) {
	s := stubService(&stubClient{name: "openai"}, &stubClient{name: "gemini"})

	if err := s.SwitchProvider("gemini"); err != nil {
		t.Fatalf("switch to gemini failed: %v", err)
	}
	if s.Provider() != "gemini" {
		t.Errorf("expected provider gemini, got %s", s.Provider())
	}

	if err := s.SwitchProvider("claude"); err == nil {
		t.Error("expected error switching to unknown provider")
	}
	if s.Provider() != "gemini" {
		t.Errorf("failed switch must not change provider, got %s", s.Provider())
	}
}

func TestGenerateAppliesDefaults(t *testing.T) {
	c := &stubClient{name: "openai", result: "answer"}
	s := stubService(c)

	text, provider, err := s.Generate(context.Background(), GenerateParams{Prompt: "q"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if text != "answer" || provider != "openai" {
		t.Errorf("unexpected result %q from %q", text, provider)
	}
	if c.lastP.Temperature != 0.7 {
		t.Errorf("expected default temperature 0.7, got %v", c.lastP.Temperature)
	}
	if c.lastP.MaxTokens != 500 {
		t.Errorf("expected default max tokens 500, got %d", c.lastP.MaxTokens)
	}
}

func TestGenerateWithoutProviders(t *testing.T) {
	s := NewService(config.Config{})
	if _, _, err := s.Generate(context.Background(), GenerateParams{Prompt: "q"}); err == nil {
		t.Error("expected error with no providers configured")
	}
}
