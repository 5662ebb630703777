package llmclient

import "testing"

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New("bogus", "", "", "SOME_KEY_ENV", 0); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewOpenAIReturnsProvider(t *testing.T) {
	p, err := New("openai", "gpt-4o", "text-embedding-3-small", "SOME_KEY_ENV", 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := p.(*OpenAIProvider); !ok {
		t.Fatalf("expected *OpenAIProvider, got %T", p)
	}
}

func TestNewAnthropicReturnsProvider(t *testing.T) {
	p, err := New("anthropic", "claude-sonnet-4-5", "", "SOME_KEY_ENV", 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := p.(*AnthropicProvider); !ok {
		t.Fatalf("expected *AnthropicProvider, got %T", p)
	}
}

func TestNewEmbeddingProviderRejectsAnthropic(t *testing.T) {
	if _, err := NewEmbeddingProvider("anthropic", "", "", "SOME_KEY_ENV", 0); err == nil {
		t.Fatal("expected error: anthropic has no embedding support")
	}
}
