package judge

import (
	"context"
	"errors"
	"testing"

	"github.com/quadguard/quadguard/internal/adapter/outbound/llmclient"
)

type fakeProvider struct {
	content string
	err     error
}

func (f *fakeProvider) Complete(ctx context.Context, messages []llmclient.Message) (*llmclient.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llmclient.Response{Content: f.content}, nil
}

func TestPrimarySafeNeverEscalates(t *testing.T) {
	primary := NewJudge(&fakeProvider{content: `{"decision": true, "reason": "fine"}`})
	chief := NewJudge(&fakeProvider{err: errors.New("must not be called")})
	chain := NewChain(primary, chief)
	v, err := chain.JudgeMessage(context.Background(), "obs", "policies")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Decision || v.Escalated {
		t.Errorf("expected safe non-escalated verdict, got %+v", v)
	}
}

func TestPrimaryUnsafeEscalatesAndChiefIsFinal(t *testing.T) {
	primary := NewJudge(&fakeProvider{content: `{"decision": false, "reason": "looks bad"}`})
	chief := NewJudge(&fakeProvider{content: `{"decision": true, "reason": "actually fine"}`})
	chain := NewChain(primary, chief)
	v, err := chain.JudgeAction(context.Background(), "obs", ToolCall{Name: "t"}, "policies", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Decision || !v.Escalated || v.Reason != "actually fine" {
		t.Errorf("expected chief verdict to be final, got %+v", v)
	}
}

func TestPrimaryOracleFailsOpen(t *testing.T) {
	primary := NewJudge(&fakeProvider{err: errors.New("down")})
	chief := NewJudge(&fakeProvider{err: errors.New("must not be called")})
	chain := &Chain{primary: primary, chief: chief, retries: 1}
	v, err := chain.JudgeMessage(context.Background(), "obs", "policies")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Decision {
		t.Errorf("expected fail-open safe verdict, got %+v", v)
	}
}

func TestChiefOracleFailsOpen(t *testing.T) {
	primary := NewJudge(&fakeProvider{content: `{"decision": false, "reason": "bad"}`})
	chief := NewJudge(&fakeProvider{err: errors.New("down")})
	chain := &Chain{primary: primary, chief: chief, retries: 1}
	v, err := chain.JudgeAction(context.Background(), "obs", ToolCall{}, "policies", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Decision || !v.Escalated {
		t.Errorf("expected escalated fail-open safe verdict, got %+v", v)
	}
}
