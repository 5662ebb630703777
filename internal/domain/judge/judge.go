// Package judge implements the two-tier LLM adjudication chain: a primary
// judge backed by one model, escalating to a chief judge backed by a second,
// typically more capable model whenever the primary returns unsafe.
// Escalation is one-way: a safe primary verdict is final; an unsafe primary
// verdict escalates, and the chief judge's verdict is always final.
package judge

import (
	"context"
	"fmt"

	"github.com/quadguard/quadguard/internal/adapter/outbound/llmclient"
)

const defaultRetries = 3

// ToolCall describes the pending action under adjudication.
type ToolCall struct {
	Name        string
	Description string
	Arguments   string
}

// Verdict is the outcome of adjudicating an action or message.
type Verdict struct {
	Decision bool
	Reason   string
	// Escalated reports whether the chief judge's verdict is what Decision/
	// Reason reflect (true) or the primary judge's (false).
	Escalated bool
}

// Chain runs the primary-then-chief-judge adjudication pipeline.
type Chain struct {
	primary Judge
	chief   Judge
	retries int
}

// Judge adjudicates a single prompt pair via an oracle.
type Judge struct {
	provider llmclient.Provider
}

// NewJudge wraps provider as a single-tier judge.
func NewJudge(provider llmclient.Provider) Judge {
	return Judge{provider: provider}
}

// NewChain builds a two-tier adjudication chain: primary judges first,
// chief judges only when primary returns unsafe.
func NewChain(primary, chief Judge) *Chain {
	return &Chain{primary: primary, chief: chief, retries: defaultRetries}
}

type verdictJSON struct {
	Decision bool   `json:"decision"`
	Reason   string `json:"reason"`
}

// JudgeAction adjudicates a pending tool call.
func (c *Chain) JudgeAction(ctx context.Context, observation string, tool ToolCall, policies string, threatLevel int) (Verdict, error) {
	messages := []llmclient.Message{
		{Role: llmclient.RoleSystem, Content: actionSystemPrompt},
		{Role: llmclient.RoleUser, Content: fmt.Sprintf(actionUserTemplate, observation, threatLabel(threatLevel), policies, tool.Name, tool.Description, tool.Arguments)},
	}
	return c.adjudicate(ctx, messages)
}

// JudgeMessage adjudicates a pending outbound message.
func (c *Chain) JudgeMessage(ctx context.Context, observation string, policies string) (Verdict, error) {
	messages := []llmclient.Message{
		{Role: llmclient.RoleSystem, Content: messageSystemPrompt},
		{Role: llmclient.RoleUser, Content: fmt.Sprintf(messageUserTemplate, observation, policies)},
	}
	return c.adjudicate(ctx, messages)
}

// adjudicate runs the primary judge, escalating to the chief judge exactly
// once if the primary returns unsafe. An oracle failure at the primary tier
// fails open (safe); a failure at the chief tier after escalation also fails
// open (safe), since the chief judge is the last line and cannot itself
// escalate further.
func (c *Chain) adjudicate(ctx context.Context, messages []llmclient.Message) (Verdict, error) {
	var primary verdictJSON
	if err := llmclient.CompleteJSON(ctx, c.primary.provider, messages, &primary, c.retries); err != nil {
		return Verdict{Decision: true, Reason: "judge oracle unavailable, failing open"}, nil
	}
	if primary.Decision {
		return Verdict{Decision: true, Reason: primary.Reason}, nil
	}

	var chief verdictJSON
	if err := llmclient.CompleteJSON(ctx, c.chief.provider, messages, &chief, c.retries); err != nil {
		return Verdict{Decision: true, Reason: "chief judge oracle unavailable, failing open", Escalated: true}, nil
	}
	return Verdict{Decision: chief.Decision, Reason: chief.Reason, Escalated: true}, nil
}
