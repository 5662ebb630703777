// Package intercept classifies host runtime events into the guard's
// message/action vocabulary and drives a GuardEngine over them, tripping
// external termination when the engine denies something or a configured
// refusal classifier detects a pattern of safety refusals.
package intercept

import (
	"context"
	"log/slog"
	"strings"
)

// Kind identifies what an Event represents.
type Kind int

const (
	KindUnknown Kind = iota
	// KindText is a plain text turn exchanged between agents.
	KindText
	// KindToolSummary is a tool-call result summarized back into the
	// conversation; always checked with full predicate scope since a
	// summary rarely carries wording a narrow similarity match would catch.
	KindToolSummary
	// KindToolExecution is a raw tool execution event, ignored (the
	// corresponding KindToolRequest already gated the call before it ran).
	KindToolExecution
	// KindToolRequest carries one or more pending tool calls awaiting the
	// action policy.
	KindToolRequest
	// KindReset is a conversation-reset signal, ignored.
	KindReset
)

// FunctionCall is one pending tool invocation carried by a KindToolRequest
// event.
type FunctionCall struct {
	Name      string
	Arguments string
}

// Event is a single host runtime occurrence submitted for interception.
type Event struct {
	Kind Kind
	// Content is the event's text payload. For non-text payloads (e.g. a
	// tool-call summary) the caller stringifies it before constructing the
	// Event; intercept itself never inspects structured content.
	Content string
	// Source is the originating agent identity. Messages from "user" are
	// never run through the refusal classifier (the user cannot refuse
	// itself).
	Source    string
	Sender    string
	Recipient string
	Calls     []FunctionCall
}

// GuardEngine is the subset of the mediator the handler drives.
type GuardEngine interface {
	HandleMessage(ctx context.Context, message, sender, recipient string) (bool, string, error)
	HandleMessageFullScope(ctx context.Context, message, sender, recipient string) (bool, string, error)
	HandleAction(ctx context.Context, toolName, toolDescription, arguments, sender string) (bool, string, error)
}

// RefusalClassifier decides whether text is an explicit safety/policy
// refusal, as opposed to a capability limit or a message that proceeds
// with the task.
type RefusalClassifier interface {
	IsRefusal(ctx context.Context, text string) (bool, error)
}

// Option configures a Handler.
type Option func(*Handler)

// WithRefusalClassifier enables the consecutive-refusal termination path.
func WithRefusalClassifier(c RefusalClassifier) Option {
	return func(h *Handler) { h.refusal = c }
}

// WithRefusalThreshold overrides the default consecutive-refusal count (2)
// required before termination trips.
func WithRefusalThreshold(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.refusalThreshold = n
		}
	}
}

// WithGPTShortcut enables the literal "I'm sorry" shortcut some GPT-family
// models trigger on when they refuse, bypassing the classifier entirely.
func WithGPTShortcut(isGPT bool) Option {
	return func(h *Handler) { h.isGPT = isGPT }
}

// WithLogger attaches a logger; nil (the default) disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// Handler intercepts host events and decides whether to allow each to
// proceed, tripping terminate when one is blocked.
type Handler struct {
	guard   GuardEngine
	refusal RefusalClassifier

	refusalThreshold int
	refusalCount     int
	isGPT            bool

	terminate func()
	logger    *slog.Logger
}

// factSheetMarker excludes the guard's own initial-fact-sheet message from
// refusal classification: it is never a refusal, and running it through the
// classifier would burn an oracle call on every conversation for nothing.
const factSheetMarker = "Here is an initial fact sheet to consider"

// New builds a Handler over guard, calling terminate each time an event is
// blocked or the refusal threshold trips.
func New(guard GuardEngine, terminate func(), opts ...Option) *Handler {
	h := &Handler{guard: guard, terminate: terminate, refusalThreshold: 2}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle classifies and dispatches ev, returning whether it was allowed to
// proceed. A false return with a nil error means terminate has been
// called. HandleAction/HandleMessage errors are returned directly, without
// calling terminate, rather than treated as a denial, so the caller can
// distinguish "blocked" from "oracle/transport failure".
func (h *Handler) Handle(ctx context.Context, ev Event) (bool, error) {
	switch ev.Kind {
	case KindToolExecution, KindReset, KindUnknown:
		return true, nil
	}

	if ev.Kind == KindText && ev.Source != "user" {
		if h.isGPT && strings.Contains(ev.Content, "I'm sorry") {
			h.trip()
			return false, nil
		}
		if allowed := h.checkRefusal(ctx, ev.Content); !allowed {
			return false, nil
		}
	}

	switch ev.Kind {
	case KindToolSummary:
		return h.checkMessage(ctx, ev, true)
	case KindText:
		return h.checkMessage(ctx, ev, false)
	case KindToolRequest:
		return h.checkActions(ctx, ev)
	}
	return true, nil
}

// checkRefusal runs the refusal classifier (if configured) and returns
// false (with termination tripped) once refusalThreshold consecutive
// refusals have been seen. A classifier error fails open: the turn is not
// counted as a refusal.
func (h *Handler) checkRefusal(ctx context.Context, content string) bool {
	if h.refusal == nil || strings.Contains(content, factSheetMarker) {
		return true
	}
	refused, err := h.refusal.IsRefusal(ctx, content)
	if err != nil {
		h.log("refusal classifier failed, not counted", "error", err)
		return true
	}
	if !refused {
		h.refusalCount = 0
		return true
	}
	h.log("refusal message detected", "content", content)
	h.refusalCount++
	if h.refusalCount >= h.refusalThreshold {
		h.trip()
		return false
	}
	return true
}

func (h *Handler) checkMessage(ctx context.Context, ev Event, fullScope bool) (bool, error) {
	var allowed bool
	var reason string
	var err error
	if fullScope {
		allowed, reason, err = h.guard.HandleMessageFullScope(ctx, ev.Content, ev.Sender, ev.Recipient)
	} else {
		allowed, reason, err = h.guard.HandleMessage(ctx, ev.Content, ev.Sender, ev.Recipient)
	}
	if err != nil {
		return false, err
	}
	if !allowed {
		h.log("message blocked", "reason", reason)
		h.trip()
		return false, nil
	}
	return true, nil
}

func (h *Handler) checkActions(ctx context.Context, ev Event) (bool, error) {
	for _, call := range ev.Calls {
		allowed, reason, err := h.guard.HandleAction(ctx, call.Name, "", call.Arguments, ev.Sender)
		if err != nil {
			return false, err
		}
		if !allowed || call.Name == "refuse_termination" {
			h.log("action blocked", "tool", call.Name, "reason", reason)
			h.trip()
			return false, nil
		}
	}
	return true, nil
}

func (h *Handler) trip() {
	if h.terminate != nil {
		h.terminate()
	}
}

func (h *Handler) log(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Warn(msg, args...)
	}
}
