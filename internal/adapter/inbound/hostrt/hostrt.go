// Package hostrt is the inbound adapter that connects a host agent runtime
// to the interception handler over a newline-delimited JSON stream: one
// host event per line in, one decision per line out. It implements
// inbound.HostRuntime.
package hostrt

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/quadguard/quadguard/internal/domain/intercept"
	"github.com/quadguard/quadguard/internal/port/inbound"
)

// wireEvent is the JSON shape of one host event on the stream. kind must be
// one of "text", "tool_summary", "tool_execution", "tool_request", "reset".
type wireEvent struct {
	Kind      string     `json:"kind"`
	Content   string     `json:"content"`
	Source    string     `json:"source"`
	Sender    string     `json:"sender"`
	Recipient string     `json:"recipient"`
	Calls     []wireCall `json:"calls,omitempty"`
}

type wireCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// wireDecision is the JSON shape of one decision written back per event.
type wireDecision struct {
	Allowed bool   `json:"allowed"`
	Error   string `json:"error,omitempty"`
}

var kindTable = map[string]intercept.Kind{
	"text":           intercept.KindText,
	"tool_summary":   intercept.KindToolSummary,
	"tool_execution": intercept.KindToolExecution,
	"tool_request":   intercept.KindToolRequest,
	"reset":          intercept.KindReset,
}

// Transport is the stream-based host-runtime adapter.
type Transport struct {
	handler *intercept.Handler
	in      io.Reader
	out     io.Writer
	logger  *slog.Logger
}

// New builds a Transport reading host events from in and writing decisions
// to out, dispatching each through handler.
func New(handler *intercept.Handler, in io.Reader, out io.Writer, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{handler: handler, in: in, out: out, logger: logger}
}

// Start reads newline-delimited host events from in until EOF or ctx is
// cancelled, dispatching each through the interception handler and writing
// one decision line per event. A malformed line is reported as a decision
// error and processing continues; a write failure aborts the stream.
func (t *Transport) Start(ctx context.Context) error {
	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		decision := t.process(ctx, line)
		if err := t.writeDecision(decision); err != nil {
			return fmt.Errorf("hostrt: write decision: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("hostrt: read stream: %w", err)
	}
	return nil
}

// Close is a no-op: Transport owns no resources beyond its io.Reader/Writer,
// which the caller owns.
func (t *Transport) Close() error { return nil }

func (t *Transport) process(ctx context.Context, line []byte) wireDecision {
	requestID := uuid.New().String()
	logger := t.logger.With("request_id", requestID)

	var we wireEvent
	if err := json.Unmarshal(line, &we); err != nil {
		return wireDecision{Allowed: true, Error: fmt.Sprintf("malformed host event: %v", err)}
	}

	kind, ok := kindTable[we.Kind]
	if !ok {
		logger.Warn("unknown host event kind", "kind", we.Kind)
		kind = intercept.KindUnknown
	}

	calls := make([]intercept.FunctionCall, len(we.Calls))
	for i, c := range we.Calls {
		calls[i] = intercept.FunctionCall{Name: c.Name, Arguments: c.Arguments}
	}

	ev := intercept.Event{
		Kind:      kind,
		Content:   we.Content,
		Source:    we.Source,
		Sender:    we.Sender,
		Recipient: we.Recipient,
		Calls:     calls,
	}

	allowed, err := t.handler.Handle(ctx, ev)
	if err != nil {
		logger.Error("interception handler failed", "error", err)
		return wireDecision{Allowed: false, Error: err.Error()}
	}
	logger.Debug("host event processed", "kind", we.Kind, "allowed", allowed)
	return wireDecision{Allowed: allowed}
}

func (t *Transport) writeDecision(d wireDecision) error {
	enc := json.NewEncoder(t.out)
	return enc.Encode(d)
}

var _ inbound.HostRuntime = (*Transport)(nil)
