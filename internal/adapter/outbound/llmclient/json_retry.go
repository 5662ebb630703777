package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

var fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ExtractJSON parses text as JSON, first stripping a fenced ```json ... ```
// code block if one is present. Models routinely wrap structured replies in
// markdown fences despite being asked not to.
func ExtractJSON(text string, v any) error {
	if m := fencedJSONPattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("invalid JSON in model reply: %w", err)
	}
	return nil
}

// CompleteJSON calls provider.Complete and decodes the reply into v,
// retrying up to retries times with a 1-second pause between attempts when
// the reply is not valid JSON. It returns the last decode error if every
// attempt fails; callers on the decision path must treat that as a fail-open
// condition (oracle unavailable), never as a hard failure.
func CompleteJSON(ctx context.Context, provider Provider, messages []Message, v any, retries int) error {
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		resp, err := provider.Complete(ctx, messages)
		if err != nil {
			lastErr = err
		} else if err := ExtractJSON(resp.Content, v); err != nil {
			lastErr = err
		} else {
			return nil
		}

		if attempt < retries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
	return fmt.Errorf("failed to extract JSON after %d attempts: %w", retries, lastErr)
}
