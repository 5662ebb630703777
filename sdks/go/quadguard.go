// Package quadguard provides a Go SDK for QuadGuard's policy evaluation API.
//
// QuadGuard mediates messages and tool calls between LLM agents against a
// propositional policy. This SDK lets a policy author or operator check a
// candidate valuation against the live message or action policy set without
// going through the host runtime stream. It uses only the Go standard
// library (net/http) with zero external dependencies.
//
// Quick start:
//
//	// Set QUADGUARD_SERVER_ADDR, then:
//	client := quadguard.NewClient()
//
//	resp, err := client.Evaluate(ctx, quadguard.EvaluateRequest{
//	    Kind:      quadguard.KindAction,
//	    Valuation: map[string]bool{"destructive_operation": true},
//	})
//	if err != nil {
//	    var denied *quadguard.PolicyDeniedError
//	    if errors.As(err, &denied) {
//	        fmt.Printf("denied: %s\n", denied.Violated)
//	    }
//	}
package quadguard

// Kind selects which policy set an EvaluateRequest checks against.
type Kind string

const (
	// KindMessage evaluates against the message policy set.
	KindMessage Kind = "message"
	// KindAction evaluates against the action policy set.
	KindAction Kind = "action"
)

// EvaluateRequest is a candidate valuation to check against a policy set.
// It mirrors httpapi.EvaluateRequest on the server side.
type EvaluateRequest struct {
	// Kind selects "message" or "action".
	Kind Kind `json:"kind"`

	// Valuation overrides the live predicate store's values for this
	// evaluation only; predicates not named here use their current value.
	Valuation map[string]bool `json:"valuation"`
}

// EvaluateResponse is the structured result of a policy evaluation. It
// mirrors verifier.Result/httpapi.EvaluateResponse on the server side.
type EvaluateResponse struct {
	// Decision is true when the valuation satisfies the policy set.
	Decision bool `json:"decision"`

	// Violated lists the rule names that failed, if Decision is false.
	Violated []string `json:"violated,omitempty"`

	// Missing lists predicate names the valuation did not set and that
	// have no configured default, if any.
	Missing []string `json:"missing,omitempty"`
}
