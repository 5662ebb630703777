// Package httpapi provides the minimal HTTP surface the rest of the system
// uses for operability: a synthetic policy-evaluation endpoint for
// policy-authoring feedback loops, a liveness probe, and Prometheus
// exposition. None of it sits on the critical path of handle_message or
// handle_action; it exists purely for operators and the SDK.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quadguard/quadguard/internal/domain/predicate"
	"github.com/quadguard/quadguard/internal/domain/verifier"
)

// EvaluateRequest is the body of POST /v1/evaluate. It runs the verifier
// directly against the caller-supplied valuation, without mutating any
// conversation or sender state, so policy authors can check a candidate
// valuation against the live action or message policy set.
type EvaluateRequest struct {
	// Kind selects which policy set to verify against: "message" or "action".
	Kind string `json:"kind"`
	// Valuation overrides the live predicate store's values for this
	// evaluation only; predicates not named here use their current value.
	Valuation map[string]bool `json:"valuation"`
}

// EvaluateResponse mirrors verifier.Result.
type EvaluateResponse struct {
	Decision bool     `json:"decision"`
	Violated []string `json:"violated,omitempty"`
	Missing  []string `json:"missing,omitempty"`
}

// Store is the subset of predicate.Store the evaluate handler needs.
type Store interface {
	ActionPolicy() predicate.PolicySet
	MessagePolicy() (predicate.PolicySet, bool)
	Valuation() map[string]bool
}

// Handler serves /v1/evaluate, /healthz, and /metrics.
type Handler struct {
	store   Store
	metrics *Metrics
	logger  *slog.Logger
	mux     *http.ServeMux
}

// New builds a Handler backed by store. metrics may be nil to disable the
// /metrics endpoint's counters (the endpoint itself always serves whatever
// is registered on the default Prometheus registry).
func New(store Store, metrics *Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{store: store, metrics: metrics, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /v1/evaluate", h.handleEvaluate)
	h.mux.HandleFunc("GET /healthz", h.handleHealthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var policies predicate.PolicySet
	switch req.Kind {
	case "action":
		policies = h.store.ActionPolicy()
	case "message":
		set, ok := h.store.MessagePolicy()
		if !ok {
			h.respondJSON(w, http.StatusOK, EvaluateResponse{Decision: true})
			return
		}
		policies = set
	default:
		h.respondError(w, http.StatusBadRequest, "kind must be 'message' or 'action'")
		return
	}

	valuation := h.store.Valuation()
	for name, v := range req.Valuation {
		valuation[name] = v
	}

	result := verifier.Verify(policies, valuation)
	if h.metrics != nil {
		outcome := "allow"
		if !result.Decision {
			outcome = "deny"
		}
		h.metrics.EvaluateRequests.WithLabelValues(req.Kind, outcome).Inc()
	}

	h.respondJSON(w, http.StatusOK, EvaluateResponse{
		Decision: result.Decision,
		Violated: result.Violated,
		Missing:  result.Missing,
	})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("httpapi: failed to encode JSON response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
