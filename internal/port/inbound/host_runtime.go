package inbound

import "context"

// HostRuntime is the inbound port for the host event interception adapter.
// Inbound adapters (hostrt, and any future in-process embedding) call this
// interface to begin and end processing host runtime events.
type HostRuntime interface {
	// Start begins consuming host events and dispatching them through the
	// interception handler. Blocks until context is cancelled or an error
	// occurs. Returns nil on graceful shutdown, error on failure.
	Start(ctx context.Context) error

	// Close gracefully shuts down the runtime and cleans up resources.
	Close() error
}
