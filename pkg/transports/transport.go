package transports

import "context"

// Transport is a network surface over the engine. Implementations own their
// listener lifecycle.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// Drainer stops accepting new work and waits for in-flight requests, bounded
// by ctx.
type Drainer interface {
	Drain(ctx context.Context) error
}

// ReadyReporter allows transports to expose readiness metadata (e.g., listen address).
// Implementations are optional and used for informational logging only.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
