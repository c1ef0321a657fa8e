// Package logging defines the structured-logging interface the registry
// components log through. The server wires an slog backend; tests use the
// nop implementation. Other backends (zap, zerolog) can slot in without
// touching callers.
package logging

import "context"

// Logger is a leveled, context-aware logger. Variadic args are alternating
// key-value pairs:
//
//	log.Info(ctx, "document created", "id", doc.ID, "owner", owner)
type Logger interface {
	// Info records normal operation milestones.
	Info(ctx context.Context, msg string, args ...any)

	// Warn records degraded but recoverable conditions, like a failed
	// event fan-out.
	Warn(ctx context.Context, msg string, args ...any)

	// Error records failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger carrying the given key-value pairs on
	// every record.
	With(args ...any) Logger
}
