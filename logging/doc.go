// Package logging provides a minimal logging interface and adapters for the
// host kernel.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the kernel and its subsystems use for observability. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - Audit helpers emitting security relevant events on a dedicated channel
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	kernel, err := meshkernel.New(func(o *meshkernel.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
