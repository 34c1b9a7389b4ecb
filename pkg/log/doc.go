// Package log provides the logging abstraction used by traceship components.
//
// The engine never talks to a concrete logging library. It logs through the
// [Logger] interface with typed [Field] helpers, and embedders pick the
// implementation:
//
//	logger := log.NewZerologLogger(zerolog.New(os.Stderr))
//
// or, for tests and silent embedding:
//
//	logger := log.NewNoopLogger()
//
// Implement [Logger] to route engine logs into an existing logging stack.
package log
