// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// # Port Interfaces
//
//   - [BatchSender]: Sends one chunk of envelopes to the ingestion endpoint
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//   - [EventSource]: Produces ingestion events for the CLI (files, pipes)
//   - [MetricsSource]: Exposes batcher counters to metrics exporters
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them.
package ports
