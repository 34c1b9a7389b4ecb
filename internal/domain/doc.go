// Package domain contains the core domain entities and value objects for traceship.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (HTTP, queues, logging) and
// contains only data and the rules attached to it.
//
// # Entities
//
//   - [Event]: Anything that can be ingested; it only has to expose its id
//   - [IngestionEvent]: The stock event shape (id, timestamp, type, body)
//   - [Envelope]: An event plus bookkeeping (id, serialized size, retry count)
//   - [IngestionResult]: Per-flush outcome (success ids and per-event failures)
//
// # Errors
//
// Failures are reported as [*IngestError] (classified by [ErrorKind]),
// [*BatchSizeError] and [*PartialFailureError]. Use errors.As to inspect them
// and errors.Is for the sentinel errors.
package domain
