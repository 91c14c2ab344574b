// Package audit implements async dispatching of login attempt events.
//
// # Components
//
//   - [Sink]: event consumers (channel, JSON lines, slog, no-op).
//   - [Dispatcher]: buffered async relay that either drops or blocks when full.
//   - [Event]: one login attempt record keyed by attempt ID and name.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import goNameAuth or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
