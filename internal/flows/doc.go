// Package flows contains the pure-function core of a login attempt:
// FilterFlows, RunExecutor, ValidateSession and the RunLogin orchestrator.
//
// Each function accepts a typed dependency struct and returns results without
// side effects beyond those dependencies. Resolution, document fetching and
// wallet connectors are all injected, so every failure path can be driven
// from tests with plain closures.
//
// # Architecture boundaries
//
// RunLogin reports progress through LoginEvent callbacks and returns a
// LoginResult with a failure kind. It does NOT own audit, metrics, logging or
// throttling; the Engine layers those on top of the result.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goNameAuth (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency closures.
package flows
