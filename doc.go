// Package goNameAuth resolves a human-readable name to the address and the
// ordered authentication flows its owner published, then drives those flows
// one at a time until a wallet session is established or every flow is spent.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goNameAuth is the public surface. It exposes [Engine], [Builder], [Config], [Attempt] and
// value types (LoginResult, FlowAttempt, MetricsSnapshot). Orchestration, filtering and the
// flow state machine live in internal/flows; resolvers, the document fetcher and connection
// mechanisms are pluggable collaborators in their own packages.
//
// # What this package must NOT do
//
//   - Sign, verify or interpret wallet payloads. Sessions are opaque apart from address and chain.
//   - Cache resolution results between attempts. Caching is an opt-in resolver decorator.
//   - Run two flows of the same attempt at the same time.
package goNameAuth
