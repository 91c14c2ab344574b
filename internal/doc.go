// Package internal contains helpers private to goNameAuth: pairing key and
// nonce generation, and the digest used to bound Redis key length.
//
// # Sub-packages
//
//   - audit: async audit event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function filter, executor and login orchestration
//   - rate: Redis-backed attempt throttling
//
// # What this package must NOT do
//
//   - Export types that appear in the public goNameAuth API.
//   - Be imported by any package outside the goNameAuth module.
package internal
