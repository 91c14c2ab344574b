// Package resolver maps human-readable names to addresses and authenticator
// sources.
//
// Every naming system implements the same two-method [Resolver] capability.
// [Composite] layers several of them in priority order; [Cached] is an opt-in
// decorator for callers that want memoisation, since the login engine itself
// never caches between attempts.
//
// Implementations live in subpackages: ens (Ethereum Name Service over JSON-RPC),
// dnstxt (DNS TXT records), and directory (a Redis-backed domain directory).
package resolver
