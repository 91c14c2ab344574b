// Package rate provides Redis-backed fixed-window counters that throttle
// login attempts per name and, optionally, per client IP.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key layout:
//   - <prefix>:ln:<digest>  login per-name
//   - <prefix>:li:<digest>  login per-IP
//
// Names and IPs are hashed with internal.KeyDigest so keys have a bounded length.
//
// # What this package must NOT do
//
//   - Decide which outcomes count as failures (the Engine does).
//   - Be imported outside the goNameAuth module.
package rate
