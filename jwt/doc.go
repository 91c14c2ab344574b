// Package jwt signs and verifies the short-lived state tokens carried through
// deep-link round trips, so a wallet callback can be tied back to the attempt
// that opened the link.
package jwt
