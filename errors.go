package goNameAuth

import (
	"errors"
	"strings"
)

var (
	// ErrResolutionFailed means no resolver produced an address or an authenticator source.
	ErrResolutionFailed = errors.New("name resolution failed")
	// ErrAuthenticatorUnavailable means the authenticator document could not be fetched or parsed.
	ErrAuthenticatorUnavailable = errors.New("authenticator unavailable")
	// ErrTimeout means the authenticator fetch exceeded its deadline.
	ErrTimeout = errors.New("authenticator fetch timed out")
	// ErrNoEligibleFlow means filtering and provider probing left nothing to attempt.
	ErrNoEligibleFlow = errors.New("no eligible auth flow")
	// ErrAllFlowsFailed means at least one flow was attempted and none succeeded.
	ErrAllFlowsFailed = errors.New("all auth flows failed")
	// ErrAddressMismatch is returned only when strict address matching is enabled.
	ErrAddressMismatch = errors.New("address mismatch")
	// ErrCancelled means the attempt was cancelled before reaching a result.
	ErrCancelled = errors.New("login cancelled")
	// ErrLoginRateLimited means the name or client exhausted its attempt budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrEngineNotReady is returned by a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidName means the name is empty or not a valid domain name.
	ErrInvalidName = errors.New("invalid name")
)

// LoginError is returned by Engine.Login and Attempt.Wait. errors.Is matches
// both the Kind sentinel and the underlying cause.
type LoginError struct {
	Kind      error
	AttemptID string
	Name      string
	// Attempts holds the per-flow outcomes when execution ran.
	Attempts []FlowAttempt
	// Excluded holds the flows the filter removed, with their reasons.
	Excluded []ExcludedFlow
	Err      error
}

func (e *LoginError) Error() string {
	var b strings.Builder
	b.WriteString("goNameAuth: login")
	if e.Name != "" {
		b.WriteString(" ")
		b.WriteString(e.Name)
	}
	b.WriteString(": ")
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("failed")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *LoginError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}
