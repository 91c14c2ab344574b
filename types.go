package goNameAuth

import (
	"time"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
)

// LoginRequest is the input to Engine.Login and Engine.Start.
type LoginRequest struct {
	Name string
	// Capabilities describes the caller's runtime. It is copied before filtering,
	// so later mutations by the caller are not observed.
	Capabilities connect.CapabilityContext
	// Observer, when set, receives every Event synchronously on the attempt's
	// goroutine. It must not block for long.
	Observer func(Event)
}

// ResolvedIdentity is what resolution produced for one attempt.
type ResolvedIdentity struct {
	Name    string
	Address string
	Source  authdoc.Source
}

// FlowOutcome is what happened to one candidate flow.
type FlowOutcome uint8

const (
	OutcomeSkipped FlowOutcome = iota + 1
	OutcomeAwaitingUser
	OutcomeSucceeded
	OutcomeFailed
)

func (o FlowOutcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeAwaitingUser:
		return "awaiting_user"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FlowAttempt records one candidate's outcome. Index is the flow's position in
// the authenticator document.
type FlowAttempt struct {
	Index   int
	Spec    authdoc.FlowSpec
	Outcome FlowOutcome
	// Reason is a stable label such as "provider_not_found" or "rejected".
	Reason  string
	URI     string
	Err     error
	Session *connect.Session
}

// ExcludedFlow is a document flow the filter removed before execution.
type ExcludedFlow struct {
	Index  int
	Spec   authdoc.FlowSpec
	Reason string
}

// Warning codes.
const (
	WarningDocumentAddressMismatch = "document_address_mismatch"
	WarningSessionAddressMismatch  = "session_address_mismatch"
	WarningSessionAddressMissing   = "session_address_missing"
)

// Warning is a non-fatal finding, such as an address mismatch outside strict mode.
type Warning struct {
	Code    string
	Message string
}

// LoginResult is a successful login.
type LoginResult struct {
	AttemptID string
	Identity  ResolvedIdentity
	Document  *authdoc.Document
	Session   connect.Session
	// Flow is the winning attempt.
	Flow     FlowAttempt
	Attempts []FlowAttempt
	Excluded []ExcludedFlow
	Warnings []Warning
	Duration time.Duration
}

// CandidateFlow is a document flow that survived filtering.
type CandidateFlow struct {
	Index int
	Spec  authdoc.FlowSpec
}

// LoginPlan is what Engine.Plan reports: resolution, the fetched document and
// the flows that would be attempted for the given capabilities.
type LoginPlan struct {
	Identity   ResolvedIdentity
	Document   *authdoc.Document
	Candidates []CandidateFlow
	Excluded   []ExcludedFlow
	Warnings   []Warning
}
