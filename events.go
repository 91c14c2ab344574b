package goNameAuth

import (
	"fmt"
	"time"

	"github.com/MrEthical07/goNameAuth/authdoc"
)

// EventKind labels an Event.
type EventKind uint8

const (
	EventResolving EventKind = iota + 1
	EventResolved
	EventDocumentFetched
	EventFlowsFiltered
	EventFlowAttempting
	// EventAwaitingUser carries the URI the user should act on, if any.
	EventAwaitingUser
	EventFlowOutcome
	EventWarning
	// EventFinished is always the last event of an attempt.
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventResolving:
		return "resolving"
	case EventResolved:
		return "resolved"
	case EventDocumentFetched:
		return "document_fetched"
	case EventFlowsFiltered:
		return "flows_filtered"
	case EventFlowAttempting:
		return "flow_attempting"
	case EventAwaitingUser:
		return "awaiting_user"
	case EventFlowOutcome:
		return "flow_outcome"
	case EventWarning:
		return "warning"
	case EventFinished:
		return "finished"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event reports attempt progress. Only the fields relevant to Kind are set.
type Event struct {
	Kind      EventKind
	AttemptID string
	Time      time.Time

	Identity   *ResolvedIdentity
	Document   *authdoc.Document
	Candidates []CandidateFlow
	Excluded   []ExcludedFlow
	Flow       *FlowAttempt
	Warning    *Warning

	// Result and Err are set on EventFinished; exactly one is non-nil.
	Result *LoginResult
	Err    error
}
