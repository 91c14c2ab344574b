package goNameAuth

import (
	"github.com/MrEthical07/goNameAuth/internal/flows"
)

// translateEvent maps orchestrator progress to the public Event stream.
// Terminal executor states are not forwarded; EventFinished covers them.
func translateEvent(name string, ev flows.LoginEvent) (Event, bool) {
	if ev.Warning != nil {
		w := Warning{Code: ev.Warning.Code, Message: ev.Warning.Message}
		return Event{Kind: EventWarning, Warning: &w}, true
	}

	switch ev.Stage {
	case flows.StageResolving:
		return Event{Kind: EventResolving}, true
	case flows.StageResolved:
		if ev.Identity == nil {
			return Event{}, false
		}
		id := convertIdentity(name, *ev.Identity)
		return Event{Kind: EventResolved, Identity: &id}, true
	case flows.StageFetched:
		return Event{Kind: EventDocumentFetched, Document: ev.Document}, true
	case flows.StageFiltered:
		return Event{
			Kind:       EventFlowsFiltered,
			Candidates: convertCandidates(ev.Candidates),
			Excluded:   convertExclusions(ev.Excluded),
		}, true
	case flows.StageExecuting:
		return translateTransition(ev.Transition)
	default:
		return Event{}, false
	}
}

func translateTransition(t *flows.Transition) (Event, bool) {
	if t == nil {
		return Event{}, false
	}
	if t.Attempt != nil {
		a := convertAttempt(*t.Attempt)
		return Event{Kind: EventFlowOutcome, Flow: &a}, true
	}

	switch t.State {
	case flows.StateAttempting:
		return Event{Kind: EventFlowAttempting, Flow: &FlowAttempt{Index: t.Index, Spec: t.Spec}}, true
	case flows.StateAwaitingUser:
		return Event{Kind: EventAwaitingUser, Flow: &FlowAttempt{
			Index:   t.Index,
			Spec:    t.Spec,
			Outcome: OutcomeAwaitingUser,
			URI:     t.URI,
		}}, true
	default:
		return Event{}, false
	}
}

func convertIdentity(name string, id flows.Identity) ResolvedIdentity {
	return ResolvedIdentity{Name: name, Address: id.Address, Source: id.Source}
}

func convertOutcome(o flows.Outcome) FlowOutcome {
	switch o {
	case flows.OutcomeSkipped:
		return OutcomeSkipped
	case flows.OutcomeAwaitingUser:
		return OutcomeAwaitingUser
	case flows.OutcomeSucceeded:
		return OutcomeSucceeded
	case flows.OutcomeFailed:
		return OutcomeFailed
	default:
		return 0
	}
}

func convertAttempt(a flows.Attempt) FlowAttempt {
	return FlowAttempt{
		Index:   a.Index,
		Spec:    a.Spec,
		Outcome: convertOutcome(a.Outcome),
		Reason:  a.Reason,
		URI:     a.URI,
		Err:     a.Err,
		Session: a.Session,
	}
}

func convertAttempts(in []flows.Attempt) []FlowAttempt {
	if len(in) == 0 {
		return nil
	}
	out := make([]FlowAttempt, len(in))
	for i, a := range in {
		out[i] = convertAttempt(a)
	}
	return out
}

func convertCandidates(in []flows.Candidate) []CandidateFlow {
	out := make([]CandidateFlow, len(in))
	for i, c := range in {
		out[i] = CandidateFlow{Index: c.Index, Spec: c.Spec}
	}
	return out
}

func convertExclusions(in []flows.Exclusion) []ExcludedFlow {
	if len(in) == 0 {
		return nil
	}
	out := make([]ExcludedFlow, len(in))
	for i, x := range in {
		out[i] = ExcludedFlow{Index: x.Index, Spec: x.Spec, Reason: string(x.Reason)}
	}
	return out
}

func convertWarnings(in []flows.Warning) []Warning {
	if len(in) == 0 {
		return nil
	}
	out := make([]Warning, len(in))
	for i, w := range in {
		out[i] = Warning{Code: w.Code, Message: w.Message}
	}
	return out
}
