package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
)

// State is a FlowExecutor state. Succeeded, Exhausted and Cancelled are terminal.
type State uint8

const (
	StateIdle State = iota
	StateAttempting
	StateAwaitingUser
	StateSucceeded
	StateExhausted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateAwaitingUser:
		return "awaiting_user"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateExhausted || s == StateCancelled
}

// Outcome is the per-candidate result kind.
type Outcome uint8

const (
	OutcomeSkipped Outcome = iota + 1
	OutcomeAwaitingUser
	OutcomeSucceeded
	OutcomeFailed
)

func (o Outcome) String() string {
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

// Skip reasons recorded on Skipped attempts.
const (
	ReasonProviderNotFound      = "provider_not_found"
	ReasonUnsupported           = "unsupported"
	ReasonUnsupportedConnection = "unsupported_connection"
)

// Failure reasons recorded on Failed attempts.
const (
	ReasonRejected = "rejected"
	ReasonTimeout  = "timeout"
	ReasonError    = "error"
)

// Attempt records what happened to one candidate.
type Attempt struct {
	Index   int
	Spec    authdoc.FlowSpec
	Outcome Outcome
	Reason  string
	URI     string
	Err     error
	Session *connect.Session
}

// Transition is reported to ExecutorDeps.OnTransition on every state change.
// Attempt is set when a candidate reaches an outcome.
type Transition struct {
	State   State
	Index   int
	Spec    authdoc.FlowSpec
	URI     string
	Attempt *Attempt
}

// ExecutorDeps captures executor dependencies.
type ExecutorDeps struct {
	Connector    func(authdoc.Connection) (connect.Connector, bool)
	Capabilities connect.CapabilityContext
	// AwaitTimeout bounds each AwaitingUser suspension. Zero waits indefinitely.
	AwaitTimeout time.Duration
	OnTransition func(Transition)
}

// ExecutionResult is the terminal state of one executor run.
type ExecutionResult struct {
	State    State
	Winner   *Attempt
	Attempts []Attempt
}

// AllSkipped reports whether every recorded attempt was skipped, including the
// case where there was nothing to attempt.
func (r ExecutionResult) AllSkipped() bool {
	for _, a := range r.Attempts {
		if a.Outcome != OutcomeSkipped {
			return false
		}
	}
	return true
}

// RunExecutor attempts candidates one at a time, in order, until one succeeds,
// all are exhausted, or ctx is cancelled. Only the candidate currently being
// attempted is ever live: a handshake is abandoned before the loop advances.
func RunExecutor(ctx context.Context, candidates []Candidate, deps ExecutorDeps) ExecutionResult {
	res := ExecutionResult{
		State:    StateIdle,
		Attempts: make([]Attempt, 0, len(candidates)),
	}
	emit := deps.OnTransition
	if emit == nil {
		emit = func(Transition) {}
	}

	for _, c := range candidates {
		if ctx.Err() != nil {
			return cancelled(res, emit)
		}

		res.State = StateAttempting
		emit(Transition{State: StateAttempting, Index: c.Index, Spec: c.Spec})

		attempt, state := runCandidate(ctx, c, deps, emit)
		if state == StateCancelled {
			return cancelled(res, emit)
		}

		res.Attempts = append(res.Attempts, attempt)
		recorded := &res.Attempts[len(res.Attempts)-1]
		emit(Transition{State: state, Index: c.Index, Spec: c.Spec, URI: attempt.URI, Attempt: recorded})

		if attempt.Outcome == OutcomeSucceeded {
			res.State = StateSucceeded
			res.Winner = recorded
			return res
		}
	}

	res.State = StateExhausted
	emit(Transition{State: StateExhausted, Index: -1})
	return res
}

func cancelled(res ExecutionResult, emit func(Transition)) ExecutionResult {
	res.State = StateCancelled
	res.Winner = nil
	emit(Transition{State: StateCancelled, Index: -1})
	return res
}

// runCandidate drives one candidate from Attempting to an outcome. The returned
// state is the state the executor is in once the outcome is known; skipped and
// failed candidates report StateAttempting since the loop advances.
func runCandidate(ctx context.Context, c Candidate, deps ExecutorDeps, emit func(Transition)) (Attempt, State) {
	attempt := Attempt{Index: c.Index, Spec: c.Spec}

	var connector connect.Connector
	if deps.Connector != nil {
		connector, _ = deps.Connector(c.Spec.Connection)
	}
	if connector == nil {
		attempt.Outcome = OutcomeSkipped
		attempt.Reason = ReasonUnsupportedConnection
		return attempt, StateAttempting
	}

	hs, err := connector.Initiate(ctx, c.Spec, deps.Capabilities)
	if err != nil {
		if ctx.Err() != nil {
			return attempt, StateCancelled
		}
		attempt.Err = err
		switch {
		case errors.Is(err, connect.ErrProviderNotFound):
			attempt.Outcome = OutcomeSkipped
			attempt.Reason = ReasonProviderNotFound
		case errors.Is(err, connect.ErrUnsupported):
			attempt.Outcome = OutcomeSkipped
			attempt.Reason = ReasonUnsupported
		default:
			attempt.Outcome = OutcomeFailed
			attempt.Reason = failureReason(err)
		}
		return attempt, StateAttempting
	}

	attempt.URI = hs.URI()
	emit(Transition{State: StateAwaitingUser, Index: c.Index, Spec: c.Spec, URI: attempt.URI})

	sess, err := await(ctx, hs, deps.AwaitTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return attempt, StateCancelled
		}
		attempt.Outcome = OutcomeFailed
		attempt.Reason = failureReason(err)
		attempt.Err = err
		return attempt, StateAttempting
	}
	if sess == nil {
		attempt.Outcome = OutcomeFailed
		attempt.Reason = ReasonError
		attempt.Err = errors.New("connector returned no session")
		return attempt, StateAttempting
	}
	if sess.Connection == "" {
		sess.Connection = c.Spec.Connection
	}

	attempt.Outcome = OutcomeSucceeded
	attempt.Session = sess
	return attempt, StateSucceeded
}

type waitResult struct {
	session *connect.Session
	err     error
}

// await runs hs.Wait on its own goroutine so cancellation and the timeout take
// effect even when the mechanism ignores its context.
func await(ctx context.Context, hs connect.Handshake, timeout time.Duration) (*connect.Session, error) {
	var (
		waitCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		waitCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan waitResult, 1)
	go func() {
		sess, err := hs.Wait(waitCtx)
		done <- waitResult{session: sess, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if ctx.Err() != nil {
				hs.Abandon()
				return nil, ctx.Err()
			}
			if errors.Is(r.err, context.DeadlineExceeded) && waitCtx.Err() != nil {
				hs.Abandon()
				return nil, fmt.Errorf("%w after %s", connect.ErrTimeout, timeout)
			}
		}
		return r.session, r.err
	case <-waitCtx.Done():
		hs.Abandon()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s", connect.ErrTimeout, timeout)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, connect.ErrRejected):
		return ReasonRejected
	case errors.Is(err, connect.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	default:
		return ReasonError
	}
}
