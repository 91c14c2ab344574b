package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureResolution
	LoginFailureAuthenticator
	LoginFailureTimeout
	LoginFailureNoEligibleFlow
	LoginFailureAllFlowsFailed
	LoginFailureAddressMismatch
	LoginFailureCancelled
)

// Stage names the orchestrator step a LoginEvent belongs to.
type Stage uint8

const (
	StageResolving Stage = iota + 1
	StageResolved
	StageFetched
	StageFiltered
	StageExecuting
	StageValidated
)

// Warning codes for non-fatal findings.
const (
	WarningDocumentAddressMismatch = "document_address_mismatch"
	WarningSessionAddressMismatch  = "session_address_mismatch"
	WarningSessionAddressMissing   = "session_address_missing"
)

// Warning is a non-fatal finding surfaced alongside a result.
type Warning struct {
	Code    string
	Message string
}

// Identity is what name resolution produced.
type Identity struct {
	Address string
	Source  authdoc.Source
}

// LoginEvent is reported to LoginDeps.OnEvent as the orchestrator progresses.
type LoginEvent struct {
	Stage      Stage
	Identity   *Identity
	Document   *authdoc.Document
	Candidates []Candidate
	Excluded   []Exclusion
	Transition *Transition
	Warning    *Warning
}

// LoginDeps captures orchestrator dependencies.
type LoginDeps struct {
	ResolveName          func(context.Context, string) (string, error)
	ResolveAuthenticator func(context.Context, string) (authdoc.Source, error)
	FetchDocument        func(context.Context, authdoc.Source, string) (*authdoc.Document, error)
	IsTimeout            func(error) bool

	Capabilities       connect.CapabilityContext
	StrictAddressMatch bool
	Executor           ExecutorDeps

	OnEvent func(LoginEvent)
}

// LoginResult is the flow-local login response shape. Failure is
// LoginFailureNone exactly when Execution reached StateSucceeded and validation
// passed.
type LoginResult struct {
	Failure    LoginFailureKind
	Err        error
	Identity   Identity
	Document   *authdoc.Document
	Candidates []Candidate
	Excluded   []Exclusion
	Execution  ExecutionResult
	Warnings   []Warning
}

// ErrNoAuthenticator is returned when a name resolves to an address but no
// resolver publishes an authenticator for it.
var ErrNoAuthenticator = errors.New("no authenticator published")

// RunLogin resolves name, fetches and filters its flows, executes them and
// validates the winning session. Steps are strictly ordered; a step never
// starts before its predecessor succeeded.
func RunLogin(ctx context.Context, name string, deps LoginDeps) LoginResult {
	var res LoginResult
	emit := deps.OnEvent
	if emit == nil {
		emit = func(LoginEvent) {}
	}
	// Before execution, any failure observed after cancellation is a cancellation.
	fail := func(kind LoginFailureKind, err error) LoginResult {
		if ctx.Err() != nil && kind != LoginFailureAddressMismatch {
			kind = LoginFailureCancelled
			err = ctx.Err()
		}
		res.Failure = kind
		res.Err = err
		return res
	}
	finish := func(kind LoginFailureKind, err error) LoginResult {
		res.Failure = kind
		res.Err = err
		return res
	}

	emit(LoginEvent{Stage: StageResolving})

	addr, err := deps.ResolveName(ctx, name)
	if err != nil {
		return fail(LoginFailureResolution, err)
	}
	src, err := deps.ResolveAuthenticator(ctx, name)
	if err != nil {
		return fail(LoginFailureResolution, err)
	}
	if src.IsZero() {
		return fail(LoginFailureResolution, ErrNoAuthenticator)
	}
	res.Identity = Identity{Address: addr, Source: src}
	emit(LoginEvent{Stage: StageResolved, Identity: &res.Identity})

	doc, err := deps.FetchDocument(ctx, src, name)
	if err != nil {
		if deps.IsTimeout != nil && deps.IsTimeout(err) {
			return fail(LoginFailureTimeout, err)
		}
		return fail(LoginFailureAuthenticator, err)
	}
	res.Document = doc
	emit(LoginEvent{Stage: StageFetched, Identity: &res.Identity, Document: doc})

	if doc.HasAddress() && ValidateSession(doc.Chain, addr, doc.Address) == SessionMismatch {
		err := fmt.Errorf("document address %s does not match resolved address %s", doc.Address, addr)
		if deps.StrictAddressMatch {
			return fail(LoginFailureAddressMismatch, err)
		}
		res.warn(emit, StageFetched, WarningDocumentAddressMismatch, err.Error())
	}

	if ctx.Err() != nil {
		return fail(LoginFailureCancelled, ctx.Err())
	}

	caps := deps.Capabilities.Snapshot()
	res.Candidates, res.Excluded = FilterFlows(doc.AuthFlows, caps)
	emit(LoginEvent{Stage: StageFiltered, Candidates: res.Candidates, Excluded: res.Excluded})

	execDeps := deps.Executor
	execDeps.Capabilities = caps
	execDeps.OnTransition = func(t Transition) {
		if deps.Executor.OnTransition != nil {
			deps.Executor.OnTransition(t)
		}
		emit(LoginEvent{Stage: StageExecuting, Transition: &t})
	}
	res.Execution = RunExecutor(ctx, res.Candidates, execDeps)

	switch res.Execution.State {
	case StateCancelled:
		return finish(LoginFailureCancelled, context.Canceled)
	case StateExhausted:
		if res.Execution.AllSkipped() {
			return finish(LoginFailureNoEligibleFlow, nil)
		}
		return finish(LoginFailureAllFlowsFailed, nil)
	}

	sess := res.Execution.Winner.Session
	if sess.Address == "" {
		res.warn(emit, StageValidated, WarningSessionAddressMissing, "session did not report an address")
		emit(LoginEvent{Stage: StageValidated})
		return res
	}

	chain := sess.Chain
	if chain == "" {
		chain = doc.Chain
	}
	if ValidateSession(chain, addr, sess.Address) == SessionMismatch {
		err := fmt.Errorf("session address %s does not match resolved address %s", sess.Address, addr)
		if deps.StrictAddressMatch {
			return finish(LoginFailureAddressMismatch, err)
		}
		res.warn(emit, StageValidated, WarningSessionAddressMismatch, err.Error())
	}

	emit(LoginEvent{Stage: StageValidated})
	return res
}

func (r *LoginResult) warn(emit func(LoginEvent), stage Stage, code, msg string) {
	w := Warning{Code: code, Message: msg}
	r.Warnings = append(r.Warnings, w)
	emit(LoginEvent{Stage: stage, Warning: &w})
}
