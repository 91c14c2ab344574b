package goNameAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/MrEthical07/goNameAuth/connect"
	"github.com/MrEthical07/goNameAuth/fetch"
	"github.com/MrEthical07/goNameAuth/internal/flows"
	"github.com/MrEthical07/goNameAuth/internal/rate"
	"github.com/MrEthical07/goNameAuth/resolver"
	"go.uber.org/multierr"
)

// admit normalizes the name and applies attempt throttling. Nothing here
// touches resolvers or the network apart from the limiter's Redis.
func (e *Engine) admit(ctx context.Context, id, raw string) (string, error) {
	name, err := resolver.Normalize(raw)
	if err != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, auditFields{attemptID: id, name: raw}, ErrInvalidName, nil)
		return "", &LoginError{Kind: ErrInvalidName, AttemptID: id, Name: raw, Err: err}
	}

	if e.rateLimiter == nil {
		return name, nil
	}

	fields := auditFields{attemptID: id, name: name}
	if err := e.rateLimiter.CheckLogin(ctx, name, clientIPFromContext(ctx)); err != nil {
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, fields, ErrLoginRateLimited, nil)
		if errors.Is(err, rate.ErrRateLimited) {
			e.emitRateLimit(ctx, fields, "login")
		} else {
			e.logger.Warn("attempt throttle check failed", "attempt_id", id, "name", name, "error", err)
		}
		return "", &LoginError{Kind: ErrLoginRateLimited, AttemptID: id, Name: name, Err: err}
	}

	return name, nil
}

// run executes one admitted attempt and records its outcome.
func (e *Engine) run(ctx context.Context, id, name string, req LoginRequest, emit func(Event)) (*LoginResult, error) {
	start := time.Now()
	logger := e.logger.With("attempt_id", id, "name", name)
	send := func(ev Event) {
		if emit == nil {
			return
		}
		ev.AttemptID = id
		ev.Time = time.Now()
		emit(ev)
	}

	e.metricInc(MetricLoginStarted)
	logger.Debug("login started")

	deps := flows.LoginDeps{
		ResolveName:          e.resolveName,
		ResolveAuthenticator: e.resolveAuthenticator,
		FetchDocument:        e.fetcher.Fetch,
		IsTimeout:            fetch.IsTimeout,
		Capabilities:         req.Capabilities,
		StrictAddressMatch:   e.config.Validation.StrictAddressMatch,
		Executor: flows.ExecutorDeps{
			Connector:    e.connector,
			AwaitTimeout: e.config.Flow.AwaitTimeout,
		},
		OnEvent: func(ev flows.LoginEvent) {
			if out, ok := translateEvent(name, ev); ok {
				if out.Kind == EventFlowOutcome {
					logger.Debug("flow outcome",
						"index", out.Flow.Index,
						"connection", string(out.Flow.Spec.Connection),
						"outcome", out.Flow.Outcome.String(),
						"reason", out.Flow.Reason,
					)
				}
				send(out)
			}
		},
	}

	res := flows.RunLogin(ctx, name, deps)

	elapsed := time.Since(start)
	e.metrics.Observe(MetricLoginLatency, elapsed)

	// Side effects after the run must survive cancellation of ctx.
	bg := context.WithoutCancel(ctx)
	ip := clientIPFromContext(ctx)
	fields := auditFields{attemptID: id, name: name, address: res.Identity.Address}

	e.recordFlows(res.Execution.Attempts)
	e.recordWarnings(bg, fields, res.Warnings, logger)

	if res.Failure == flows.LoginFailureNone && res.Execution.Winner != nil {
		winner := convertAttempt(*res.Execution.Winner)
		result := &LoginResult{
			AttemptID: id,
			Identity:  convertIdentity(name, res.Identity),
			Document:  res.Document,
			Session:   *winner.Session,
			Flow:      winner,
			Attempts:  convertAttempts(res.Execution.Attempts),
			Excluded:  convertExclusions(res.Excluded),
			Warnings:  convertWarnings(res.Warnings),
			Duration:  elapsed,
		}
		fields.connection = string(winner.Spec.Connection)

		e.metricInc(MetricLoginSuccess)
		if e.rateLimiter != nil {
			if err := e.rateLimiter.ResetLogin(bg, name, ip); err != nil {
				logger.Warn("attempt throttle reset failed", "error", err)
			}
		}
		e.emitAudit(bg, auditEventLoginSuccess, true, fields, nil, func() map[string]string {
			return map[string]string{
				"flow_index": strconv.Itoa(winner.Index),
				"chain":      result.Session.Chain,
			}
		})
		logger.Info("login succeeded",
			"connection", fields.connection,
			"address", result.Identity.Address,
			"duration", elapsed,
		)

		send(Event{Kind: EventFinished, Result: result})
		return result, nil
	}

	lerr := &LoginError{
		Kind:      failureKind(res.Failure),
		AttemptID: id,
		Name:      name,
		Attempts:  convertAttempts(res.Execution.Attempts),
		Excluded:  convertExclusions(res.Excluded),
		Err:       res.Err,
	}
	if res.Failure == flows.LoginFailureAllFlowsFailed {
		lerr.Err = attemptErrors(res.Execution.Attempts)
	}

	if res.Failure == flows.LoginFailureCancelled {
		e.metricInc(MetricLoginCancelled)
		e.emitAudit(bg, auditEventLoginCancelled, false, fields, ErrCancelled, nil)
		logger.Debug("login cancelled", "duration", elapsed)
	} else {
		e.metricInc(MetricLoginFailure)
		e.metricInc(failureMetric(res.Failure))
		e.countFailure(bg, fields, ip, logger)
		e.emitAudit(bg, auditEventLoginFailure, false, fields, lerr, func() map[string]string {
			return map[string]string{
				"attempted": strconv.Itoa(len(res.Execution.Attempts)),
				"excluded":  strconv.Itoa(len(res.Excluded)),
			}
		})
		logger.Info("login failed", "error", lerr, "duration", elapsed)
	}

	send(Event{Kind: EventFinished, Err: lerr})
	return nil, lerr
}

// countFailure charges a failed attempt against the name and client budgets.
// Cancelled attempts are never charged.
func (e *Engine) countFailure(ctx context.Context, fields auditFields, ip string, logger *slog.Logger) {
	if e.rateLimiter == nil {
		return
	}
	err := e.rateLimiter.IncrementLogin(ctx, fields.name, ip)
	switch {
	case err == nil:
	case errors.Is(err, rate.ErrRateLimited):
		e.emitRateLimit(ctx, fields, "login")
	default:
		logger.Warn("attempt throttle increment failed", "error", err)
	}
}

func (e *Engine) recordFlows(attempts []flows.Attempt) {
	for _, a := range attempts {
		switch a.Outcome {
		case flows.OutcomeSkipped:
			e.metricInc(MetricFlowSkipped)
		case flows.OutcomeFailed:
			e.metricInc(MetricFlowFailed)
		case flows.OutcomeSucceeded:
			e.metricInc(MetricFlowSucceeded)
		}
	}
}

func (e *Engine) recordWarnings(ctx context.Context, fields auditFields, warnings []flows.Warning, logger *slog.Logger) {
	for _, w := range warnings {
		logger.Warn("login warning", "code", w.Code, "detail", w.Message)
		if w.Code == flows.WarningSessionAddressMissing {
			continue
		}
		e.metricInc(MetricAddressMismatchWarning)
		code := w.Code
		e.emitAudit(ctx, auditEventAddressMismatch, false, fields, nil, func() map[string]string {
			return map[string]string{
				"code": code,
			}
		})
	}
}

func (e *Engine) plan(ctx context.Context, name string, caps connect.CapabilityContext) (*LoginPlan, error) {
	fail := func(kind, err error) error {
		if ctx.Err() != nil && !errors.Is(kind, ErrAddressMismatch) {
			kind, err = ErrCancelled, ctx.Err()
		}
		return &LoginError{Kind: kind, Name: name, Err: err}
	}

	addr, err := e.resolveName(ctx, name)
	if err != nil {
		return nil, fail(ErrResolutionFailed, err)
	}
	src, err := e.resolveAuthenticator(ctx, name)
	if err != nil {
		return nil, fail(ErrResolutionFailed, err)
	}
	if src.IsZero() {
		return nil, fail(ErrResolutionFailed, flows.ErrNoAuthenticator)
	}

	doc, err := e.fetcher.Fetch(ctx, src, name)
	if err != nil {
		if fetch.IsTimeout(err) {
			return nil, fail(ErrTimeout, err)
		}
		return nil, fail(ErrAuthenticatorUnavailable, err)
	}

	p := &LoginPlan{
		Identity: ResolvedIdentity{Name: name, Address: addr, Source: src},
		Document: doc,
	}

	if doc.HasAddress() && flows.ValidateSession(doc.Chain, addr, doc.Address) == flows.SessionMismatch {
		msg := fmt.Sprintf("document address %s does not match resolved address %s", doc.Address, addr)
		if e.config.Validation.StrictAddressMatch {
			return nil, fail(ErrAddressMismatch, errors.New(msg))
		}
		p.Warnings = append(p.Warnings, Warning{Code: WarningDocumentAddressMismatch, Message: msg})
	}

	candidates, excluded := flows.FilterFlows(doc.AuthFlows, caps.Snapshot())
	p.Candidates = convertCandidates(candidates)
	p.Excluded = convertExclusions(excluded)
	return p, nil
}

func failureKind(kind flows.LoginFailureKind) error {
	switch kind {
	case flows.LoginFailureResolution:
		return ErrResolutionFailed
	case flows.LoginFailureAuthenticator:
		return ErrAuthenticatorUnavailable
	case flows.LoginFailureTimeout:
		return ErrTimeout
	case flows.LoginFailureNoEligibleFlow:
		return ErrNoEligibleFlow
	case flows.LoginFailureAllFlowsFailed:
		return ErrAllFlowsFailed
	case flows.LoginFailureAddressMismatch:
		return ErrAddressMismatch
	case flows.LoginFailureCancelled:
		return ErrCancelled
	default:
		return errors.New("unknown login failure")
	}
}

func failureMetric(kind flows.LoginFailureKind) MetricID {
	switch kind {
	case flows.LoginFailureResolution:
		return MetricResolutionFailure
	case flows.LoginFailureAuthenticator:
		return MetricAuthenticatorUnavailable
	case flows.LoginFailureTimeout:
		return MetricAuthenticatorTimeout
	case flows.LoginFailureNoEligibleFlow:
		return MetricNoEligibleFlow
	case flows.LoginFailureAllFlowsFailed:
		return MetricAllFlowsFailed
	case flows.LoginFailureAddressMismatch:
		return MetricAddressMismatch
	default:
		return metricIDCount
	}
}

func attemptErrors(attempts []flows.Attempt) error {
	var err error
	for _, a := range attempts {
		if a.Outcome == flows.OutcomeFailed && a.Err != nil {
			err = multierr.Append(err, fmt.Errorf("flow %d (%s): %w", a.Index, a.Spec.Connection, a.Err))
		}
	}
	return err
}
