package goNameAuth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginCancelled     = "login_cancelled"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventAddressMismatch    = "address_mismatch"
	auditEventRateLimitTriggered = "rate_limit_triggered"
)

// AuditErrorCode is the stable error label written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrResolutionFailed         AuditErrorCode = "resolution_failed"
	auditErrAuthenticatorUnavailable AuditErrorCode = "authenticator_unavailable"
	auditErrTimeout                  AuditErrorCode = "timeout"
	auditErrNoEligibleFlow           AuditErrorCode = "no_eligible_flow"
	auditErrAllFlowsFailed           AuditErrorCode = "all_flows_failed"
	auditErrAddressMismatch          AuditErrorCode = "address_mismatch"
	auditErrCancelled                AuditErrorCode = "cancelled"
	auditErrRateLimited              AuditErrorCode = "rate_limited"
	auditErrInvalidName              AuditErrorCode = "invalid_name"
	auditErrInternal                 AuditErrorCode = "internal_error"
)

type auditFields struct {
	attemptID  string
	name       string
	address    string
	connection string
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	fields auditFields,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		AttemptID:  fields.attemptID,
		Name:       fields.name,
		Address:    fields.address,
		Connection: fields.connection,
		IP:         clientIPFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, fields auditFields, scope string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, fields, nil, func() map[string]string {
		return map[string]string{
			"scope": scope,
		}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidName):
		return auditErrInvalidName
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrResolutionFailed):
		return auditErrResolutionFailed
	case errors.Is(err, ErrTimeout):
		return auditErrTimeout
	case errors.Is(err, ErrAuthenticatorUnavailable):
		return auditErrAuthenticatorUnavailable
	case errors.Is(err, ErrNoEligibleFlow):
		return auditErrNoEligibleFlow
	case errors.Is(err, ErrAllFlowsFailed):
		return auditErrAllFlowsFailed
	case errors.Is(err, ErrAddressMismatch):
		return auditErrAddressMismatch
	case errors.Is(err, ErrCancelled):
		return auditErrCancelled
	default:
		return auditErrInternal
	}
}
