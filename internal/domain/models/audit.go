package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/ssoguard/pkg/constants"
)

// AuditEvent is a single auditable occurrence in the token lifecycle. TokenID carries the
// token fingerprint, never the raw token.
type AuditEvent struct {
	EventID   string                     `json:"event_id"`
	EventType constants.AuditEventType   `json:"event_type"`
	Result    constants.AuditEventResult `json:"result"`
	Subject   string                     `json:"subject,omitempty"`
	TokenID   string                     `json:"token_id,omitempty"`
	ExpiresAt *time.Time                 `json:"expires_at,omitempty"`
	ClientIP  string                     `json:"client_ip,omitempty"`
	TraceID   string                     `json:"trace_id,omitempty"`
	Reason    string                     `json:"reason,omitempty"`
	Timestamp time.Time                  `json:"timestamp"`
}

// NewAuditEvent creates a new audit event stamped at now.
func NewAuditEvent(eventType constants.AuditEventType, result constants.AuditEventResult, now time.Time) AuditEvent {
	return AuditEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Result:    result,
		Timestamp: now.UTC(),
	}
}

// WithSubject sets the principal name.
func (e AuditEvent) WithSubject(subject string) AuditEvent {
	e.Subject = subject
	return e
}

// WithToken sets the token fingerprint and, when known, its natural expiry.
func (e AuditEvent) WithToken(tokenID string, expiresAt time.Time) AuditEvent {
	e.TokenID = tokenID
	if !expiresAt.IsZero() {
		exp := expiresAt.UTC()
		e.ExpiresAt = &exp
	}
	return e
}

// WithReason sets a failure reason.
func (e AuditEvent) WithReason(reason string) AuditEvent {
	e.Reason = reason
	return e
}

// WithContextInfo sets request-scoped information.
func (e AuditEvent) WithContextInfo(clientIP, traceID string) AuditEvent {
	e.ClientIP = clientIP
	e.TraceID = traceID
	return e
}
