package goSession

import (
	"context"
	"errors"
)

const (
	auditEventBootstrap           = "bootstrap"
	auditEventSignInSuccess       = "sign_in_success"
	auditEventSignInFailure       = "sign_in_failure"
	auditEventSignUpSuccess       = "sign_up_success"
	auditEventSignUpPending       = "sign_up_pending"
	auditEventSignUpRejected      = "sign_up_rejected"
	auditEventSignUpFailure       = "sign_up_failure"
	auditEventSignOut             = "sign_out"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshFailure      = "refresh_failure"
	auditEventPersistenceRollback = "persistence_rollback"
)

// AuditErrorCode is the stable error classification written to audit events.
// Error text from the identity service is never copied into the audit trail.
type AuditErrorCode string

const (
	auditErrValidation     AuditErrorCode = "validation"
	auditErrAuthentication AuditErrorCode = "authentication"
	auditErrTimeout        AuditErrorCode = "timeout"
	auditErrCancelled      AuditErrorCode = "cancelled"
	auditErrPersistence    AuditErrorCode = "persistence"
	auditErrNoRefreshToken AuditErrorCode = "no_refresh_token"
	auditErrInternal       AuditErrorCode = "internal"
)

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrNoRefreshToken):
		return auditErrNoRefreshToken
	case errors.Is(err, ErrPersistence):
		return auditErrPersistence
	case errors.Is(err, context.DeadlineExceeded):
		return auditErrTimeout
	case errors.Is(err, context.Canceled):
		return auditErrCancelled
	case errors.Is(err, ErrAuthentication):
		return auditErrAuthentication
	default:
		return auditErrInternal
	}
}

func (s *Store) emitAudit(ctx context.Context, eventType string, success bool, userID string, from, to Phase, err error, metadata map[string]string) {
	if s.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: s.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		FromPhase: from.String(),
		ToPhase:   to.String(),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = string(auditErrorCode(err))
	}

	s.audit.Emit(context.WithoutCancel(ctx), event)
}

// AuditDropped returns the number of audit events dropped because the
// dispatcher buffer was full.
func (s *Store) AuditDropped() uint64 {
	return s.audit.Dropped()
}
