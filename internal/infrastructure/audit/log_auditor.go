package audit

import (
	"context"

	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/logger"
)

var (
	_ service.AuditService = (*LogAuditor)(nil)
	_ service.AuditService = NoopAuditor{}
)

// LogAuditor writes audit events to the service log.
type LogAuditor struct {
	logger logger.Logger
}

// NewLogAuditor creates a LogAuditor.
func NewLogAuditor(log logger.Logger) *LogAuditor {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &LogAuditor{logger: log.WithComponent("audit")}
}

// LogEvent implements service.AuditService.
func (a *LogAuditor) LogEvent(ctx context.Context, event models.AuditEvent) error {
	fields := []logger.Field{
		logger.String("event_id", event.EventID),
		logger.String("event_type", string(event.EventType)),
		logger.String("result", string(event.Result)),
		logger.Subject(event.Subject),
		logger.Fingerprint(event.TokenID),
		logger.String("client_ip", event.ClientIP),
	}
	if event.Reason != "" {
		fields = append(fields, logger.String("reason", event.Reason))
	}
	if event.Result == constants.AuditResultFailure {
		a.logger.Warn(ctx, "audit event", fields...)
		return nil
	}
	a.logger.Info(ctx, "audit event", fields...)
	return nil
}

// NoopAuditor discards every event.
type NoopAuditor struct{}

// LogEvent implements service.AuditService.
func (NoopAuditor) LogEvent(context.Context, models.AuditEvent) error { return nil }
