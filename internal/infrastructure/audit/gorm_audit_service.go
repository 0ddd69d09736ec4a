package audit

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/pkg/constants"
)

var _ service.AuditService = (*GormAuditService)(nil)

// AuditRecord is the audit_events row.
type AuditRecord struct {
	EventID   string `gorm:"primaryKey;size:36"`
	EventType string `gorm:"size:32;index"`
	Result    string `gorm:"size:16"`
	Subject   string `gorm:"size:255;index"`
	TokenID   string `gorm:"size:64"`
	ExpiresAt *time.Time
	ClientIP  string    `gorm:"size:64"`
	TraceID   string    `gorm:"size:32"`
	Reason    string    `gorm:"size:255"`
	Timestamp time.Time `gorm:"index"`
}

// TableName implements gorm's Tabler.
func (AuditRecord) TableName() string {
	return constants.TableNameAuditEvents
}

// GormAuditService stores audit events in a relational database.
type GormAuditService struct {
	db *gorm.DB
}

// NewGormAuditService creates a GormAuditService.
func NewGormAuditService(db *gorm.DB) *GormAuditService {
	return &GormAuditService{db: db}
}

// Migrate creates the audit_events table.
func (s *GormAuditService) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&AuditRecord{})
}

// LogEvent saves an AuditEvent to the database.
func (s *GormAuditService) LogEvent(ctx context.Context, event models.AuditEvent) error {
	rec := AuditRecord{
		EventID:   event.EventID,
		EventType: string(event.EventType),
		Result:    string(event.Result),
		Subject:   event.Subject,
		TokenID:   event.TokenID,
		ExpiresAt: event.ExpiresAt,
		ClientIP:  event.ClientIP,
		TraceID:   event.TraceID,
		Reason:    event.Reason,
		Timestamp: event.Timestamp,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// Recent returns up to limit events for subject, newest first.
func (s *GormAuditService) Recent(ctx context.Context, subject string, limit int) ([]AuditRecord, error) {
	var out []AuditRecord
	err := s.db.WithContext(ctx).
		Where("subject = ?", subject).
		Order("timestamp DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
