package postgres

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/errors"
	"github.com/turtacn/ssoguard/pkg/logger"
)

var (
	_ service.RevocationStore   = (*RevocationStore)(nil)
	_ service.RevocationSweeper = (*RevocationStore)(nil)
)

// RevokedToken is the row layout of the revoked_tokens table.
type RevokedToken struct {
	TokenID   string     `gorm:"primaryKey;size:64"`
	RevokedAt time.Time  `gorm:"not null"`
	ExpiresAt *time.Time `gorm:"index"`
}

// TableName implements gorm's Tabler.
func (RevokedToken) TableName() string {
	return constants.TableNameRevokedTokens
}

// RevocationStore persists revocations in SQL so they survive restarts and are shared by
// every instance pointed at the same database.
type RevocationStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewRevocationStore creates the store on top of conn.
func NewRevocationStore(conn *DBConnection, log logger.Logger) *RevocationStore {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &RevocationStore{db: conn.DB(), logger: log.WithComponent("revocation_store")}
}

// Migrate creates or updates the revoked_tokens table.
func (s *RevocationStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&RevokedToken{}); err != nil {
		return s.mapErr(ctx, "migrate", err)
	}
	return nil
}

// Name implements service.RevocationStore.
func (s *RevocationStore) Name() string {
	return string(constants.RevocationBackendDatabase)
}

// Revoke implements service.RevocationStore. Existing rows are left untouched so the
// first revocation time wins.
func (s *RevocationStore) Revoke(ctx context.Context, record models.RevocationRecord) error {
	row := RevokedToken{TokenID: record.TokenID, RevokedAt: record.RevokedAt.UTC()}
	if !record.ExpiresAt.IsZero() {
		exp := record.ExpiresAt.UTC()
		row.ExpiresAt = &exp
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token_id"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return s.mapErr(ctx, "revoke", err)
	}
	return nil
}

// IsRevoked implements service.RevocationStore.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&RevokedToken{}).
		Where("token_id = ?", tokenID).
		Count(&count).Error
	if err != nil {
		return false, s.mapErr(ctx, "is_revoked", err)
	}
	return count > 0, nil
}

// Find returns the stored record, or nil when the token was never revoked.
func (s *RevocationStore) Find(ctx context.Context, tokenID string) (*RevokedToken, error) {
	var row RevokedToken
	err := s.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.mapErr(ctx, "find", err)
	}
	return &row, nil
}

// Sweep implements service.RevocationSweeper. Rows without an expiry are kept.
func (s *RevocationStore) Sweep(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now.UTC()).
		Delete(&RevokedToken{})
	if res.Error != nil {
		return 0, s.mapErr(ctx, "sweep", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Info(ctx, "Purged expired revocation records", logger.Int64("removed", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

// mapErr logs the failure, with the SQLSTATE when the driver reports one, and wraps it
// as a store outage.
func (s *RevocationStore) mapErr(ctx context.Context, op string, err error) error {
	fields := []logger.Field{logger.String("operation", op)}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		fields = append(fields, logger.String("sqlstate", pgErr.Code))
	}
	s.logger.Error(ctx, "Revocation store query failed", err, fields...)
	return errors.ErrStoreUnavailable(s.Name(), err)
}
