// Package consumers carries revocations between service instances over Kafka.
package consumers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/ssoguard/internal/config"
	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/pkg/logger"
)

var (
	_ service.RevocationStore   = (*FanoutStore)(nil)
	_ service.RevocationSweeper = (*FanoutStore)(nil)
)

// RevocationMessage is the wire form of a revocation on the fan-out topic.
type RevocationMessage struct {
	TokenID   string     `json:"token_id"`
	RevokedAt time.Time  `json:"revoked_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Origin    string     `json:"origin"`
}

func newRevocationMessage(rec models.RevocationRecord, origin string) RevocationMessage {
	msg := RevocationMessage{TokenID: rec.TokenID, RevokedAt: rec.RevokedAt.UTC(), Origin: origin}
	if !rec.ExpiresAt.IsZero() {
		exp := rec.ExpiresAt.UTC()
		msg.ExpiresAt = &exp
	}
	return msg
}

// Record converts the message back into a revocation record.
func (m RevocationMessage) Record() models.RevocationRecord {
	rec := models.RevocationRecord{TokenID: m.TokenID, RevokedAt: m.RevokedAt}
	if m.ExpiresAt != nil {
		rec.ExpiresAt = *m.ExpiresAt
	}
	return rec
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewRevocationWriter creates the writer for the revocation topic.
func NewRevocationWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.RevocationTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		BatchTimeout: cfg.BatchTimeout,
	}
}

// FanoutStore decorates the local store and publishes each revocation so other instances
// can apply it. The local write happens first; a failed publish is logged and does not
// undo it.
type FanoutStore struct {
	local    service.RevocationStore
	writer   MessageWriter
	instance string
	logger   logger.Logger
}

// NewFanoutStore wraps local. instance identifies this process on the topic.
func NewFanoutStore(local service.RevocationStore, w MessageWriter, instance string, log logger.Logger) *FanoutStore {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &FanoutStore{
		local:    local,
		writer:   w,
		instance: instance,
		logger:   log.WithComponent("revocation_fanout"),
	}
}

// Name implements service.RevocationStore.
func (s *FanoutStore) Name() string {
	return s.local.Name()
}

// Revoke implements service.RevocationStore.
func (s *FanoutStore) Revoke(ctx context.Context, record models.RevocationRecord) error {
	if err := s.local.Revoke(ctx, record); err != nil {
		return err
	}

	payload, err := json.Marshal(newRevocationMessage(record, s.instance))
	if err != nil {
		return err
	}
	if err := s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(record.TokenID), Value: payload}); err != nil {
		s.logger.Error(ctx, "failed to publish revocation", err, logger.Fingerprint(record.TokenID))
	}
	return nil
}

// IsRevoked implements service.RevocationStore.
func (s *FanoutStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return s.local.IsRevoked(ctx, tokenID)
}

// Sweep forwards to the local store when it supports sweeping.
func (s *FanoutStore) Sweep(ctx context.Context, now time.Time) (int64, error) {
	if sw, ok := s.local.(service.RevocationSweeper); ok {
		return sw.Sweep(ctx, now)
	}
	return 0, nil
}

// Close closes the writer.
func (s *FanoutStore) Close() error {
	return s.writer.Close()
}
