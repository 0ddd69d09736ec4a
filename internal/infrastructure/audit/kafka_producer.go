// Package audit implements the AuditService sinks: Kafka, the service log and a database table.
package audit

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/ssoguard/internal/config"
	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/pkg/logger"
)

var _ service.AuditService = (*KafkaProducer)(nil)

// MessageWriter is the subset of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer is a Kafka-backed implementation of the AuditService.
type KafkaProducer struct {
	writer     MessageWriter
	signingKey string
	logger     logger.Logger
}

// NewKafkaProducer creates a new KafkaProducer writing to cfg.AuditTopic.
func NewKafkaProducer(cfg config.KafkaConfig, signingKey string, log logger.Logger) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		BatchTimeout: cfg.BatchTimeout,
		Async:        false,
	}
	return NewKafkaProducerWithWriter(writer, signingKey, log)
}

// NewKafkaProducerWithWriter wraps an existing writer.
func NewKafkaProducerWithWriter(w MessageWriter, signingKey string, log logger.Logger) *KafkaProducer {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &KafkaProducer{
		writer:     w,
		signingKey: signingKey,
		logger:     log.WithComponent("audit_kafka"),
	}
}

// LogEvent sends an audit event to the Kafka topic. Events are keyed by subject so one
// principal's events stay ordered within a partition.
func (p *KafkaProducer) LogEvent(ctx context.Context, event models.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(ctx, "failed to marshal audit event", err)
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.Subject),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	if p.signingKey != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: SignatureHeader, Value: []byte(SignPayload(payload, p.signingKey))})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error(ctx, "failed to write audit event to kafka", err,
			logger.String("event_id", event.EventID),
			logger.String("event_type", string(event.EventType)),
		)
		return err
	}
	return nil
}

// Close closes the underlying Kafka writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
