package consumers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/ssoguard/internal/config"
	"github.com/turtacn/ssoguard/internal/domain/service"
	"github.com/turtacn/ssoguard/pkg/clock"
	"github.com/turtacn/ssoguard/pkg/logger"
)

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewRevocationReader creates a reader on the revocation topic. Every instance needs every
// revocation, so the group id is suffixed with the instance id.
func NewRevocationReader(cfg config.KafkaConfig, instance string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.RevocationTopic,
		GroupID:        cfg.ConsumerGroup + "-" + instance,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})
}

// RevocationConsumer listens for revocations published by other instances and applies
// them to the local store.
type RevocationConsumer struct {
	reader   MessageReader
	store    service.RevocationStore
	instance string
	clock    clock.Clock
	logger   logger.Logger

	retryInitial time.Duration
	retryMax     time.Duration
}

// NewRevocationConsumer creates a new consumer. store must be the undecorated local store
// so applied revocations are not published again.
func NewRevocationConsumer(r MessageReader, store service.RevocationStore, instance string, clk clock.Clock, log logger.Logger) *RevocationConsumer {
	if clk == nil {
		clk = clock.System()
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &RevocationConsumer{
		reader:   r,
		store:    store,
		instance: instance,
		clock:    clk,
		logger:   log.WithComponent("revocation_consumer"),

		retryInitial: 100 * time.Millisecond,
		retryMax:     5 * time.Second,
	}
}

// Run consumes until ctx is cancelled. It returns nil on cancellation.
func (c *RevocationConsumer) Run(ctx context.Context) error {
	c.logger.Info(ctx, "starting revocation consumer", logger.String("instance", c.instance))
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Error(context.Background(), "failed to close kafka reader", err)
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
				c.logger.Info(context.Background(), "stopping revocation consumer")
				return nil
			}
			c.logger.Error(ctx, "failed to fetch message from kafka", err)
			continue
		}

		// offsets commit in order, so a message is retried in place until it applies;
		// skipping it would let a later commit acknowledge it
		if err := c.apply(ctx, msg); err != nil {
			c.logger.Info(context.Background(), "stopping revocation consumer with unapplied message",
				logger.Int64("offset", msg.Offset))
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error(ctx, "failed to commit message", err, logger.Int64("offset", msg.Offset))
		}
	}
}

// apply retries handle with exponential backoff. It only gives up when ctx is done.
func (c *RevocationConsumer) apply(ctx context.Context, msg kafka.Message) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = c.retryMax
	b.MaxElapsedTime = 0

	return backoff.RetryNotify(func() error {
		return c.handle(ctx, msg)
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		c.logger.Error(ctx, "failed to apply revocation, retrying", err,
			logger.Int64("offset", msg.Offset),
			logger.Duration("wait", wait),
		)
	})
}

func (c *RevocationConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var event RevocationMessage
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// poison pill; acknowledge and move on
		c.logger.Warn(ctx, "dropping undecodable revocation message", logger.Int64("offset", msg.Offset))
		return nil
	}
	if event.TokenID == "" {
		c.logger.Warn(ctx, "dropping revocation message without token id", logger.Int64("offset", msg.Offset))
		return nil
	}
	if event.Origin == c.instance {
		return nil
	}

	rec := event.Record()
	if !rec.Retainable(c.clock.Now()) {
		c.logger.Debug(ctx, "skipping expired revocation", logger.Fingerprint(rec.TokenID))
		return nil
	}
	if err := c.store.Revoke(ctx, rec); err != nil {
		return fmt.Errorf("revoke %s: %w", rec.TokenID, err)
	}
	c.logger.Debug(ctx, "applied remote revocation",
		logger.Fingerprint(rec.TokenID),
		logger.String("origin", event.Origin),
	)
	return nil
}
