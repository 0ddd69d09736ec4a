package audit

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/internal/infrastructure/monitoring"
	"github.com/turtacn/ssoguard/pkg/constants"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func sampleEvent() models.AuditEvent {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return models.NewAuditEvent(constants.EventTypeTokenRevoke, constants.AuditResultSuccess, now).
		WithSubject("alice").
		WithToken("fp-1", now.Add(time.Hour)).
		WithContextInfo("10.0.0.1", "")
}

func TestKafkaProducer_LogEvent(t *testing.T) {
	w := new(mockWriter)
	producer := NewKafkaProducerWithWriter(w, "audit-key", nil)
	event := sampleEvent()

	var sent []kafka.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).([]kafka.Message) }).
		Return(nil).Once()

	require.NoError(t, producer.LogEvent(context.Background(), event))
	w.AssertExpectations(t)
	require.Len(t, sent, 1)

	msg := sent[0]
	assert.Equal(t, []byte("alice"), msg.Key)

	var decoded models.AuditEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, "fp-1", decoded.TokenID)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "token_revoke", headers["event_type"])
	assert.True(t, VerifyPayload(msg.Value, headers[SignatureHeader], "audit-key"))
	assert.False(t, VerifyPayload(msg.Value, headers[SignatureHeader], "other-key"))
}

func TestKafkaProducer_WriteFailure(t *testing.T) {
	w := new(mockWriter)
	producer := NewKafkaProducerWithWriter(w, "", nil)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	w.On("Close").Return(nil)

	assert.Error(t, producer.LogEvent(context.Background(), sampleEvent()))
	assert.NoError(t, producer.Close())
}

func TestKafkaProducer_UnsignedHasNoSignatureHeader(t *testing.T) {
	w := new(mockWriter)
	producer := NewKafkaProducerWithWriter(w, "", nil)
	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		for _, h := range msgs[0].Headers {
			if h.Key == SignatureHeader {
				return false
			}
		}
		return true
	})).Return(nil)

	require.NoError(t, producer.LogEvent(context.Background(), sampleEvent()))
	w.AssertExpectations(t)
}

func TestLogAuditor(t *testing.T) {
	atom := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	core, logs := observer.New(atom)
	auditor := NewLogAuditor(monitoring.NewZapLoggerFrom(zap.New(core), atom))

	require.NoError(t, auditor.LogEvent(context.Background(), sampleEvent()))
	failed := sampleEvent()
	failed.Result = constants.AuditResultFailure
	require.NoError(t, auditor.LogEvent(context.Background(), failed.WithReason("bad credentials")))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.InfoLevel, logs.All()[0].Level)
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
	assert.Equal(t, "fp-1", logs.All()[0].ContextMap()["token_fingerprint"])
	assert.Equal(t, "bad credentials", logs.All()[1].ContextMap()["reason"])

	assert.NoError(t, NoopAuditor{}.LogEvent(context.Background(), sampleEvent()))
}

func TestGormAuditService(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	svc := NewGormAuditService(db)
	require.NoError(t, svc.Migrate(context.Background()))

	first := sampleEvent()
	second := sampleEvent()
	second.Timestamp = first.Timestamp.Add(time.Minute)
	require.NoError(t, svc.LogEvent(context.Background(), first))
	require.NoError(t, svc.LogEvent(context.Background(), second))

	recent, err := svc.Recent(context.Background(), "alice", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.EventID, recent[0].EventID)
	assert.Equal(t, "token_revoke", recent[0].EventType)
	require.NotNil(t, recent[0].ExpiresAt)
}
