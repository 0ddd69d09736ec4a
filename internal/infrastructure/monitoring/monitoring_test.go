package monitoring

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/ssoguard/internal/config"
	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/logger"
)

func TestZapLogger_LevelAndSanitizing(t *testing.T) {
	atom := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	core, logs := observer.New(atom)
	log := NewZapLoggerFrom(zap.New(core), atom)

	ctx := context.WithValue(context.Background(), constants.ContextKeyRequestID, "req-1")
	log.Debug(ctx, "hidden")
	log.Info(ctx, "login",
		logger.String("password", "hunter2hunter2"),
		logger.String("token_fingerprint", "abcdef0123456789"),
	)
	require.Equal(t, 1, logs.Len())

	entry := logs.All()[0]
	fields := entry.ContextMap()
	assert.Equal(t, "hunt***ter2", fields["password"])
	assert.Equal(t, "abcdef0123456789", fields["token_fingerprint"])
	assert.Equal(t, "req-1", fields["request_id"])

	child := log.WithComponent("token_service")
	child.SetLevel(constants.LogLevelDebug)
	assert.Equal(t, constants.LogLevelDebug, log.GetLevel(), "level is shared with derived loggers")
	log.Debug(ctx, "visible")
	assert.Equal(t, 2, logs.Len())

	log.Error(ctx, "boom", errors.New("bad"))
	assert.Equal(t, "bad", logs.All()[2].ContextMap()["error"])
}

func TestNewZapLogger(t *testing.T) {
	log, err := NewZapLogger(config.LogConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)
	assert.Equal(t, constants.LogLevelWarn, log.GetLevel())

	log.SetLevel("nonsense")
	assert.Equal(t, constants.LogLevelWarn, log.GetLevel())
}

func TestMetrics_Exposition(t *testing.T) {
	m := NewMetrics()
	m.RecordTokenIssue("password", true, 10*time.Millisecond)
	m.RecordTokenVerify(false, "expired")
	m.RecordTokenRevoke("logout")
	m.RecordRevocationSweep("memory", 3)
	m.ObserveHTTPRequest("POST", "/auth/token", 200, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenIssueRequests.WithLabelValues("password", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenVerifications.WithLabelValues("failure", "expired")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RevocationSweeps.WithLabelValues("memory")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "ssoguard_token_revocations_total"))
	assert.True(t, strings.Contains(body, "ssoguard_http_requests_total"))

	// a second instance registers independently
	assert.NotPanics(t, func() { NewMetrics() })
}

func TestTracingManager_Disabled(t *testing.T) {
	tm, err := NewTracingManager(config.TracingConfig{}, nil)
	require.NoError(t, err)

	_, span := tm.Tracer().Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsSampled())
	span.End()
	assert.NoError(t, tm.Shutdown(context.Background()))
}
