package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/internal/domain/service/mocks"
	"github.com/turtacn/ssoguard/pkg/constants"
	"github.com/turtacn/ssoguard/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(tokens *mocks.MockTokenService, public []string) *gin.Engine {
	r := gin.New()
	r.Use(RequestContext(), Authenticate(tokens, public, nil))
	handler := func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		fromCtx, _ := PrincipalFromContext(c.Request.Context())
		c.String(http.StatusOK, p.Subject()+"/"+fromCtx.Subject())
	}
	r.GET("/open", handler)
	r.GET("/docs/*any", handler)
	r.GET("/private", RequireAuthenticated(), handler)
	r.GET("/admin", RequireAuthority("ROLE_ADMIN"), handler)
	return r
}

func do(r http.Handler, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate_ValidToken(t *testing.T) {
	tokens := new(mocks.MockTokenService)
	tokens.On("ToPrincipal", mock.Anything, "good").
		Return(models.NewPrincipal("alice", models.NewAuthoritySet("ROLE_USER")), nil)
	r := newAuthRouter(tokens, nil)

	w := do(r, "/private", "Bearer good")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice/alice", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestAuthenticate_MissingHeaderPassesThrough(t *testing.T) {
	tokens := new(mocks.MockTokenService)
	r := newAuthRouter(tokens, nil)

	w := do(r, "/open", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())

	w = do(r, "/open", "Basic YWxpY2U6cHc=")
	assert.Equal(t, "anonymous", w.Body.String())

	w = do(r, "/private", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	tokens.AssertNotCalled(t, "ToPrincipal", mock.Anything, mock.Anything)
}

func TestAuthenticate_InvalidTokenAborts(t *testing.T) {
	tokens := new(mocks.MockTokenService)
	tokens.On("ToPrincipal", mock.Anything, "bad").
		Return(nil, errors.InvalidCredential(errors.ErrSignatureInvalid))
	r := newAuthRouter(tokens, nil)

	w := do(r, "/open", "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), `error="invalid_token"`)

	var body errors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(constants.ErrCodeInvalidToken), body.Error)
	assert.NotContains(t, w.Body.String(), "signature")
}

func TestAuthenticate_StoreOutageIs503(t *testing.T) {
	tokens := new(mocks.MockTokenService)
	tokens.On("ToPrincipal", mock.Anything, "tok").
		Return(nil, errors.ErrStoreUnavailable("redis", assert.AnError))
	r := newAuthRouter(tokens, nil)

	w := do(r, "/open", "Bearer tok")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthenticate_AllowListedPathsSkipValidation(t *testing.T) {
	tokens := new(mocks.MockTokenService)
	r := newAuthRouter(tokens, []string{"/open", "/docs/**"})

	for _, p := range []string{"/open", "/docs/", "/docs/index.html"} {
		w := do(r, p, "Bearer garbage")
		assert.Equal(t, http.StatusOK, w.Code, p)
		assert.Equal(t, "anonymous", w.Body.String(), p)
	}
	tokens.AssertNotCalled(t, "ToPrincipal", mock.Anything, mock.Anything)
}

func TestRequireAuthority(t *testing.T) {
	tokens := new(mocks.MockTokenService)
	tokens.On("ToPrincipal", mock.Anything, "user").
		Return(models.NewPrincipal("bob", models.NewAuthoritySet("ROLE_USER")), nil)
	tokens.On("ToPrincipal", mock.Anything, "admin").
		Return(models.NewPrincipal("carol", models.NewAuthoritySet("ROLE_ADMIN")), nil)
	r := newAuthRouter(tokens, nil)

	assert.Equal(t, http.StatusForbidden, do(r, "/admin", "Bearer user").Code)
	assert.Equal(t, http.StatusOK, do(r, "/admin", "Bearer admin").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/admin", "").Code)
}

func TestPathMatcher(t *testing.T) {
	m := NewPathMatcher([]string{"/health/**", "/auth/token", "/static/*.css", " ", "/bad[", "/**"})
	cases := map[string]bool{
		"/health":         true,
		"/health/live":    true,
		"/healthz":        true,
		"/auth/token":     true,
		"/static/app.css": true,
		"/anything":       true,
	}
	for p, want := range cases {
		assert.Equal(t, want, m.Match(p), p)
	}

	strict := NewPathMatcher([]string{"/health/**", "/static/*.css"})
	assert.False(t, strict.Match("/healthz"))
	assert.False(t, strict.Match("/static/js/app.js"))
	assert.False(t, strict.Match("/auth/userinfo"))
}

func TestRequestContext_ReusesClientRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestContext())
	var seen, ip string
	r.GET("/", func(c *gin.Context) {
		seen, _ = c.Request.Context().Value(constants.ContextKeyRequestID).(string)
		ip, _ = c.Request.Context().Value(constants.ContextKeyClientIP).(string)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	assert.NotEmpty(t, ip)
}

type recordingMetrics struct {
	mu    sync.Mutex
	calls []string
}

func (m *recordingMetrics) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method+" "+path+" "+http.StatusText(status))
}

func TestObservability(t *testing.T) {
	metrics := &recordingMetrics{}
	r := gin.New()
	r.Use(Observability(noop.NewTracerProvider().Tracer("test"), metrics))
	r.GET("/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(r, "/users/42", "")
	do(r, "/missing", "")

	assert.Equal(t, []string{"GET /users/:id OK", "GET not_found Not Found"}, metrics.calls)
}
