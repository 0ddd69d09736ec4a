// Package handlers contains the gin handlers of the HTTP surface.
package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ssoguard/internal/application/dto"
	"github.com/turtacn/ssoguard/internal/application/service"
	"github.com/turtacn/ssoguard/internal/interfaces/http/middleware"
	"github.com/turtacn/ssoguard/pkg/errors"
	"github.com/turtacn/ssoguard/pkg/logger"
)

// maxTokenBody bounds the body of refresh, introspect and logout requests.
const maxTokenBody = 16 << 10

// AuthHandler handles the /auth routes.
type AuthHandler struct {
	authService service.AuthAppService
	logger      logger.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthAppService, log logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &AuthHandler{
		authService: authService,
		logger:      log.WithComponent("auth_handler"),
	}
}

// Login handles POST /auth/token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.SendError(c, errors.ErrInvalidRequest("request body must be {\"username\", \"password\"}").WithCause(err))
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, result)
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, err := readToken(c)
	if err != nil {
		dto.SendError(c, err)
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), token)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, result)
}

// Introspect handles POST /auth/introspect. Any body that is not a usable token,
// including an unreadable one, is reported as inactive.
func (h *AuthHandler) Introspect(c *gin.Context) {
	token, err := readToken(c)
	if err != nil {
		h.logger.Debug(c.Request.Context(), "unreadable introspection body", logger.Error(err))
		token = ""
	}
	dto.SendSuccess(c, http.StatusOK, h.authService.Introspect(c.Request.Context(), token))
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	token, err := readToken(c)
	if err != nil {
		dto.SendError(c, err)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		dto.SendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UserInfo handles GET /auth/userinfo.
func (h *AuthHandler) UserInfo(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	result, err := h.authService.UserInfo(c.Request.Context(), principal)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, result)
}

// readToken accepts either {"token": "..."} or the raw token as the whole body.
func readToken(c *gin.Context) (string, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTokenBody+1))
	if err != nil {
		return "", errors.ErrInvalidRequest("unable to read request body").WithCause(err)
	}
	if len(body) > maxTokenBody {
		return "", errors.ErrInvalidRequest("request body too large")
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var req dto.TokenRequest
		if err := json.Unmarshal(trimmed, &req); err != nil {
			return "", errors.ErrInvalidRequest("malformed JSON body").WithCause(err)
		}
		return req.Token, nil
	}
	return string(trimmed), nil
}
