// Package dto provides data transfer objects for the application layer.
package dto

import (
	"github.com/turtacn/ssoguard/internal/domain/models"
)

// LoginRequest 用户名密码登录请求 DTO
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=1024"`
}

// TokenRequest carries a token submitted as JSON. Handlers also accept the raw token as
// the whole request body.
type TokenRequest struct {
	Token string `json:"token"`
}

// TokenResponse 令牌响应 DTO. RefreshToken is always present and null; the access token
// itself is presented to /auth/refresh.
type TokenResponse struct {
	AccessToken  string  `json:"accessToken"`
	RefreshToken *string `json:"refreshToken"`
	TokenType    string  `json:"tokenType"`
	ExpiresIn    int64   `json:"expiresIn"`
}

// NewTokenResponse builds the bundle for a freshly minted token. expiresIn is measured
// from the token's own issue time, so it reports the configured lifetime.
func NewTokenResponse(token *models.Token) *TokenResponse {
	return &TokenResponse{
		AccessToken: token.Value,
		TokenType:   string(token.TokenType()),
		ExpiresIn:   token.ExpiresIn(token.IssuedAt),
	}
}

// IntrospectionResponse 令牌内省响应 DTO
type IntrospectionResponse struct {
	Active                bool    `json:"active"`
	Subject               *string `json:"subject"`
	ExpiresAtEpochSeconds int64   `json:"expiresAtEpochSeconds"`
}

// NewIntrospectionResponse converts the domain result.
func NewIntrospectionResponse(in models.Introspection) *IntrospectionResponse {
	return &IntrospectionResponse{
		Active:                in.Active,
		Subject:               in.Subject,
		ExpiresAtEpochSeconds: in.ExpiresAtEpochSeconds,
	}
}

// UserInfoResponse 当前用户信息 DTO
type UserInfoResponse struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// NewUserInfoResponse describes principal.
func NewUserInfoResponse(principal *models.Principal) *UserInfoResponse {
	return &UserInfoResponse{
		Username: principal.Subject(),
		Roles:    principal.AuthorityNames(),
	}
}
