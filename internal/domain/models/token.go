// Package models defines the domain models for the ssoguard token service.
// This file contains the Token domain model with its lifecycle helpers.
package models

import (
	"time"

	"github.com/turtacn/ssoguard/pkg/constants"
)

// Token is a signed, immutable bearer credential together with the claims it was
// minted with. Refresh never mutates a Token; it produces a new one.
// Token 是一个已签名且不可变的 Bearer 凭证，以及签发时携带的声明。
// 刷新不会修改 Token，而是生成一个新的 Token。
type Token struct {
	// Value is the compact serialized JWT.
	// Value 是紧凑序列化后的 JWT 字符串。
	Value string `json:"-"`

	// ID is the "jti" claim. Two tokens issued in the same second for the same subject
	// still differ by ID.
	// ID 是 "jti" 声明，保证同一秒内为同一主体签发的令牌互不相同。
	ID string `json:"jti"`

	// Subject is the principal name the token was issued to.
	// Subject 是令牌所属的主体名称。
	Subject string `json:"sub"`

	// Issuer identifies the minting authority.
	// Issuer 标识签发方。
	Issuer string `json:"iss"`

	// IssuedAt is the second-precision issuance time.
	// IssuedAt 是秒级精度的签发时间。
	IssuedAt time.Time `json:"iat"`

	// ExpiresAt is the second-precision expiry. The token is invalid when now >= ExpiresAt.
	// ExpiresAt 是秒级精度的过期时间，当 now >= ExpiresAt 时令牌失效。
	ExpiresAt time.Time `json:"exp"`

	// Roles holds the authorities embedded in a locally issued token.
	// Roles 保存本地签发令牌中嵌入的权限。
	Roles []string `json:"roles"`
}

// ExpiresIn returns the whole seconds left at now, never negative.
func (t *Token) ExpiresIn(now time.Time) int64 {
	secs := int64(t.ExpiresAt.Sub(now) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// IsExpiredAt reports whether the token has expired at now.
func (t *Token) IsExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenType is always Bearer for tokens produced by this service.
func (t *Token) TokenType() constants.TokenType {
	return constants.TokenTypeBearer
}

// Introspection is the result of inspecting an arbitrary token string. It is never an
// error: any failure yields the inactive value.
// Introspection 是对任意令牌字符串的内省结果，不会返回错误：任何失败都得到非活动值。
type Introspection struct {
	Active                bool    `json:"active"`
	Subject               *string `json:"subject"`
	ExpiresAtEpochSeconds int64   `json:"expiresAtEpochSeconds"`
}

// InactiveIntrospection is {active:false, subject:null, exp:0}.
func InactiveIntrospection() Introspection {
	return Introspection{}
}

// ActiveIntrospection builds the result for a valid token.
func ActiveIntrospection(subject string, expiresAt time.Time) Introspection {
	return Introspection{
		Active:                true,
		Subject:               &subject,
		ExpiresAtEpochSeconds: expiresAt.Unix(),
	}
}

// RevocationRecord is a revoked token identifier with the time it was revoked. ExpiresAt
// is the token's natural expiry when known and is used only to purge stale records.
type RevocationRecord struct {
	TokenID   string
	RevokedAt time.Time
	ExpiresAt time.Time
}

// Retainable reports whether the record can still matter at now. Records with an unknown
// expiry are always retained.
func (r RevocationRecord) Retainable(now time.Time) bool {
	return r.ExpiresAt.IsZero() || now.Before(r.ExpiresAt)
}
