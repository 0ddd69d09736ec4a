package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// LocalClaims is the claim layout of tokens minted by this service. Roles is the flat,
// already-normalized authority list.
// LocalClaims 是本服务签发令牌的声明结构，Roles 为已规范化的扁平权限列表。
type LocalClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// ClaimSet is a verified, decoded claim set of arbitrary shape. External tokens are kept
// in this form because their nested role containers vary between providers.
type ClaimSet map[string]interface{}

// String returns the claim at key when it is a string.
func (c ClaimSet) String(key string) (string, bool) {
	v, ok := c[key].(string)
	return v, ok
}
