package service

import (
	"fmt"
	"strings"

	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/pkg/constants"
)

// ================================================================================
// Local claim source
// ================================================================================

// LocalClaimSource reads tokens minted by this service. The roles claim already holds
// final authority strings and is copied without transformation.
type LocalClaimSource struct{}

// NewLocalClaimSource returns the claim source for locally issued tokens.
func NewLocalClaimSource() *LocalClaimSource {
	return &LocalClaimSource{}
}

// PrincipalName returns the sub claim.
func (LocalClaimSource) PrincipalName(claims models.ClaimSet) string {
	return claimString(claims[constants.ClaimKeySubject])
}

// Authorities copies the roles claim verbatim.
func (LocalClaimSource) Authorities(claims models.ClaimSet) models.AuthoritySet {
	set := models.NewAuthoritySet()
	for _, role := range claimList(claims[constants.ClaimKeyRoles]) {
		set.Add(role)
	}
	return set
}

// ================================================================================
// External claim source
// ================================================================================

// ExternalClaimSource reads tokens minted by an external identity provider. Authorities
// are the union of SCOPE_ entries from scope, ROLE_ entries from realm_access.roles and
// ROLE_ entries from resource_access[ResourceID].roles.
// ExternalClaimSource 解析外部身份提供方签发的令牌，权限为 scope、realm_access
// 与 resource_access[ResourceID] 三者的并集。
type ExternalClaimSource struct {
	principalAttribute string
	resourceID         string
}

// NewExternalClaimSource creates the external claim source. An empty principalAttribute
// falls back to sub. An empty resourceID disables resource-scoped roles.
func NewExternalClaimSource(principalAttribute, resourceID string) *ExternalClaimSource {
	if principalAttribute == "" {
		principalAttribute = constants.DefaultPrincipalAttribute
	}
	return &ExternalClaimSource{principalAttribute: principalAttribute, resourceID: resourceID}
}

// PrincipalName returns the configured principal claim.
func (s *ExternalClaimSource) PrincipalName(claims models.ClaimSet) string {
	return claimString(claims[s.principalAttribute])
}

// Authorities unions the three extraction rules.
func (s *ExternalClaimSource) Authorities(claims models.ClaimSet) models.AuthoritySet {
	set := models.NewAuthoritySet()
	set.Union(scopeAuthorities(claims))
	set.Union(realmAuthorities(claims))
	set.Union(s.resourceAuthorities(claims))
	return set
}

func scopeAuthorities(claims models.ClaimSet) models.AuthoritySet {
	set := models.NewAuthoritySet()
	var entries []string
	switch v := claims[constants.ClaimKeyScope].(type) {
	case string:
		entries = strings.Fields(v)
	default:
		entries = claimList(v)
	}
	for _, e := range entries {
		set.Add(constants.AuthorityPrefixScope + e)
	}
	return set
}

func realmAuthorities(claims models.ClaimSet) models.AuthoritySet {
	realm, ok := claimMap(claims[constants.ClaimKeyRealmAccess])
	if !ok {
		return models.NewAuthoritySet()
	}
	return prefixed(constants.AuthorityPrefixRole, claimList(realm[constants.ClaimKeyNestedRoles]))
}

func (s *ExternalClaimSource) resourceAuthorities(claims models.ClaimSet) models.AuthoritySet {
	if s.resourceID == "" {
		return models.NewAuthoritySet()
	}
	resources, ok := claimMap(claims[constants.ClaimKeyResourceAccess])
	if !ok {
		return models.NewAuthoritySet()
	}
	resource, ok := claimMap(resources[s.resourceID])
	if !ok {
		return models.NewAuthoritySet()
	}
	return prefixed(constants.AuthorityPrefixRole, claimList(resource[constants.ClaimKeyNestedRoles]))
}

func prefixed(prefix string, entries []string) models.AuthoritySet {
	set := models.NewAuthoritySet()
	for _, e := range entries {
		set.Add(prefix + e)
	}
	return set
}

// ================================================================================
// Claim shape helpers
// ================================================================================

// claimString stringifies a scalar claim. Absent, null and container values yield "".
func claimString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]interface{}, []interface{}:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// claimList returns the string form of each non-empty entry of a list claim. Nested
// lists and maps inside the list are kept in their fmt form. Anything that is not a
// list yields nil.
func claimList(v interface{}) []string {
	var raw []interface{}
	switch t := v.(type) {
	case []interface{}:
		raw = t
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item == nil {
			continue
		}
		if s := fmt.Sprint(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func claimMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case models.ClaimSet:
		return t, true
	default:
		return nil, false
	}
}
