package models

import (
	"sort"
)

// AuthoritySet is a deduplicated set of normalized authority strings such as ROLE_ADMIN
// or SCOPE_read. Authorities are case preserved and order is irrelevant.
type AuthoritySet map[string]struct{}

// NewAuthoritySet builds a set from the given authorities, skipping empty strings.
func NewAuthoritySet(authorities ...string) AuthoritySet {
	s := make(AuthoritySet, len(authorities))
	s.Add(authorities...)
	return s
}

// Add inserts authorities into the set.
func (s AuthoritySet) Add(authorities ...string) {
	for _, a := range authorities {
		if a != "" {
			s[a] = struct{}{}
		}
	}
}

// Union adds every member of other.
func (s AuthoritySet) Union(other AuthoritySet) {
	for a := range other {
		s[a] = struct{}{}
	}
}

// Has reports whether authority is a member.
func (s AuthoritySet) Has(authority string) bool {
	_, ok := s[authority]
	return ok
}

// Len returns the number of members.
func (s AuthoritySet) Len() int {
	return len(s)
}

// Slice returns the members sorted, for stable serialization.
func (s AuthoritySet) Slice() []string {
	out := make([]string, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold the same members.
func (s AuthoritySet) Equal(other AuthoritySet) bool {
	if len(s) != len(other) {
		return false
	}
	for a := range s {
		if !other.Has(a) {
			return false
		}
	}
	return true
}

// Principal is the authenticated identity attached to a request. It is built per
// successful authentication and never mutated afterwards.
type Principal struct {
	subject     string
	authorities AuthoritySet
}

// NewPrincipal copies authorities so later changes by the caller cannot leak in.
func NewPrincipal(subject string, authorities AuthoritySet) *Principal {
	cp := make(AuthoritySet, len(authorities))
	cp.Union(authorities)
	return &Principal{subject: subject, authorities: cp}
}

// Subject returns the principal name.
func (p *Principal) Subject() string {
	return p.subject
}

// Authorities returns a copy of the principal's authorities.
func (p *Principal) Authorities() AuthoritySet {
	cp := make(AuthoritySet, len(p.authorities))
	cp.Union(p.authorities)
	return cp
}

// HasAuthority reports whether the principal holds authority.
func (p *Principal) HasAuthority(authority string) bool {
	return p.authorities.Has(authority)
}

// AuthorityNames returns the authorities sorted.
func (p *Principal) AuthorityNames() []string {
	return p.authorities.Slice()
}
