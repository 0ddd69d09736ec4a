package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeValue(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
		want  interface{}
	}{
		{"password masked short", "password", "admin", "***"},
		{"token masked long", "access_token", "eyJhbGciOiJIUzI1NiJ9.payload", "eyJh***load"},
		{"non string secret", "signing_secret", []byte("k"), "***REDACTED***"},
		{"fingerprint passes", "token_fingerprint", "0123456789abcdef", "0123456789abcdef"},
		{"identifier passes", "token_id", "abc-123-def-456", "abc-123-def-456"},
		{"plain field", "subject", "alice", "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeValue(tt.key, tt.value))
		})
	}
}

func TestGlobalLoggerIgnoresNil(t *testing.T) {
	before := GetGlobalLogger()
	SetGlobalLogger(nil)
	assert.Equal(t, before, GetGlobalLogger())
}

func TestDomainFields(t *testing.T) {
	fp := Fingerprint("9f86d081884c7d65")
	assert.Equal(t, "token_fingerprint", fp.Key)
	assert.Equal(t, "9f86d081884c7d65", SanitizeValue(fp.Key, fp.Value))

	sub := Subject("alice")
	assert.Equal(t, Field{Key: "subject", Value: "alice"}, sub)
	assert.Nil(t, Error(nil).Value)
}
