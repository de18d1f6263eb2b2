package tenancy

import (
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderOperatorExtractor(t *testing.T) {
	ex := HeaderOperatorExtractor("platform-operator")

	r := httptest.NewRequest("POST", "/api/v1/publish", nil)
	id := ex(r)
	assert.Equal(t, "system", id.Principal)
	assert.False(t, id.Platform)

	r.Header.Set(OperatorHeader, "alice")
	id = ex(r)
	assert.Equal(t, "alice", id.Principal)
	assert.False(t, id.Platform)

	r.Header.Set("X-Role", "Platform-Operator")
	id = ex(r)
	assert.True(t, id.Platform)
}

func TestHeaderOperatorExtractor_NoPlatformRoleConfigured(t *testing.T) {
	ex := HeaderOperatorExtractor("")
	r := httptest.NewRequest("POST", "/api/v1/publish", nil)
	r.Header.Set("X-Role", "platform-operator")
	assert.False(t, ex(r).Platform)
}

// signedToken builds an HS256 token; the extractor runs in trusted proxy
// mode in these tests so the signature is never checked.
func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestJWTOperatorExtractor_TrustedProxy(t *testing.T) {
	ex, err := NewJWTOperatorExtractor(JWTOperatorExtractorConfig{})
	require.NoError(t, err)

	r := httptest.NewRequest("POST", "/api/v1/publish", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{
		"sub":  "alice@example.com",
		"role": "platform-operator",
	}))

	id := ex(r)
	assert.Equal(t, "alice@example.com", id.Principal)
	assert.True(t, id.Platform)
}

func TestJWTOperatorExtractor_NestedRoleClaim(t *testing.T) {
	ex, err := NewJWTOperatorExtractor(JWTOperatorExtractorConfig{
		RoleClaim: "realm_access.roles",
	})
	require.NoError(t, err)

	r := httptest.NewRequest("POST", "/api/v1/publish", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{
		"sub": "bob",
		"realm_access": map[string]any{
			"roles": []any{"user", "platform-operator"},
		},
	}))

	id := ex(r)
	assert.Equal(t, "bob", id.Principal)
	assert.True(t, id.Platform)
}

func TestJWTOperatorExtractor_FallbackToHeader(t *testing.T) {
	ex, err := NewJWTOperatorExtractor(JWTOperatorExtractorConfig{})
	require.NoError(t, err)

	// No token at all.
	r := httptest.NewRequest("POST", "/api/v1/publish", nil)
	r.Header.Set(OperatorHeader, "carol")
	id := ex(r)
	assert.Equal(t, "carol", id.Principal)
	assert.False(t, id.Platform)

	// Garbage token.
	r.Header.Set("Authorization", "Bearer not-a-jwt")
	id = ex(r)
	assert.Equal(t, "carol", id.Principal)
}
