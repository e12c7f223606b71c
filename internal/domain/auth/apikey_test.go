package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashKey(t *testing.T) {
	a := HashKey([]byte("pepper"), "secret")
	b := HashKey([]byte("pepper"), "secret")
	c := HashKey([]byte("other"), "secret")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestAPIKeyInfo_HasScope(t *testing.T) {
	k := &APIKeyInfo{Scopes: []string{"read", ScopeAdmin}}
	assert.True(t, k.HasScope(ScopeAdmin))
	assert.False(t, (&APIKeyInfo{}).HasScope(ScopeAdmin))
}
