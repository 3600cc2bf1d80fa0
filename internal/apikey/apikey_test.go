package apikey

import (
	"strings"
	"testing"

	"github.com/kiranshivaraju/leaselens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	raw, key, err := Generate(" ci-bot ", []string{models.ScopeAdmin})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, Prefix))
	assert.Len(t, raw, len(Prefix)+2*secretBytes)
	assert.Equal(t, raw[:PrefixLen], key.KeyPrefix)
	assert.Equal(t, "ci-bot", key.Name)
	assert.True(t, key.HasScope(models.ScopeAdmin))
	assert.NotContains(t, key.KeyHash, raw)
	assert.True(t, Matches(key, raw))
	assert.False(t, Matches(key, raw+"x"))
}

func TestGenerate_Unique(t *testing.T) {
	a, _, err := Generate("a", nil)
	require.NoError(t, err)
	b, kb, err := Generate("b", nil)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotNil(t, kb.Scopes)
}

func TestGenerate_EmptyName(t *testing.T) {
	_, _, err := Generate("  ", nil)
	assert.ErrorIs(t, err, ErrEmptyName)
}
