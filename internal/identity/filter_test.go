package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFilter_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := NewFilter([]string{"["})
	assert.Error(t, err)
}

func TestIsBot_CaseInsensitive(t *testing.T) {
	t.Parallel()

	f, err := NewFilter([]string{`bot$`, `^renovate`})
	require.NoError(t, err)

	assert.True(t, f.IsBot("dependabot"))
	assert.True(t, f.IsBot("DependaBOT"))
	assert.True(t, f.IsBot("Renovate Bot"))
	assert.False(t, f.IsBot("alice"))
	assert.False(t, f.IsBot("botanist"))
}

func TestIsBot_InlineFlagsRespected(t *testing.T) {
	t.Parallel()

	// A pattern carrying its own flag group is compiled as-is.
	f, err := NewFilter([]string{`(?-i:CI)$`})
	require.NoError(t, err)

	assert.True(t, f.IsBot("team-CI"))
	assert.False(t, f.IsBot("team-ci"))
}

func TestIsBot_EmptyFilterMatchesNobody(t *testing.T) {
	t.Parallel()

	f, err := NewFilter(nil)
	require.NoError(t, err)
	assert.False(t, f.IsBot("anything"))

	f, err = NewFilter([]string{""})
	require.NoError(t, err)
	assert.False(t, f.IsBot("anything"))
}
