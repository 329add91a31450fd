package fake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/matchlist/internal/registry"
)

func TestGenerateData(t *testing.T) {
	reg := registry.New(registry.Options{})

	require.Equal(t, 25, GenerateData(reg, 25))

	listing := reg.List()
	assert.Equal(t, 25, listing.Count)
	for _, m := range listing.Matches {
		assert.NotEmpty(t, m.HostName)
		assert.NotEmpty(t, m.Map)
		assert.GreaterOrEqual(t, m.ProxyPort, 7000)
		assert.Less(t, m.ProxyPort, 8000)
		assert.Contains(t, []int{2, 4, 8, 10, 16}, m.MaxPlayers)
		assert.True(t, m.Recent)
		assert.Equal(t, int64(0), m.AgeMinutes)
	}
}

func TestGenerateDataZero(t *testing.T) {
	reg := registry.New(registry.Options{})

	assert.Equal(t, 0, GenerateData(reg, 0))
	assert.Equal(t, 0, reg.Stats().Total)
}
