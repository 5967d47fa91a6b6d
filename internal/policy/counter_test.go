package policy

import (
	"testing"

	"ctxsearch/internal/prefs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromoTapCounter_StartsEnabledAtZero(t *testing.T) {
	store := prefs.NewMemoryStore()
	c, err := LoadPromoTapCounter(store)
	require.NoError(t, err)

	assert.True(t, c.IsEnabled())
	assert.Equal(t, 0, c.Count())
}

func TestPromoTapCounter_DisablePreservesCount(t *testing.T) {
	store := prefs.NewMemoryStore()
	c, err := LoadPromoTapCounter(store)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Increment())
	}
	before := c.Count()

	require.NoError(t, c.Disable())
	assert.False(t, c.IsEnabled())
	assert.Equal(t, before, c.Count())
}

func TestPromoTapCounter_DoubleDisableIsNoop(t *testing.T) {
	store := prefs.NewMemoryStore()
	c, err := LoadPromoTapCounter(store)
	require.NoError(t, err)

	require.NoError(t, c.Increment())
	require.NoError(t, c.Disable())
	require.NoError(t, c.Disable())

	assert.False(t, c.IsEnabled())
	assert.Equal(t, 1, c.Count())

	raw, err := store.GetInt(prefs.KeyPromoTapCounter)
	require.NoError(t, err)
	assert.Equal(t, -2, raw)
}

func TestPromoTapCounter_IncrementWhileDisabledFails(t *testing.T) {
	store := prefs.NewMemoryStore()
	c, err := LoadPromoTapCounter(store)
	require.NoError(t, err)

	require.NoError(t, c.Disable())
	err = c.Increment()
	require.ErrorIs(t, err, ErrCounterDisabled)
	assert.Equal(t, 0, c.Count())
}

func TestPromoTapCounter_DisabledAtZeroIsDistinguishable(t *testing.T) {
	store := prefs.NewMemoryStore()
	c, err := LoadPromoTapCounter(store)
	require.NoError(t, err)
	require.NoError(t, c.Disable())

	// Disabled-at-zero persists as -1, not 0.
	raw, err := store.GetInt(prefs.KeyPromoTapCounter)
	require.NoError(t, err)
	assert.Equal(t, -1, raw)

	reloaded, err := LoadPromoTapCounter(store)
	require.NoError(t, err)
	assert.False(t, reloaded.IsEnabled())
	assert.Equal(t, 0, reloaded.Count())
}

func TestPromoTapCounter_RoundTripThroughStore(t *testing.T) {
	store := prefs.NewMemoryStore()
	c, err := LoadPromoTapCounter(store)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Increment())
	}
	require.NoError(t, c.Disable())

	reloaded, err := LoadPromoTapCounter(store)
	require.NoError(t, err)
	assert.False(t, reloaded.IsEnabled())
	assert.Equal(t, 3, reloaded.Count())
}

func TestPromoTapCounter_Reset(t *testing.T) {
	store := prefs.NewMemoryStore()
	c, err := LoadPromoTapCounter(store)
	require.NoError(t, err)

	require.NoError(t, c.Increment())
	require.NoError(t, c.Disable())
	require.NoError(t, c.Reset())

	assert.True(t, c.IsEnabled())
	assert.Equal(t, 0, c.Count())
}
