package prefs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	store, err := OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()

	// Missing keys read as zero.
	v, err := store.GetInt(KeyTapCount)
	require.NoError(t, err)
	require.Equal(t, 0, v)

	require.NoError(t, store.SetInt(KeyTapCount, 7))
	v, err = store.GetInt(KeyTapCount)
	require.NoError(t, err)
	require.Equal(t, 7, v)

	// Overwrite.
	require.NoError(t, store.SetInt(KeyTapCount, 3))
	v, err = store.GetInt(KeyTapCount)
	require.NoError(t, err)
	require.Equal(t, 3, v)

	require.NoError(t, store.SetInt64(KeyLastAnimationTime, 1234567890123))
	ts, err := store.GetInt64(KeyLastAnimationTime)
	require.NoError(t, err)
	require.Equal(t, int64(1234567890123), ts)

	require.NoError(t, store.Delete(KeyTapCount))
	v, err = store.GetInt(KeyTapCount)
	require.NoError(t, err)
	require.Equal(t, 0, v)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.SetInt(KeyPromoOpenCount, 2))
	require.NoError(t, store.Close())

	store, err = OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()

	v, err := store.GetInt(KeyPromoOpenCount)
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestUserState(t *testing.T) {
	store := NewMemoryStore()

	state, err := UserStateOf(store)
	require.NoError(t, err)
	require.Equal(t, UserUndecided, state)

	require.NoError(t, SetUserState(store, UserEnabled))
	state, err = UserStateOf(store)
	require.NoError(t, err)
	require.Equal(t, UserEnabled, state)

	require.NoError(t, SetUserState(store, UserDisabled))
	state, err = UserStateOf(store)
	require.NoError(t, err)
	require.Equal(t, UserDisabled, state)

	// Garbage values decode as undecided.
	require.NoError(t, store.SetInt(KeyUserState, 42))
	state, err = UserStateOf(store)
	require.NoError(t, err)
	require.Equal(t, UserUndecided, state)
}
