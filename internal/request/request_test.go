package request

import (
	"testing"

	"ctxsearch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchConfig() config.SearchConfig {
	return config.SearchConfig{
		BaseURL:         "https://www.google.com",
		SearchPath:      "/search",
		LowPriorityPath: "/s",
	}
}

func TestNew_NormalPriorityOnly(t *testing.T) {
	r, err := New(searchConfig(), "cat", "", "", false)
	require.NoError(t, err)

	assert.False(t, r.IsUsingLowPriority())
	assert.False(t, r.WasPrefetch())

	u := r.SearchURL()
	require.NotNil(t, u)
	assert.Equal(t, "/search", u.Path)
	assert.Equal(t, "cat", u.Query().Get("q"))
	assert.Empty(t, u.Query().Get("sns"))
}

func TestNew_LowPriorityVariant(t *testing.T) {
	r, err := New(searchConfig(), "cat", "feline", "/m/01yrx", true)
	require.NoError(t, err)

	assert.True(t, r.IsUsingLowPriority())
	assert.True(t, r.WasPrefetch())

	low := r.SearchURL()
	assert.Equal(t, "/s", low.Path)
	assert.Equal(t, "1", low.Query().Get("sns"))
	assert.Equal(t, "cat", low.Query().Get("q"))
	assert.Equal(t, "feline", low.Query().Get("ctxsl_alternate_term"))
	assert.Equal(t, "/m/01yrx", low.Query().Get("kgmid"))

	r.SetNormalPriority()
	assert.False(t, r.IsUsingLowPriority())
	normal := r.SearchURL()
	assert.Equal(t, "/search", normal.Path)
	assert.Empty(t, normal.Query().Get("sns"))
	// The knowledge ID survives on the normal variant too.
	assert.Equal(t, "/m/01yrx", normal.Query().Get("kgmid"))

	// One-directional and idempotent.
	r.SetNormalPriority()
	assert.False(t, r.IsUsingLowPriority())
	// WasPrefetch is immutable after construction.
	assert.True(t, r.WasPrefetch())
}

func TestRequest_HasFailedIsOneShotFlag(t *testing.T) {
	r, err := New(searchConfig(), "cat", "", "", true)
	require.NoError(t, err)

	assert.False(t, r.HasFailed())
	r.SetHasFailed()
	assert.True(t, r.HasFailed())
	// No automatic priority switch: the caller decides.
	assert.True(t, r.IsUsingLowPriority())
}

func TestRequest_ForceTranslation(t *testing.T) {
	r, err := New(searchConfig(), "gato", "", "", true)
	require.NoError(t, err)

	r.ForceTranslation("es", "en")
	assert.True(t, r.IsTranslationForced())

	low := r.SearchURL()
	assert.Equal(t, "es", low.Query().Get("tlitesl"))
	assert.Equal(t, "en", low.Query().Get("tlitetl"))

	r.SetNormalPriority()
	normal := r.SearchURL()
	assert.Equal(t, "es", normal.Query().Get("tlitesl"))
	assert.Equal(t, "en", normal.Query().Get("tlitetl"))
}

func TestRequest_ForceTranslationAutoDetect(t *testing.T) {
	r, err := New(searchConfig(), "gato", "", "", false)
	require.NoError(t, err)

	r.ForceTranslation("", "en")
	u := r.SearchURL()
	// The parameter is present but empty: auto-detect.
	q, has := u.Query()["tlitesl"]
	require.True(t, has)
	require.Len(t, q, 1)
	assert.Equal(t, "", q[0])
}

func TestNew_EmptyTermRejected(t *testing.T) {
	_, err := New(searchConfig(), "", "", "", false)
	require.Error(t, err)
}

func TestNew_BadBaseURLRejected(t *testing.T) {
	cfg := searchConfig()
	cfg.BaseURL = "://bad"
	_, err := New(cfg, "cat", "", "", false)
	require.Error(t, err)
}
