package policy

import (
	"path/filepath"
	"testing"
	"time"

	"ctxsearch/internal/config"

	"github.com/stretchr/testify/require"
)

func TestStaticParams(t *testing.T) {
	p := defaultParams()
	p.TapResolveLimitUndecided = 7

	src := StaticParams(p)
	require.Equal(t, 7, src.Params().TapResolveLimitUndecided)
}

func TestFileParams_LoadsInitialValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.DefaultConfig()
	cfg.Policy.TapResolveLimitUndecided = 4
	require.NoError(t, cfg.Save(path))

	src, err := NewFileParams(path, nil)
	require.NoError(t, err)
	defer src.Close()

	require.Equal(t, 4, src.Params().TapResolveLimitUndecided)
}

func TestFileParams_MissingFileServesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	src, err := NewFileParams(path, nil)
	require.NoError(t, err)
	defer src.Close()

	require.Equal(t, config.DefaultConfig().Policy, src.Params())
}

func TestFileParams_HotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.DefaultConfig()
	cfg.Policy.TapResolveLimitUndecided = 4
	require.NoError(t, cfg.Save(path))

	src, err := NewFileParams(path, nil)
	require.NoError(t, err)
	defer src.Close()

	cfg.Policy.TapResolveLimitUndecided = 9
	require.NoError(t, cfg.Save(path))

	require.Eventually(t, func() bool {
		return src.Params().TapResolveLimitUndecided == 9
	}, 5*time.Second, 50*time.Millisecond)
}
