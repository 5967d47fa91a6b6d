package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Search.BaseURL != "https://www.google.com" {
		t.Errorf("expected default base URL, got %s", cfg.Search.BaseURL)
	}
	if cfg.Selection.MaxLength != 100 {
		t.Errorf("expected MaxLength=100, got %d", cfg.Selection.MaxLength)
	}
	if cfg.Selection.InvalidTapDelay != 50*time.Millisecond {
		t.Errorf("expected InvalidTapDelay=50ms, got %s", cfg.Selection.InvalidTapDelay)
	}
	if cfg.Gesture.SwipeHorizontalDp != 10 || cfg.Gesture.SwipeVerticalDp != 5 {
		t.Errorf("unexpected swipe thresholds: %+v", cfg.Gesture)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Policy.TapResolveLimitUndecided = 3
	cfg.Search.BaseURL = "https://search.example.org"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Policy.TapResolveLimitUndecided != 3 {
		t.Errorf("expected TapResolveLimitUndecided=3, got %d", loaded.Policy.TapResolveLimitUndecided)
	}
	if loaded.Search.BaseURL != "https://search.example.org" {
		t.Errorf("expected overridden base URL, got %s", loaded.Search.BaseURL)
	}
	// Untouched fields keep defaults.
	if loaded.Selection.MaxLength != 100 {
		t.Errorf("expected MaxLength default, got %d", loaded.Selection.MaxLength)
	}

	// A second round trip is lossless.
	path2 := filepath.Join(tmpDir, "config2.yaml")
	if err := loaded.Save(path2); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	reloaded, err := Load(path2)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(loaded, reloaded); diff != "" {
		t.Errorf("config changed across save/load (-first +second):\n%s", diff)
	}
}

func TestConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Search.BaseURL != DefaultConfig().Search.BaseURL {
		t.Errorf("expected defaults for missing file")
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	os.Setenv("CTXSEARCH_BASE_URL", "https://env.example.com")
	defer os.Unsetenv("CTXSEARCH_BASE_URL")
	os.Setenv("CTXSEARCH_LOG_LEVEL", "debug")
	defer os.Unsetenv("CTXSEARCH_LOG_LEVEL")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Search.BaseURL != "https://env.example.com" {
		t.Errorf("expected env base URL, got %s", cfg.Search.BaseURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env log level, got %s", cfg.Logging.Level)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()

	cfg.Search.BaseURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for bad base URL")
	}

	cfg = DefaultConfig()
	cfg.Selection.MaxLength = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero max length")
	}

	cfg = DefaultConfig()
	cfg.Gesture.PixelsPerDp = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero density")
	}

	cfg = DefaultConfig()
	cfg.Logging.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for bad log level")
	}
}
