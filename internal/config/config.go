// Package config holds the ctxsearch configuration: the search endpoint,
// trial parameters for the policy layer, gesture and selection tunables, and
// ambient settings (preference store path, logging). Configuration is a YAML
// file with environment overrides; a missing file yields defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root ctxsearch configuration.
type Config struct {
	Search    SearchConfig    `yaml:"search"`
	Policy    PolicyConfig    `yaml:"policy"`
	Selection SelectionConfig `yaml:"selection"`
	Gesture   GestureConfig   `yaml:"gesture"`
	Prefs     PrefsConfig     `yaml:"prefs"`
	Browser   BrowserConfig   `yaml:"browser"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SearchConfig describes the search endpoint used to build request URLs.
type SearchConfig struct {
	// BaseURL is the scheme+host of the search service.
	BaseURL string `yaml:"base_url"`
	// SearchPath is the path of a normal-priority search request.
	SearchPath string `yaml:"search_path"`
	// LowPriorityPath replaces SearchPath on the low-priority (prefetch)
	// variant.
	LowPriorityPath string `yaml:"low_priority_path"`
}

// PolicyConfig carries the trial parameters read by the policy evaluator.
// These mirror remotely configured A/B limits, so every field has a server
// default and the whole block may be hot-reloaded at runtime.
type PolicyConfig struct {
	// PromoEnabled gates the opt-in promo flow entirely.
	PromoEnabled bool `yaml:"promo_enabled"`
	// MandatoryPromoEnabled forces the promo before any network-initiating
	// action once MandatoryPromoLimit opens are reached.
	MandatoryPromoEnabled bool `yaml:"mandatory_promo_enabled"`
	MandatoryPromoLimit   int  `yaml:"mandatory_promo_limit"`

	// Tap limits by opt-in state. A negative limit means unlimited.
	TapPrefetchLimitDecided   int `yaml:"tap_prefetch_limit_decided"`
	TapPrefetchLimitUndecided int `yaml:"tap_prefetch_limit_undecided"`
	TapResolveLimitDecided    int `yaml:"tap_resolve_limit_decided"`
	TapResolveLimitUndecided  int `yaml:"tap_resolve_limit_undecided"`

	// PromoTapTriggeredLimit caps how many tap-triggered promos are shown
	// while the user stays undecided. Negative means unlimited.
	PromoTapTriggeredLimit int `yaml:"promo_tap_triggered_limit"`

	// PeekPromoEnabled and PeekPromoMaxShowCount gate the long-press peek
	// promo.
	PeekPromoEnabled      bool `yaml:"peek_promo_enabled"`
	PeekPromoMaxShowCount int  `yaml:"peek_promo_max_show_count"`

	// SuppressionEnabled turns blacklist-based tap suppression on. The
	// blacklist reason is reported either way.
	SuppressionEnabled bool `yaml:"suppression_enabled"`

	// IconAnimationInterval is the minimum time between search provider
	// icon animations.
	IconAnimationInterval time.Duration `yaml:"icon_animation_interval"`
}

// SelectionConfig tunes selection validation and tap handling.
type SelectionConfig struct {
	// MaxLength is the longest selection considered valid, in runes.
	MaxLength int `yaml:"max_length"`
	// InvalidTapDelay is how long to wait for a tap to produce a selection
	// before reporting the tap invalid.
	InvalidTapDelay time.Duration `yaml:"invalid_tap_delay"`
}

// GestureConfig tunes the swipe recognizer. Thresholds are in
// density-independent pixels and converted using PixelsPerDp.
type GestureConfig struct {
	SwipeHorizontalDp float64 `yaml:"swipe_horizontal_dp"`
	SwipeVerticalDp   float64 `yaml:"swipe_vertical_dp"`
	// FlingVelocityDp is the minimum gesture velocity, in dp/second, for a
	// gesture end to count as a fling.
	FlingVelocityDp float64 `yaml:"fling_velocity_dp"`
	PixelsPerDp     float64 `yaml:"pixels_per_dp"`
}

// PrefsConfig locates the preference store.
type PrefsConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// BrowserConfig configures the live-attach CDP event source.
type BrowserConfig struct {
	// DebuggerURL connects to an already running Chromium. Empty launches
	// a new one.
	DebuggerURL         string `yaml:"debugger_url"`
	Bin                 string `yaml:"bin"`
	Headless            bool   `yaml:"headless"`
	ViewportWidth       int    `yaml:"viewport_width"`
	ViewportHeight      int    `yaml:"viewport_height"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
}

// NavigationTimeout returns the navigation timeout with its default.
func (c BrowserConfig) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Development switches to the human-readable development encoder.
	Development bool `yaml:"development"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			BaseURL:         "https://www.google.com",
			SearchPath:      "/search",
			LowPriorityPath: "/s",
		},
		Policy: PolicyConfig{
			PromoEnabled:              true,
			MandatoryPromoEnabled:     false,
			MandatoryPromoLimit:       10,
			TapPrefetchLimitDecided:   -1,
			TapPrefetchLimitUndecided: 10,
			TapResolveLimitDecided:    -1,
			TapResolveLimitUndecided:  10,
			PromoTapTriggeredLimit:    -1,
			PeekPromoEnabled:          false,
			PeekPromoMaxShowCount:     10,
			SuppressionEnabled:        false,
			IconAnimationInterval:     24 * time.Hour,
		},
		Selection: SelectionConfig{
			MaxLength:       100,
			InvalidTapDelay: 50 * time.Millisecond,
		},
		Gesture: GestureConfig{
			SwipeHorizontalDp: 10,
			SwipeVerticalDp:   5,
			FlingVelocityDp:   300,
			PixelsPerDp:       1.0,
		},
		Prefs: PrefsConfig{
			DatabasePath: filepath.Join(".ctxsearch", "prefs.db"),
		},
		Browser: BrowserConfig{
			Headless:            true,
			ViewportWidth:       412,
			ViewportHeight:      915,
			NavigationTimeoutMs: 30000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path. A missing file returns defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file, creating directories as
// needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CTXSEARCH_BASE_URL"); v != "" {
		c.Search.BaseURL = v
	}
	if v := os.Getenv("CTXSEARCH_DB_PATH"); v != "" {
		c.Prefs.DatabasePath = v
	}
	if v := os.Getenv("CTXSEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CTXSEARCH_DEBUGGER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Search.BaseURL)
	if err != nil {
		return fmt.Errorf("search.base_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("search.base_url %q must include scheme and host", c.Search.BaseURL)
	}
	if c.Selection.MaxLength <= 0 {
		return fmt.Errorf("selection.max_length must be positive, got %d", c.Selection.MaxLength)
	}
	if c.Selection.InvalidTapDelay <= 0 {
		return fmt.Errorf("selection.invalid_tap_delay must be positive, got %s", c.Selection.InvalidTapDelay)
	}
	if c.Gesture.PixelsPerDp <= 0 {
		return fmt.Errorf("gesture.pixels_per_dp must be positive, got %g", c.Gesture.PixelsPerDp)
	}
	if c.Gesture.SwipeHorizontalDp <= 0 || c.Gesture.SwipeVerticalDp <= 0 {
		return fmt.Errorf("gesture swipe thresholds must be positive")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}
