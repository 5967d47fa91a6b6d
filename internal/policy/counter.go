package policy

import (
	"errors"
	"fmt"

	"ctxsearch/internal/prefs"
)

// ErrCounterDisabled is returned when incrementing a disabled counter;
// callers are expected to check IsEnabled first, so hitting this is a
// programming error.
var ErrCounterDisabled = errors.New("promo tap counter is disabled")

// PromoTapCounter counts tap-triggered promo views. Once the promo outcome
// is settled the counter is disabled; the count at that moment stays
// readable but can no longer grow. Re-enabling is not supported: a fresh
// counter always starts enabled at zero.
//
// The persisted form is one signed integer: values >= 0 are the live count,
// negative values encode "disabled with count -1-value". Biasing by -1
// keeps "disabled at count 0" (-1) distinct from "enabled at count 0" (0).
// In memory the two facets are explicit fields; the biased encoding exists
// only at the preference-store boundary.
type PromoTapCounter struct {
	store   prefs.Store
	enabled bool
	count   int
}

// LoadPromoTapCounter reads the counter from the store. A missing entry is
// an enabled counter at zero.
func LoadPromoTapCounter(store prefs.Store) (*PromoTapCounter, error) {
	raw, err := store.GetInt(prefs.KeyPromoTapCounter)
	if err != nil {
		return nil, fmt.Errorf("load promo tap counter: %w", err)
	}
	c := &PromoTapCounter{store: store}
	if raw >= 0 {
		c.enabled = true
		c.count = raw
	} else {
		c.enabled = false
		c.count = -1 - raw
	}
	return c, nil
}

// IsEnabled reports whether the counter still accepts increments.
func (c *PromoTapCounter) IsEnabled() bool { return c.enabled }

// Count returns the current count. It is valid whether or not the counter
// is enabled.
func (c *PromoTapCounter) Count() int { return c.count }

// Increment bumps the count. Incrementing a disabled counter returns
// ErrCounterDisabled and leaves the state untouched.
func (c *PromoTapCounter) Increment() error {
	if !c.enabled {
		return ErrCounterDisabled
	}
	c.count++
	return c.persist()
}

// Disable freezes the counter at its current count. Disabling twice is a
// no-op.
func (c *PromoTapCounter) Disable() error {
	if !c.enabled {
		return nil
	}
	c.enabled = false
	return c.persist()
}

// Reset returns the counter to enabled-at-zero. Intended for tests and the
// prefs maintenance command.
func (c *PromoTapCounter) Reset() error {
	c.enabled = true
	c.count = 0
	return c.persist()
}

func (c *PromoTapCounter) persist() error {
	encoded := c.count
	if !c.enabled {
		encoded = -1 - c.count
	}
	if err := c.store.SetInt(prefs.KeyPromoTapCounter, encoded); err != nil {
		return fmt.Errorf("persist promo tap counter: %w", err)
	}
	return nil
}
