// Package policy decides when contextual search may touch the network or
// show promos. Decisions combine the user's opt-in state, trial parameters
// (re-read on every evaluation), and the persisted usage counters. The
// functions here hold no hidden state beyond those counters.
package policy

import (
	"fmt"
	"net/url"
	"time"

	"ctxsearch/internal/prefs"
	"ctxsearch/internal/selection"

	"go.uber.org/zap"
)

// Evaluator answers the gating questions for one feature session.
type Evaluator struct {
	store   prefs.Store
	src     ParamSource
	counter *PromoTapCounter
	log     *zap.Logger

	// now is the clock, replaceable in tests.
	now func() time.Time
	// networkPrediction mirrors the platform privacy setting that allows
	// speculative network use.
	networkPrediction func() bool
}

// NewEvaluator builds an evaluator over the given store and parameter
// source.
func NewEvaluator(store prefs.Store, src ParamSource, counter *PromoTapCounter, log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{
		store:             store,
		src:               src,
		counter:           counter,
		log:               log.Named("policy"),
		now:               time.Now,
		networkPrediction: func() bool { return true },
	}
}

// SetClock replaces the evaluator's clock. Tests only.
func (e *Evaluator) SetClock(now func() time.Time) { e.now = now }

// SetNetworkPrediction installs the platform's network-prediction setting
// lookup.
func (e *Evaluator) SetNetworkPrediction(enabled func() bool) {
	e.networkPrediction = enabled
}

// Counter exposes the promo tap counter.
func (e *Evaluator) Counter() *PromoTapCounter { return e.counter }

// IsUserUndecided reports whether the user has not settled the opt-in
// preference.
func (e *Evaluator) IsUserUndecided() (bool, error) {
	state, err := prefs.UserStateOf(e.store)
	if err != nil {
		return false, err
	}
	return state == prefs.UserUndecided, nil
}

// IsPromoAvailable reports whether the opt-in promo may still be shown.
func (e *Evaluator) IsPromoAvailable() (bool, error) {
	undecided, err := e.IsUserUndecided()
	if err != nil {
		return false, err
	}
	return undecided && e.src.Params().PromoEnabled, nil
}

// IsMandatoryPromoAvailable reports whether the promo has become mandatory:
// after enough opens while undecided, every network-initiating decision is
// blocked until the user decides.
func (e *Evaluator) IsMandatoryPromoAvailable() (bool, error) {
	p := e.src.Params()
	if !p.MandatoryPromoEnabled {
		return false, nil
	}
	available, err := e.IsPromoAvailable()
	if err != nil || !available {
		return false, err
	}
	opens, err := e.store.GetInt(prefs.KeyPromoOpenCount)
	if err != nil {
		return false, err
	}
	return opens >= p.MandatoryPromoLimit, nil
}

// ShouldPrefetch reports whether the search result may be speculatively
// loaded for the current selection. Only tap-originated selections
// prefetch, and the mandatory promo blocks it outright.
func (e *Evaluator) ShouldPrefetch(selectionType selection.Type) (bool, error) {
	if mandatory, err := e.IsMandatoryPromoAvailable(); err != nil || mandatory {
		return false, err
	}
	if !e.networkPrediction() {
		return false, nil
	}
	if selectionType != selection.TypeTap {
		return false, nil
	}

	p := e.src.Params()
	limit, err := e.pickLimit(p.TapPrefetchLimitDecided, p.TapPrefetchLimitUndecided)
	if err != nil {
		return false, err
	}
	return e.withinTapLimit(limit)
}

// ShouldPreviousTapResolve reports whether the most recent tap may be sent
// for server-side term resolution. While the promo is pending, resolution
// is restricted to plain-HTTP base pages; sending selection context from
// HTTPS pages before the user opted in is not acceptable.
func (e *Evaluator) ShouldPreviousTapResolve(basePageURL string) (bool, error) {
	if mandatory, err := e.IsMandatoryPromoAvailable(); err != nil || mandatory {
		return false, err
	}

	p := e.src.Params()
	limit, err := e.pickLimit(p.TapResolveLimitDecided, p.TapResolveLimitUndecided)
	if err != nil {
		return false, err
	}
	within, err := e.withinTapLimit(limit)
	if err != nil || !within {
		return false, err
	}

	promo, err := e.IsPromoAvailable()
	if err != nil {
		return false, err
	}
	if promo {
		return isBasePageHTTP(basePageURL), nil
	}
	return true, nil
}

// IsPeekPromoAvailable reports whether the long-press peek promo may show:
// only for undecided users who never opened the panel, long-press gestures,
// and while under the show-count ceiling.
func (e *Evaluator) IsPeekPromoAvailable(selectionType selection.Type) (bool, error) {
	p := e.src.Params()
	if !p.PeekPromoEnabled || selectionType != selection.TypeLongPress {
		return false, nil
	}
	undecided, err := e.IsUserUndecided()
	if err != nil || !undecided {
		return false, err
	}
	opens, err := e.store.GetInt(prefs.KeyPromoOpenCount)
	if err != nil || opens > 0 {
		return false, err
	}
	shows, err := e.store.GetInt(prefs.KeyPeekPromoShowCount)
	if err != nil {
		return false, err
	}
	return shows < p.PeekPromoMaxShowCount, nil
}

// ShouldAnimateSearchProviderIcon reports whether the icon animation may
// play. The time gate (at most once per configured interval) is evaluated
// first for both gestures; tap gestures additionally require that the promo
// was never opened.
func (e *Evaluator) ShouldAnimateSearchProviderIcon(selectionType selection.Type) (bool, error) {
	if selectionType == selection.TypeUndetermined {
		return false, nil
	}

	last, err := e.store.GetInt64(prefs.KeyLastAnimationTime)
	if err != nil {
		return false, err
	}
	interval := e.src.Params().IconAnimationInterval
	if last != 0 && e.now().Sub(time.Unix(0, last)) < interval {
		return false, nil
	}

	if selectionType == selection.TypeTap {
		opens, err := e.store.GetInt(prefs.KeyPromoOpenCount)
		if err != nil {
			return false, err
		}
		return opens == 0, nil
	}
	return true, nil
}

// RegisterTap records a tap gesture: the rolling tap count grows and, while
// the promo is still winnable, so does the promo tap counter.
func (e *Evaluator) RegisterTap() error {
	taps, err := e.store.GetInt(prefs.KeyTapCount)
	if err != nil {
		return err
	}
	if err := e.store.SetInt(prefs.KeyTapCount, taps+1); err != nil {
		return err
	}

	available, err := e.IsPromoAvailable()
	if err != nil {
		return err
	}
	if !available || e.counter == nil || !e.counter.IsEnabled() {
		return nil
	}
	if limit := e.src.Params().PromoTapTriggeredLimit; limit >= 0 && e.counter.Count() >= limit {
		return nil
	}
	return e.counter.Increment()
}

// RegisterQuickAnswerTap records that the most recent tap was answered
// directly in the bar; quick-answer taps do not count against the prefetch
// and resolve limits.
func (e *Evaluator) RegisterQuickAnswerTap() error {
	n, err := e.store.GetInt(prefs.KeyTapQuickAnswerCount)
	if err != nil {
		return err
	}
	return e.store.SetInt(prefs.KeyTapQuickAnswerCount, n+1)
}

// RegisterPanelOpen resets the since-open tap accounting.
func (e *Evaluator) RegisterPanelOpen() error {
	if err := e.store.SetInt(prefs.KeyTapCount, 0); err != nil {
		return err
	}
	return e.store.SetInt(prefs.KeyTapQuickAnswerCount, 0)
}

// RegisterPromoOpen records the user opening the panel from the promo. The
// tap-triggered promo counter stops counting from here on.
func (e *Evaluator) RegisterPromoOpen() error {
	opens, err := e.store.GetInt(prefs.KeyPromoOpenCount)
	if err != nil {
		return err
	}
	if err := e.store.SetInt(prefs.KeyPromoOpenCount, opens+1); err != nil {
		return err
	}
	if e.counter != nil {
		e.log.Debug("promo opened, freezing tap counter",
			zap.Int("opens", opens+1), zap.Int("tap_count", e.counter.Count()))
		return e.counter.Disable()
	}
	return nil
}

// RegisterPeekPromoShown bumps the peek promo show count.
func (e *Evaluator) RegisterPeekPromoShown() error {
	shows, err := e.store.GetInt(prefs.KeyPeekPromoShowCount)
	if err != nil {
		return err
	}
	return e.store.SetInt(prefs.KeyPeekPromoShowCount, shows+1)
}

// RegisterIconAnimation stamps the animation time gate.
func (e *Evaluator) RegisterIconAnimation() error {
	return e.store.SetInt64(prefs.KeyLastAnimationTime, e.now().UnixNano())
}

// pickLimit selects the decided or undecided variant of a limit.
func (e *Evaluator) pickLimit(decided, undecided int) (int, error) {
	isUndecided, err := e.IsUserUndecided()
	if err != nil {
		return 0, err
	}
	if isUndecided {
		return undecided, nil
	}
	return decided, nil
}

// withinTapLimit checks the rolling tap count, net of quick-answer taps,
// against a limit. Negative limits mean unlimited.
func (e *Evaluator) withinTapLimit(limit int) (bool, error) {
	if limit < 0 {
		return true, nil
	}
	taps, err := e.store.GetInt(prefs.KeyTapCount)
	if err != nil {
		return false, err
	}
	quick, err := e.store.GetInt(prefs.KeyTapQuickAnswerCount)
	if err != nil {
		return false, err
	}
	effective := taps - quick
	if effective < 0 {
		effective = 0
	}
	return effective < limit, nil
}

func isBasePageHTTP(basePageURL string) bool {
	u, err := url.Parse(basePageURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http"
}

// DescribeCounters renders the persisted counters for diagnostics.
func (e *Evaluator) DescribeCounters() (map[string]string, error) {
	out := make(map[string]string)
	for _, key := range []string{
		prefs.KeyTapCount,
		prefs.KeyTapQuickAnswerCount,
		prefs.KeyPromoOpenCount,
		prefs.KeyPeekPromoShowCount,
	} {
		v, err := e.store.GetInt(key)
		if err != nil {
			return nil, err
		}
		out[key] = fmt.Sprintf("%d", v)
	}
	last, err := e.store.GetInt64(prefs.KeyLastAnimationTime)
	if err != nil {
		return nil, err
	}
	if last == 0 {
		out[prefs.KeyLastAnimationTime] = "never"
	} else {
		out[prefs.KeyLastAnimationTime] = time.Unix(0, last).Format(time.RFC3339)
	}
	if e.counter != nil {
		out[prefs.KeyPromoTapCounter] = fmt.Sprintf("count=%d enabled=%t", e.counter.Count(), e.counter.IsEnabled())
	}
	state, err := prefs.UserStateOf(e.store)
	if err != nil {
		return nil, err
	}
	out[prefs.KeyUserState] = state.String()
	return out, nil
}
