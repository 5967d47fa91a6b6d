package engine

import (
	"testing"
	"time"

	"ctxsearch/internal/config"
	"ctxsearch/internal/policy"
	"ctxsearch/internal/prefs"
	"ctxsearch/internal/selection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingObserver struct {
	events []Event
}

func (o *capturingObserver) OnEvent(e Event) { o.events = append(o.events, e) }

func (o *capturingObserver) kinds() []string {
	out := make([]string, len(o.events))
	for i, e := range o.events {
		out[i] = e.Kind
	}
	return out
}

func (o *capturingObserver) has(kind string) bool {
	for _, e := range o.events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func testEngineConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Selection.InvalidTapDelay = 20 * time.Millisecond
	return cfg
}

func newTestSession(t *testing.T, cfg *config.Config) (*Session, *capturingObserver, prefs.Store) {
	t.Helper()
	store := prefs.NewMemoryStore()
	obs := &capturingObserver{}
	s, err := NewSession(cfg, store, policy.StaticParams(cfg.Policy), nil, obs, nil)
	require.NoError(t, err)
	return s, obs, store
}

func tapAndSelect(s *Session, text string) {
	s.Controller().HandleSingleTap(10, 20, time.Now())
	s.Controller().HandleSelectionChanged(text, false)
}

func TestSession_TapBuildsPrefetchRequest(t *testing.T) {
	s, obs, _ := newTestSession(t, testEngineConfig())
	s.NavigateTo("http://example.com/article")

	tapAndSelect(s, "hello")

	req := s.CurrentRequest()
	require.NotNil(t, req)
	assert.True(t, req.IsUsingLowPriority(), "tap selections prefetch at low priority")
	assert.True(t, obs.has("valid-tap"))
	assert.True(t, obs.has("request"))
}

func TestSession_UndecidedOnHTTPSDoesNotResolve(t *testing.T) {
	s, obs, _ := newTestSession(t, testEngineConfig())
	s.NavigateTo("https://example.com/secure")

	tapAndSelect(s, "hello")

	found := false
	for _, e := range obs.events {
		if e.Kind == "decision" && e.Detail == "resolve=false" {
			found = true
		}
	}
	assert.True(t, found, "undecided users must not resolve from HTTPS base pages, got %v", obs.events)
}

func TestSession_DecidedUserResolvesOnHTTPS(t *testing.T) {
	s, obs, store := newTestSession(t, testEngineConfig())
	require.NoError(t, prefs.SetUserState(store, prefs.UserEnabled))
	s.NavigateTo("https://example.com/secure")

	tapAndSelect(s, "hello")

	found := false
	for _, e := range obs.events {
		if e.Kind == "decision" && e.Detail == "resolve=true" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSession_ResolvedTermRebuildsRequestAndExpandsSelection(t *testing.T) {
	s, _, _ := newTestSession(t, testEngineConfig())
	s.NavigateTo("http://example.com")

	tapAndSelect(s, "obama")
	require.NoError(t, s.OnSearchTermResolved("barack obama", "obama", "/m/02mjmr"))

	req := s.CurrentRequest()
	require.NotNil(t, req)
	assert.Equal(t, "barack obama", req.SearchURL().Query().Get("q"))
	assert.Equal(t, "/m/02mjmr", req.SearchURL().Query().Get("kgmid"))

	// The expansion callback is accepted verbatim, without re-validation.
	s.Controller().HandleSelectionChanged("barack obama", false)
	assert.Equal(t, "barack obama", s.Controller().SelectedText())
	assert.Equal(t, selection.TypeTap, s.Controller().Type())
}

func TestSession_LowPriorityFailureFallsBack(t *testing.T) {
	s, obs, _ := newTestSession(t, testEngineConfig())
	s.NavigateTo("http://example.com")

	tapAndSelect(s, "hello")
	req := s.CurrentRequest()
	require.NotNil(t, req)
	require.True(t, req.IsUsingLowPriority())

	s.OnLoadFailed()
	assert.True(t, req.HasFailed())
	assert.False(t, req.IsUsingLowPriority())
	assert.True(t, obs.has("request-fallback"))

	// A second failure is terminal, not another fallback.
	s.OnLoadFailed()
	count := 0
	for _, e := range obs.events {
		if e.Kind == "request-fallback" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.True(t, obs.has("request-failed"))
}

func TestSession_LongPressBuildsNormalPriorityRequest(t *testing.T) {
	s, _, _ := newTestSession(t, testEngineConfig())
	s.NavigateTo("http://example.com")

	s.Controller().HandleSelectionChanged("long pressed words", false)

	req := s.CurrentRequest()
	require.NotNil(t, req)
	assert.False(t, req.IsUsingLowPriority(), "long-press selections do not prefetch")
}

func TestSession_NavigationResetsEverything(t *testing.T) {
	s, _, _ := newTestSession(t, testEngineConfig())
	s.NavigateTo("http://example.com")
	tapAndSelect(s, "hello")
	require.NotNil(t, s.CurrentRequest())

	s.NavigateTo("http://example.org")
	assert.Nil(t, s.CurrentRequest())
	assert.Equal(t, selection.TypeUndetermined, s.Controller().Type())
	assert.Equal(t, "http://example.org", s.BasePageURL())
}

func TestSession_PanelSwipeOpensAndCloses(t *testing.T) {
	s, obs, _ := newTestSession(t, testEngineConfig())
	s.NavigateTo("http://example.com")

	start := time.Now()
	s.FeedPointer("down", 100, 500, start)
	s.FeedPointer("move", 100, 480, start.Add(50*time.Millisecond))
	s.FeedPointer("move", 100, 460, start.Add(100*time.Millisecond))
	s.FeedPointer("up", 100, 460, start.Add(150*time.Millisecond))

	assert.True(t, s.IsPanelOpen(), "upward swipe opens the panel: %v", obs.kinds())

	start = time.Now()
	s.FeedPointer("down", 100, 200, start)
	s.FeedPointer("move", 100, 230, start.Add(50*time.Millisecond))
	s.FeedPointer("up", 100, 230, start.Add(100*time.Millisecond))

	assert.False(t, s.IsPanelOpen(), "downward swipe closes the panel")
	assert.True(t, obs.has("panel-close"))
}

func TestSession_HorizontalSwipeIsVetoed(t *testing.T) {
	s, obs, _ := newTestSession(t, testEngineConfig())
	s.NavigateTo("http://example.com")

	start := time.Now()
	s.FeedPointer("down", 100, 500, start)
	s.FeedPointer("move", 140, 500, start.Add(50*time.Millisecond))
	s.FeedPointer("up", 140, 500, start.Add(100*time.Millisecond))

	assert.False(t, obs.has("swipe"))
	assert.False(t, s.IsPanelOpen())
}

func TestSession_PanelOpenResetsTapCounters(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Policy.TapResolveLimitUndecided = 2
	s, _, store := newTestSession(t, cfg)
	s.NavigateTo("http://example.com")

	tapAndSelect(s, "one")
	s.Controller().HandleSelectionHandlesCleared()
	tapAndSelect(s, "two")

	taps, err := store.GetInt(prefs.KeyTapCount)
	require.NoError(t, err)
	assert.Equal(t, 2, taps)

	require.NoError(t, s.OpenPanel(false))
	taps, err = store.GetInt(prefs.KeyTapCount)
	require.NoError(t, err)
	assert.Equal(t, 0, taps)
}

func TestSession_PromoOpenDisablesTapCounter(t *testing.T) {
	s, _, _ := newTestSession(t, testEngineConfig())
	s.NavigateTo("http://example.com")

	tapAndSelect(s, "hello")
	require.True(t, s.Policy().Counter().IsEnabled())
	before := s.Policy().Counter().Count()

	require.NoError(t, s.OpenPanel(true))
	assert.False(t, s.Policy().Counter().IsEnabled())
	assert.Equal(t, before, s.Policy().Counter().Count())
}
