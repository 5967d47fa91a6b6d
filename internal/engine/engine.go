// Package engine wires the contextual search pipeline for one feature
// session: the selection controller classifies gestures, the policy
// evaluator gates network work, and the request builder produces the search
// URLs handed to the platform loader. The engine is the selection and
// gesture handler; everything it decides is reported through an Observer.
package engine

import (
	"fmt"
	"time"

	"ctxsearch/internal/config"
	"ctxsearch/internal/gesture"
	"ctxsearch/internal/policy"
	"ctxsearch/internal/prefs"
	"ctxsearch/internal/request"
	"ctxsearch/internal/selection"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is one observable pipeline decision.
type Event struct {
	Kind   string
	Detail string
}

// Observer receives pipeline events. Notifications are one-way; the
// observer must not call back into the session.
type Observer interface {
	OnEvent(e Event)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) OnEvent(Event) {}

// Session is one tab's contextual search instance. All methods must be
// called from the event loop.
type Session struct {
	ID string

	cfg      *config.Config
	log      *zap.Logger
	store    prefs.Store
	policy   *policy.Evaluator
	ctrl     *selection.Controller
	swipes   *gesture.Recognizer
	observer Observer

	basePageURL  string
	panelOpen    bool
	current      *request.Request
	lastSwipeDir gesture.Direction
}

// NewSession builds a session over the given store and trial-parameter
// source. blacklist may be nil.
func NewSession(cfg *config.Config, store prefs.Store, src policy.ParamSource, blacklist selection.Blacklist, observer Observer, log *zap.Logger) (*Session, error) {
	if observer == nil {
		observer = NopObserver{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	counter, err := policy.LoadPromoTapCounter(store)
	if err != nil {
		return nil, fmt.Errorf("load promo tap counter: %w", err)
	}

	s := &Session{
		ID:       uuid.NewString(),
		cfg:      cfg,
		log:      log.Named("engine"),
		store:    store,
		observer: observer,
	}
	s.policy = policy.NewEvaluator(store, src, counter, log)
	s.ctrl = selection.NewController(cfg.Selection, s, blacklist,
		func() bool { return src.Params().SuppressionEnabled }, log)
	s.swipes = gesture.NewRecognizer(cfg.Gesture, s)
	return s, nil
}

// Controller exposes the selection controller for the event source.
func (s *Session) Controller() *selection.Controller { return s.ctrl }

// Swipes exposes the swipe recognizer for the event source.
func (s *Session) Swipes() *gesture.Recognizer { return s.swipes }

// Policy exposes the policy evaluator.
func (s *Session) Policy() *policy.Evaluator { return s.policy }

// CurrentRequest returns the in-flight search request, or nil.
func (s *Session) CurrentRequest() *request.Request { return s.current }

// BasePageURL returns the page the session is attached to.
func (s *Session) BasePageURL() string { return s.basePageURL }

// IsPanelOpen reports whether the search panel is showing.
func (s *Session) IsPanelOpen() bool { return s.panelOpen }

func (s *Session) emit(kind, format string, args ...any) {
	e := Event{Kind: kind, Detail: fmt.Sprintf(format, args...)}
	s.log.Debug("event", zap.String("kind", e.Kind), zap.String("detail", e.Detail))
	s.observer.OnEvent(e)
}

// NavigateTo resets the session for a new base page.
func (s *Session) NavigateTo(url string) {
	s.basePageURL = url
	s.panelOpen = false
	s.current = nil
	s.ctrl.Reset()
	s.swipes.Reset()
	s.emit("navigation", "base page %s", url)
}

// OpenPanel records the panel opening. fromPromo marks an open that
// happened from the opt-in promo.
func (s *Session) OpenPanel(fromPromo bool) error {
	s.panelOpen = true
	if err := s.policy.RegisterPanelOpen(); err != nil {
		return err
	}
	if fromPromo {
		if err := s.policy.RegisterPromoOpen(); err != nil {
			return err
		}
	}
	s.emit("panel-open", "from promo: %t", fromPromo)
	return nil
}

// ClosePanel records the panel closing and discards the request.
func (s *Session) ClosePanel() {
	s.panelOpen = false
	s.current = nil
	s.emit("panel-close", "")
}

// OnSearchTermResolved feeds the server's term resolution back into the
// session: the selection expands to the resolved term and the request is
// rebuilt around it.
func (s *Session) OnSearchTermResolved(term, alternateTerm, knowledgeID string) error {
	if term == "" {
		return nil
	}
	s.ctrl.ExpectSelectionAdjustment()

	prefetch, err := s.policy.ShouldPrefetch(s.ctrl.Type())
	if err != nil {
		return err
	}
	req, err := request.New(s.cfg.Search, term, alternateTerm, knowledgeID, prefetch)
	if err != nil {
		return fmt.Errorf("build resolved request: %w", err)
	}
	s.current = req
	s.emit("request", "resolved %q low-priority=%t url=%s", term, req.IsUsingLowPriority(), req.SearchURL())
	return nil
}

// OnLoadFailed records a failed search load. A failed low-priority request
// falls back to the normal-priority variant; the engine marks the failure
// and switches, the caller re-issues.
func (s *Session) OnLoadFailed() {
	if s.current == nil {
		return
	}
	if s.current.IsUsingLowPriority() && !s.current.HasFailed() {
		s.current.SetHasFailed()
		s.current.SetNormalPriority()
		s.emit("request-fallback", "normal priority url=%s", s.current.SearchURL())
		return
	}
	s.emit("request-failed", "url=%s", s.current.SearchURL())
}

// RegisterQuickAnswer records that the bar answered the current tap
// directly.
func (s *Session) RegisterQuickAnswer() error {
	return s.policy.RegisterQuickAnswerTap()
}

// --- selection.Handler ---

// HandleScroll implements selection.Handler.
func (s *Session) HandleScroll() {
	s.emit("scroll", "")
}

// HandleValidTap implements selection.Handler.
func (s *Session) HandleValidTap(x, y float64) {
	if err := s.policy.RegisterTap(); err != nil {
		s.log.Warn("register tap", zap.Error(err))
	}
	s.emit("valid-tap", "at (%.0f, %.0f)", x, y)
}

// HandleInvalidTap implements selection.Handler.
func (s *Session) HandleInvalidTap() {
	s.current = nil
	s.emit("invalid-tap", "")
}

// HandleSelection implements selection.Handler: a new selection drives the
// resolve/prefetch decisions and builds the search request.
func (s *Session) HandleSelection(text string, valid bool, selectionType selection.Type, x, y float64) {
	s.emit("selection", "%q valid=%t type=%s", text, valid, selectionType)
	if !valid {
		return
	}

	if peek, err := s.policy.IsPeekPromoAvailable(selectionType); err == nil && peek {
		if err := s.policy.RegisterPeekPromoShown(); err != nil {
			s.log.Warn("register peek promo", zap.Error(err))
		}
		s.emit("peek-promo", "shown")
	}

	if animate, err := s.policy.ShouldAnimateSearchProviderIcon(selectionType); err == nil && animate {
		if err := s.policy.RegisterIconAnimation(); err != nil {
			s.log.Warn("register icon animation", zap.Error(err))
		}
		s.emit("icon-animation", "")
	}

	resolve := false
	if selectionType == selection.TypeTap {
		var err error
		resolve, err = s.policy.ShouldPreviousTapResolve(s.basePageURL)
		if err != nil {
			s.log.Warn("resolve decision", zap.Error(err))
		}
		s.emit("decision", "resolve=%t", resolve)
	}

	prefetch, err := s.policy.ShouldPrefetch(selectionType)
	if err != nil {
		s.log.Warn("prefetch decision", zap.Error(err))
	}
	s.emit("decision", "prefetch=%t", prefetch)

	req, err := request.New(s.cfg.Search, text, "", "", prefetch)
	if err != nil {
		s.log.Warn("build request", zap.Error(err))
		return
	}
	s.current = req
	if resolve {
		s.emit("request", "pending resolution for %q url=%s", text, req.SearchURL())
	} else {
		s.emit("request", "literal %q low-priority=%t url=%s", text, req.IsUsingLowPriority(), req.SearchURL())
	}
}

// HandleSelectionModification implements selection.Handler: the adjusted
// text replaces the request.
func (s *Session) HandleSelectionModification(text string, valid bool, x, y float64) {
	s.emit("modification", "%q valid=%t", text, valid)
	if !valid {
		return
	}
	req, err := request.New(s.cfg.Search, text, "", "", false)
	if err != nil {
		s.log.Warn("rebuild request", zap.Error(err))
		return
	}
	s.current = req
}

// HandleSelectionDismissal implements selection.Handler.
func (s *Session) HandleSelectionDismissal() {
	s.current = nil
	s.emit("dismissal", "")
}

// HandleSelectionSuppression implements selection.Handler.
func (s *Session) HandleSelectionSuppression(reason selection.BlacklistReason) {
	s.current = nil
	s.emit("suppression", "reason=%d", reason)
}

// HandleSuppressedTap implements selection.Handler.
func (s *Session) HandleSuppressedTap(reason selection.BlacklistReason) {
	s.emit("suppressed-tap", "reason=%d", reason)
}

// HandleMetricsForWouldSuppressTap implements selection.Handler.
func (s *Session) HandleMetricsForWouldSuppressTap(reason selection.BlacklistReason) {
	s.emit("would-suppress", "reason=%d", reason)
}

// --- gesture.Handler ---

// IsSwipeEnabled implements gesture.Handler: the panel only moves
// vertically, so horizontal swipes are vetoed.
func (s *Session) IsSwipeEnabled(direction gesture.Direction) bool {
	return direction == gesture.DirectionUp || direction == gesture.DirectionDown
}

// SwipeStarted implements gesture.Handler.
func (s *Session) SwipeStarted(direction gesture.Direction, x, y float64) {
	s.lastSwipeDir = direction
	s.emit("swipe", "started %s at (%.0f, %.0f)", direction, x, y)
}

// SwipeUpdated implements gesture.Handler.
func (s *Session) SwipeUpdated(totalX, totalY, deltaX, deltaY float64) {}

// SwipeFinished implements gesture.Handler: an upward swipe promotes the
// panel to open, a downward swipe closes it.
func (s *Session) SwipeFinished() {
	s.settlePanelSwipe("swipe")
}

// Fling implements gesture.Handler.
func (s *Session) Fling(direction gesture.Direction, vx, vy float64) {
	s.emit("fling", "%s velocity=(%.0f, %.0f)", direction, vx, vy)
	s.settlePanelSwipe("fling")
}

func (s *Session) settlePanelSwipe(cause string) {
	dir := s.lastSwipeDir
	s.lastSwipeDir = gesture.DirectionUnknown
	switch dir {
	case gesture.DirectionUp:
		if !s.panelOpen {
			s.emit("panel-promote", "by %s", cause)
			if err := s.OpenPanel(false); err != nil {
				s.log.Warn("open panel", zap.Error(err))
			}
		}
	case gesture.DirectionDown:
		if s.panelOpen {
			s.ClosePanel()
		}
	}
}

// FeedPointer drives the swipe recognizer from raw pointer samples.
func (s *Session) FeedPointer(phase string, x, y float64, at time.Time) {
	switch phase {
	case "down":
		s.swipes.Begin(x, y, at)
	case "move":
		s.swipes.Move(x, y, at)
	case "up":
		s.swipes.End(at)
	}
}
