package selection

import (
	"time"
	"unicode"

	"ctxsearch/internal/config"
	"ctxsearch/internal/sched"

	"go.uber.org/zap"
)

// Controller is the selection state machine. It classifies platform
// selection events into tap or long-press selections, validates the selected
// text, and dispatches notifications to the Handler.
type Controller struct {
	cfg       config.SelectionConfig
	handler   Handler
	blacklist Blacklist
	// suppressionEnabled is the field-trial gate for blacklist
	// suppression, re-read on every tap.
	suppressionEnabled func() bool
	log                *zap.Logger

	selectionType  Type
	selectedText   string
	selectionValid bool
	x, y           float64

	// suppressed is set when the context menu opens; all handling stops
	// until the next reset.
	suppressed bool
	// awaitingTapSelection is set between a tap and the selection change
	// (or invalid-tap timeout) it produces.
	awaitingTapSelection bool
	// expectingAdjustment marks a one-shot programmatic expansion: the
	// next selection change is accepted verbatim without re-validation.
	expectingAdjustment bool
	dragging            bool

	lastTap    *TapState
	invalidTap sched.Deferred
}

// NewController builds a controller. blacklist may be nil, which behaves as
// an always-ReasonNone lookup.
func NewController(cfg config.SelectionConfig, handler Handler, blacklist Blacklist, suppressionEnabled func() bool, log *zap.Logger) *Controller {
	if suppressionEnabled == nil {
		suppressionEnabled = func() bool { return false }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		cfg:                cfg,
		handler:            handler,
		blacklist:          blacklist,
		suppressionEnabled: suppressionEnabled,
		log:                log.Named("selection"),
	}
}

// Type returns the gesture type of the current selection.
func (c *Controller) Type() Type { return c.selectionType }

// SelectedText returns the current selection text.
func (c *Controller) SelectedText() string { return c.selectedText }

// IsSelectionValid reports whether the current selection passed validation.
func (c *Controller) IsSelectionValid() bool { return c.selectionValid }

// LastTap returns the most recent tap record, or nil.
func (c *Controller) LastTap() *TapState { return c.lastTap }

// IsValidSelection validates text the way a new selection would be
// validated: bounded length, at least one Unicode letter or digit, and not
// inside an editable field.
func (c *Controller) IsValidSelection(text string, editable bool) bool {
	if editable {
		return false
	}
	if text == "" {
		return false
	}
	runes := 0
	hasWordChar := false
	for _, r := range text {
		runes++
		if runes > c.cfg.MaxLength {
			return false
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			hasWordChar = true
		}
	}
	return hasWordChar
}

// HandleSingleTap records a tap and starts the invalid-tap countdown: if no
// selection change arrives within the configured delay the tap is reported
// invalid. Scheduling is last-wins, so a second tap supersedes the first.
func (c *Controller) HandleSingleTap(x, y float64, at time.Time) {
	if c.suppressed {
		return
	}
	c.x, c.y = x, y
	c.lastTap = &TapState{X: x, Y: y, Time: at}
	c.awaitingTapSelection = true
	c.invalidTap.Schedule(c.cfg.InvalidTapDelay, func() {
		c.awaitingTapSelection = false
		c.handler.HandleInvalidTap()
	})
}

// HandleSelectionChanged processes a text-selection change from the
// platform.
func (c *Controller) HandleSelectionChanged(text string, editable bool) {
	if c.suppressed {
		return
	}

	if c.expectingAdjustment {
		// Programmatic expansion to the resolved term: accept verbatim.
		c.expectingAdjustment = false
		c.selectedText = text
		return
	}

	if c.awaitingTapSelection {
		c.invalidTap.Cancel()
		c.awaitingTapSelection = false
		c.finishTapSelection(text, editable)
		return
	}

	if text == "" {
		return
	}

	// Long-press path: handles may already be up, or this change is the
	// long-press word selection arriving before the handles event.
	if c.selectionType == TypeUndetermined {
		c.selectionType = TypeLongPress
		c.lastTap = nil
	}
	c.selectedText = text
	c.selectionValid = c.IsValidSelection(text, editable)
	if c.dragging {
		// The modification is reported once, when the drag stops.
		return
	}
	c.handler.HandleSelection(text, c.selectionValid, c.selectionType, c.x, c.y)
}

// finishTapSelection completes the tap flow once its selection arrived.
func (c *Controller) finishTapSelection(text string, editable bool) {
	if text == "" {
		c.handler.HandleInvalidTap()
		return
	}

	c.selectionType = TypeTap
	c.selectedText = text
	c.selectionValid = c.IsValidSelection(text, editable)

	reason := ReasonNone
	if c.blacklist != nil {
		reason = c.blacklist.Reason(text)
	}
	if reason != ReasonNone && c.suppressionEnabled() {
		if c.lastTap != nil {
			c.lastTap.WasSuppressed = true
		}
		c.clearSelectionState()
		c.log.Debug("tap suppressed", zap.Int("reason", int(reason)), zap.Int("len", len(text)))
		c.handler.HandleSelectionSuppression(reason)
		c.handler.HandleSuppressedTap(reason)
		return
	}
	if reason != ReasonNone {
		// Suppression is trial-gated off; the reason is still reported.
		c.handler.HandleMetricsForWouldSuppressTap(reason)
	}
	c.handler.HandleValidTap(c.x, c.y)
	c.handler.HandleSelection(text, c.selectionValid, TypeTap, c.x, c.y)
}

// HandleSelectionHandlesShown marks the selection as long-press originated.
func (c *Controller) HandleSelectionHandlesShown(x, y float64) {
	if c.suppressed {
		return
	}
	c.invalidTap.Cancel()
	c.awaitingTapSelection = false
	c.selectionType = TypeLongPress
	c.lastTap = nil
	c.x, c.y = x, y
	if c.selectedText != "" {
		c.handler.HandleSelection(c.selectedText, c.selectionValid, TypeLongPress, x, y)
	}
}

// HandleSelectionDragStarted marks the start of a handle drag; selection
// changes during the drag are coalesced into one modification report.
func (c *Controller) HandleSelectionDragStarted() {
	if c.suppressed {
		return
	}
	c.dragging = true
}

// HandleSelectionDragStopped reports the drag's net adjustment.
func (c *Controller) HandleSelectionDragStopped(x, y float64) {
	if c.suppressed {
		return
	}
	c.dragging = false
	c.x, c.y = x, y
	c.handler.HandleSelectionModification(c.selectedText, c.selectionValid, x, y)
}

// HandleSelectionHandlesCleared reports the selection being dismissed by the
// platform.
func (c *Controller) HandleSelectionHandlesCleared() {
	if c.suppressed {
		return
	}
	dismissed := c.selectionType != TypeUndetermined || c.selectedText != ""
	c.clearSelectionState()
	if dismissed {
		c.handler.HandleSelectionDismissal()
	}
}

// HandleScrollStarted reports base-page scrolling. A pending tap is
// abandoned without an invalid-tap report.
func (c *Controller) HandleScrollStarted() {
	if c.suppressed {
		return
	}
	c.invalidTap.Cancel()
	c.awaitingTapSelection = false
	c.handler.HandleScroll()
}

// HandleContextMenuShown suppresses all further handling until Reset.
func (c *Controller) HandleContextMenuShown() {
	c.invalidTap.Cancel()
	c.awaitingTapSelection = false
	c.suppressed = true
}

// ExpectSelectionAdjustment arms the one-shot expansion flag: the next
// selection change is captured verbatim, without re-validation.
func (c *Controller) ExpectSelectionAdjustment() {
	c.expectingAdjustment = true
}

// Reset returns the controller to its initial state. Call on tab or page
// navigation.
func (c *Controller) Reset() {
	c.invalidTap.Cancel()
	c.awaitingTapSelection = false
	c.expectingAdjustment = false
	c.dragging = false
	c.suppressed = false
	c.lastTap = nil
	c.clearSelectionState()
}

func (c *Controller) clearSelectionState() {
	c.selectionType = TypeUndetermined
	c.selectedText = ""
	c.selectionValid = false
}
