// Package selection tracks the text selection driving contextual search: a
// small state machine over the gesture that created the selection (tap or
// long-press), validation of the selected text, and one-way notifications to
// a handler. All input methods must be called from the event loop.
package selection

import "time"

// Type is the gesture that established the current selection.
type Type int

const (
	// TypeUndetermined means no qualifying gesture has been seen since the
	// last reset.
	TypeUndetermined Type = iota
	// TypeTap means the selection came from a single tap.
	TypeTap
	// TypeLongPress means the selection came from a long-press.
	TypeLongPress
)

func (t Type) String() string {
	switch t {
	case TypeTap:
		return "tap"
	case TypeLongPress:
		return "long-press"
	default:
		return "undetermined"
	}
}

// BlacklistReason explains why a selection is blacklisted from triggering a
// search. ReasonNone means the selection is not blacklisted; other values
// are defined by the Blacklist implementation.
type BlacklistReason int

// ReasonNone means not blacklisted.
const ReasonNone BlacklistReason = 0

// Blacklist looks up the suppression reason for a selection. Implementations
// must be pure functions of the text.
type Blacklist interface {
	Reason(text string) BlacklistReason
}

// Handler receives selection notifications. All methods are one-way
// fire-and-forget calls made from the event loop.
type Handler interface {
	// HandleScroll reports that the base page started scrolling.
	HandleScroll()
	// HandleValidTap reports a tap that produced a text selection.
	HandleValidTap(x, y float64)
	// HandleInvalidTap reports a tap that produced no selection within the
	// configured delay.
	HandleInvalidTap()
	// HandleSelection reports a newly established selection. valid is
	// false when the text failed validation; the notification still fires
	// so the caller can react.
	HandleSelection(text string, valid bool, selectionType Type, x, y float64)
	// HandleSelectionModification reports a handle-drag adjustment of an
	// existing selection.
	HandleSelectionModification(text string, valid bool, x, y float64)
	// HandleSelectionDismissal reports that the selection was cleared.
	HandleSelectionDismissal()
	// HandleSelectionSuppression reports that an established selection was
	// suppressed by the blacklist.
	HandleSelectionSuppression(reason BlacklistReason)
	// HandleSuppressedTap reports a tap whose selection was suppressed.
	HandleSuppressedTap(reason BlacklistReason)
	// HandleMetricsForWouldSuppressTap reports the blacklist reason for a
	// tap that proceeded because suppression is disabled.
	HandleMetricsForWouldSuppressTap(reason BlacklistReason)
}

// TapState records the most recent tap. It feeds heuristics for the next
// tap only; it is overwritten on each tap and cleared on long-press or
// reset.
type TapState struct {
	X             float64
	Y             float64
	Time          time.Time
	WasSuppressed bool
}
