// Package gesture classifies continuous drag motion into cardinal swipe
// directions. Thresholds are configured in density-independent pixels and
// evaluated once per gesture: the first frame where either axis threshold is
// exceeded locks the direction for the remainder of the gesture.
package gesture

import (
	"math"
	"time"

	"ctxsearch/internal/config"
)

// Direction is a classified swipe direction.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionLeft
	DirectionRight
	DirectionUp
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "unknown"
	}
}

// Handler receives swipe notifications. IsSwipeEnabled is consulted exactly
// once per gesture, when the direction locks; returning false vetoes the
// gesture and no further events fire even if movement continues.
type Handler interface {
	IsSwipeEnabled(direction Direction) bool
	SwipeStarted(direction Direction, x, y float64)
	SwipeUpdated(totalX, totalY, deltaX, deltaY float64)
	SwipeFinished()
	Fling(direction Direction, velocityX, velocityY float64)
}

// Recognizer tracks one drag gesture at a time. It is not safe for
// concurrent use; feed it from the event loop.
type Recognizer struct {
	handler Handler

	horizontalPx float64
	verticalPx   float64
	flingPx      float64 // px per second

	active    bool
	vetoed    bool
	direction Direction

	startX, startY float64
	lastX, lastY   float64
	lastTime       time.Time
	velocityX      float64
	velocityY      float64
}

// NewRecognizer builds a recognizer with thresholds converted from dp.
func NewRecognizer(cfg config.GestureConfig, handler Handler) *Recognizer {
	return &Recognizer{
		handler:      handler,
		horizontalPx: cfg.SwipeHorizontalDp * cfg.PixelsPerDp,
		verticalPx:   cfg.SwipeVerticalDp * cfg.PixelsPerDp,
		flingPx:      cfg.FlingVelocityDp * cfg.PixelsPerDp,
	}
}

// Direction returns the locked direction of the current gesture, or
// DirectionUnknown before the lock.
func (r *Recognizer) Direction() Direction { return r.direction }

// Begin starts tracking a gesture at (x, y). Any gesture in progress is
// discarded without terminal events.
func (r *Recognizer) Begin(x, y float64, t time.Time) {
	r.active = true
	r.vetoed = false
	r.direction = DirectionUnknown
	r.startX, r.startY = x, y
	r.lastX, r.lastY = x, y
	r.lastTime = t
	r.velocityX, r.velocityY = 0, 0
}

// Move feeds a motion sample. The first sample that pushes cumulative motion
// past a threshold locks the direction; later samples produce SwipeUpdated.
func (r *Recognizer) Move(x, y float64, t time.Time) {
	if !r.active || r.vetoed {
		return
	}

	dx := x - r.lastX
	dy := y - r.lastY
	r.updateVelocity(dx, dy, t)

	if r.direction == DirectionUnknown {
		totalX := x - r.startX
		totalY := y - r.startY
		overH := math.Abs(totalX) >= r.horizontalPx
		overV := math.Abs(totalY) >= r.verticalPx
		if !overH && !overV {
			r.lastX, r.lastY = x, y
			return
		}
		// Both thresholds can fall on the same frame; the dominant axis
		// wins the lock.
		horizontal := overH && (!overV || math.Abs(totalX) > math.Abs(totalY))
		switch {
		case horizontal && totalX < 0:
			r.direction = DirectionLeft
		case horizontal:
			r.direction = DirectionRight
		case totalY < 0:
			r.direction = DirectionUp
		default:
			r.direction = DirectionDown
		}

		if !r.handler.IsSwipeEnabled(r.direction) {
			r.vetoed = true
			return
		}
		r.handler.SwipeStarted(r.direction, x, y)
		r.handler.SwipeUpdated(totalX, totalY, totalX, totalY)
		r.lastX, r.lastY = x, y
		return
	}

	r.lastX, r.lastY = x, y
	r.handler.SwipeUpdated(x-r.startX, y-r.startY, dx, dy)
}

// End terminates the gesture with exactly one terminal event: Fling when the
// gesture velocity clears the fling threshold, SwipeFinished otherwise. A
// gesture that never locked a direction, or was vetoed, ends silently.
func (r *Recognizer) End(t time.Time) {
	active, vetoed, dir := r.active, r.vetoed, r.direction
	vx, vy := r.velocityX, r.velocityY
	r.reset()

	if !active || vetoed || dir == DirectionUnknown {
		return
	}

	speed := vx
	if dir == DirectionUp || dir == DirectionDown {
		speed = vy
	}
	if math.Abs(speed) >= r.flingPx {
		r.handler.Fling(dir, vx, vy)
		return
	}
	r.handler.SwipeFinished()
}

// Reset discards any gesture in progress without terminal events.
func (r *Recognizer) Reset() { r.reset() }

func (r *Recognizer) reset() {
	r.active = false
	r.vetoed = false
	r.direction = DirectionUnknown
	r.velocityX, r.velocityY = 0, 0
}

// updateVelocity keeps an exponentially smoothed px/s estimate, standing in
// for the platform's velocity tracker.
func (r *Recognizer) updateVelocity(dx, dy float64, t time.Time) {
	dt := t.Sub(r.lastTime).Seconds()
	r.lastTime = t
	if dt <= 0 {
		return
	}
	const smoothing = 0.7
	r.velocityX = smoothing*(dx/dt) + (1-smoothing)*r.velocityX
	r.velocityY = smoothing*(dy/dt) + (1-smoothing)*r.velocityY
}
