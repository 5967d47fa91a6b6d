// Package browser feeds a contextual search session with real events from a
// Chromium page over the DevTools protocol. Listeners injected into the page
// push selection and pointer records into an in-page queue; a poll loop
// drains the queue and translates each record into selection-controller and
// swipe-recognizer calls. Navigation comes from the CDP event stream.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ctxsearch/internal/config"
	"ctxsearch/internal/engine"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// injectJS installs the page-side listeners. Tap detection lives in the
// page: a pointerup within 300ms and 10px of its pointerdown is a tap,
// matching the platform gesture detector this stands in for.
const injectJS = `() => {
	const w = window;
	if (w.__ctxsearchEvents) { return true; }
	w.__ctxsearchEvents = [];
	const push = (e) => { if (w.__ctxsearchEvents.length < 1000) w.__ctxsearchEvents.push(e); };

	let downAt = null;
	w.addEventListener('pointerdown', (ev) => {
		downAt = { x: ev.clientX, y: ev.clientY, ts: Date.now() };
		push({ type: 'down', x: ev.clientX, y: ev.clientY, ts: Date.now() });
	}, true);
	w.addEventListener('pointermove', (ev) => {
		if (downAt) push({ type: 'move', x: ev.clientX, y: ev.clientY, ts: Date.now() });
	}, true);
	w.addEventListener('pointerup', (ev) => {
		push({ type: 'up', x: ev.clientX, y: ev.clientY, ts: Date.now() });
		if (downAt) {
			const dt = Date.now() - downAt.ts;
			const dist = Math.hypot(ev.clientX - downAt.x, ev.clientY - downAt.y);
			if (dt < 300 && dist < 10) {
				push({ type: 'tap', x: ev.clientX, y: ev.clientY, ts: Date.now() });
			}
		}
		downAt = null;
	}, true);
	document.addEventListener('selectionchange', () => {
		const sel = document.getSelection();
		const text = sel ? sel.toString() : '';
		const node = sel && sel.anchorNode ? sel.anchorNode.parentElement : null;
		const editable = !!(node && (node.isContentEditable ||
			node.tagName === 'INPUT' || node.tagName === 'TEXTAREA'));
		push({ type: 'selection', text, editable, ts: Date.now() });
	}, true);
	w.addEventListener('contextmenu', () => {
		push({ type: 'contextmenu', ts: Date.now() });
	}, true);
	w.addEventListener('scroll', () => {
		push({ type: 'scroll', ts: Date.now() });
	}, true);
	return true;
}`

const drainJS = `() => {
	const w = window;
	const out = Array.isArray(w.__ctxsearchEvents) ? w.__ctxsearchEvents : [];
	w.__ctxsearchEvents = [];
	return out;
}`

type pageEvent struct {
	Type     string  `json:"type"`
	Text     string  `json:"text"`
	Editable bool    `json:"editable"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	TS       int64   `json:"ts"`
}

// EventSource owns the browser connection and the poll loop.
type EventSource struct {
	cfg     config.BrowserConfig
	session *engine.Session
	log     *zap.Logger

	pollInterval time.Duration

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
	stopNav func()
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// NewEventSource builds an event source feeding session.
func NewEventSource(cfg config.BrowserConfig, session *engine.Session, log *zap.Logger) *EventSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventSource{
		cfg:          cfg,
		session:      session,
		log:          log.Named("browser"),
		pollInterval: 100 * time.Millisecond,
	}
}

// Start connects to Chromium, opens url, injects the listeners, and begins
// polling. Stop must be called to release the browser.
func (s *EventSource) Start(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	controlURL := s.cfg.DebuggerURL
	if controlURL == "" {
		launch := launcher.New().Headless(s.cfg.Headless)
		if s.cfg.Bin != "" {
			launch = launch.Bin(s.cfg.Bin)
		}
		u, err := launch.Launch()
		if err != nil {
			return fmt.Errorf("launch chromium: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chromium: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("create page: %w", err)
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.ViewportWidth,
		Height:            s.cfg.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            true,
	}).Call(page); err != nil {
		s.log.Warn("set viewport", zap.Error(err))
	}
	if err := page.Timeout(s.cfg.NavigationTimeout()).WaitLoad(); err != nil {
		_ = browser.Close()
		return fmt.Errorf("load %s: %w", url, err)
	}

	s.session.NavigateTo(url)
	if err := s.inject(page); err != nil {
		_ = browser.Close()
		return err
	}

	// Re-inject and reset the session on every main-frame navigation.
	stopNav := page.Context(ctx).EachEvent(func(ev *proto.PageFrameNavigated) {
		if ev.Frame.ParentID != "" {
			return
		}
		s.session.NavigateTo(ev.Frame.URL)
		if err := s.inject(page); err != nil {
			s.log.Warn("re-inject listeners", zap.Error(err))
		}
	})

	s.browser = browser
	s.page = page
	s.stopNav = stopNav
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.started = true
	go s.pollLoop()
	return nil
}

// Stop tears down the poll loop and the browser.
func (s *EventSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	close(s.stopCh)
	<-s.doneCh
	if s.stopNav != nil {
		s.stopNav()
	}
	err := s.browser.Close()
	s.browser = nil
	s.page = nil
	s.started = false
	return err
}

func (s *EventSource) inject(page *rod.Page) error {
	_, err := page.Evaluate(&rod.EvalOptions{
		JS:           injectJS,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return fmt.Errorf("inject listeners: %w", err)
	}
	return nil
}

func (s *EventSource) pollLoop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.drainOnce()
		}
	}
}

func (s *EventSource) drainOnce() {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()
	if page == nil {
		return
	}

	res, err := page.Evaluate(&rod.EvalOptions{
		JS:           drainJS,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		s.log.Debug("drain events", zap.Error(err))
		return
	}
	if res.Value.Nil() {
		return
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		s.log.Debug("marshal events", zap.Error(err))
		return
	}
	var events []pageEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		s.log.Debug("decode events", zap.Error(err))
		return
	}
	for _, ev := range events {
		s.dispatch(ev)
	}
}

// dispatch runs on the poll goroutine only, which serves as the session's
// event loop.
func (s *EventSource) dispatch(ev pageEvent) {
	at := time.UnixMilli(ev.TS)
	ctrl := s.session.Controller()
	switch ev.Type {
	case "down", "move", "up":
		s.session.FeedPointer(ev.Type, ev.X, ev.Y, at)
	case "tap":
		ctrl.HandleSingleTap(ev.X, ev.Y, at)
	case "selection":
		ctrl.HandleSelectionChanged(ev.Text, ev.Editable)
	case "contextmenu":
		ctrl.HandleContextMenuShown()
	case "scroll":
		ctrl.HandleScrollStarted()
	default:
		s.log.Debug("unknown page event", zap.String("type", ev.Type))
	}
}
