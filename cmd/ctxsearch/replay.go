package main

import (
	"fmt"
	"os"
	"time"

	"ctxsearch/internal/engine"
	"ctxsearch/internal/policy"
	"ctxsearch/internal/prefs"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var replayPersist bool

// replayCmd runs a scripted event trace through the pipeline
var replayCmd = &cobra.Command{
	Use:   "replay [script.yaml]",
	Short: "Replay a scripted event trace and print the pipeline decisions",
	Long: `Reads a YAML event script and feeds each event into a fresh session,
printing every pipeline decision as it happens.

A script names the base page and lists events:

  page: http://example.com/article
  events:
    - {type: tap, x: 120, y: 340}
    - {type: selection, text: obama}
    - {type: wait, ms: 60}
    - {type: resolved, term: barack obama, alternate: obama, kgmid: /m/02mjmr}
    - {type: pointer, phase: down, x: 100, y: 500}
    - {type: pointer, phase: move, x: 100, y: 470, ms: 50}
    - {type: pointer, phase: up, x: 100, y: 470, ms: 50}

Event types: tap, selection, handles-shown, drag-start, drag-stop,
handles-cleared, scroll, contextmenu, pointer, resolved, load-failed,
quick-answer, open-panel, close-panel, navigate, translate, wait.

By default counters live in memory for the duration of the replay; pass
--persist to run against the configured preference store.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayPersist, "persist", false, "Use the configured preference store instead of memory")
}

// replayScript is the YAML shape of an event script.
type replayScript struct {
	Page   string        `yaml:"page"`
	Events []replayEvent `yaml:"events"`
}

type replayEvent struct {
	Type string `yaml:"type"`

	// selection and tap fields
	Text     string  `yaml:"text"`
	Editable bool    `yaml:"editable"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`

	// pointer fields
	Phase string `yaml:"phase"`

	// Ms advances the replay clock before the event is applied.
	Ms int `yaml:"ms"`

	// resolved fields
	Term        string `yaml:"term"`
	Alternate   string `yaml:"alternate"`
	KnowledgeID string `yaml:"kgmid"`

	// open-panel field
	FromPromo bool `yaml:"from_promo"`

	// translate fields
	From string `yaml:"from"`
	To   string `yaml:"to"`

	// navigate field
	URL string `yaml:"url"`
}

func loadScript(path string) (*replayScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var script replayScript
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if script.Page == "" {
		return nil, fmt.Errorf("script %s names no base page", path)
	}
	return &script, nil
}

// printObserver renders pipeline events as they happen.
type printObserver struct {
	kind lipgloss.Style
}

func newPrintObserver() *printObserver {
	return &printObserver{
		kind: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
	}
}

func (o *printObserver) OnEvent(e engine.Event) {
	fmt.Printf("  %s %s\n", o.kind.Render(fmt.Sprintf("%-16s", e.Kind)), e.Detail)
}

func runReplay(cmd *cobra.Command, args []string) error {
	script, err := loadScript(args[0])
	if err != nil {
		return err
	}

	var store prefs.Store = prefs.NewMemoryStore()
	if replayPersist {
		s, err := openStore()
		if err != nil {
			return err
		}
		store = s
	}
	defer store.Close()

	session, err := engine.NewSession(cfg, store, policy.StaticParams(cfg.Policy), nil, newPrintObserver(), logger)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Replay: " + args[0]))
	session.NavigateTo(script.Page)

	// Scripted time: each event's ms advances the clock, and real waits
	// give the invalid-tap timer a chance to fire.
	now := time.Now()
	for i, ev := range script.Events {
		now = now.Add(time.Duration(ev.Ms) * time.Millisecond)
		if err := applyEvent(session, ev, now); err != nil {
			return fmt.Errorf("event %d (%s): %w", i+1, ev.Type, err)
		}
	}
	// Let a trailing pending tap settle before reporting.
	time.Sleep(cfg.Selection.InvalidTapDelay + 10*time.Millisecond)

	fmt.Println(headerStyle.Render("Final state"))
	fmt.Printf("  %s %s\n", keyStyle.Render("selection"), session.Controller().SelectedText())
	fmt.Printf("  %s %s\n", keyStyle.Render("type"), session.Controller().Type())
	fmt.Printf("  %s %t\n", keyStyle.Render("panel open"), session.IsPanelOpen())
	if req := session.CurrentRequest(); req != nil {
		fmt.Printf("  %s %s\n", keyStyle.Render("search url"), req.SearchURL())
		fmt.Printf("  %s %t\n", keyStyle.Render("low priority"), req.IsUsingLowPriority())
	} else {
		fmt.Printf("  %s %s\n", keyStyle.Render("search url"), dimStyle.Render("none"))
	}
	return nil
}

func applyEvent(s *engine.Session, ev replayEvent, now time.Time) error {
	ctrl := s.Controller()
	switch ev.Type {
	case "tap":
		ctrl.HandleSingleTap(ev.X, ev.Y, now)
	case "selection":
		ctrl.HandleSelectionChanged(ev.Text, ev.Editable)
	case "handles-shown":
		ctrl.HandleSelectionHandlesShown(ev.X, ev.Y)
	case "drag-start":
		ctrl.HandleSelectionDragStarted()
	case "drag-stop":
		ctrl.HandleSelectionDragStopped(ev.X, ev.Y)
	case "handles-cleared":
		ctrl.HandleSelectionHandlesCleared()
	case "scroll":
		ctrl.HandleScrollStarted()
	case "contextmenu":
		ctrl.HandleContextMenuShown()
	case "pointer":
		s.FeedPointer(ev.Phase, ev.X, ev.Y, now)
	case "resolved":
		return s.OnSearchTermResolved(ev.Term, ev.Alternate, ev.KnowledgeID)
	case "load-failed":
		s.OnLoadFailed()
	case "quick-answer":
		return s.RegisterQuickAnswer()
	case "open-panel":
		return s.OpenPanel(ev.FromPromo)
	case "close-panel":
		s.ClosePanel()
	case "navigate":
		s.NavigateTo(ev.URL)
	case "translate":
		req := s.CurrentRequest()
		if req == nil {
			return fmt.Errorf("no request to translate")
		}
		req.ForceTranslation(ev.From, ev.To)
	case "wait":
		time.Sleep(time.Duration(ev.Ms) * time.Millisecond)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return nil
}
