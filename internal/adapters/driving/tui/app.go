package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/dkansync/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/dkansync/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/dkansync/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/dkansync/internal/adapters/driving/tui/views/rundetail"
	"github.com/custodia-labs/dkansync/internal/adapters/driving/tui/views/runs"
)

// DefaultRunLimit is the number of runs loaded into the list.
const DefaultRunLimit = 100

// App is the run browser following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	keys   *keymap.KeyMap
	styles *styles.Styles

	runsView   *runs.View
	detailView *rundetail.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	width  int
	height int
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new run browser with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	keys := keymap.DefaultKeyMap()
	return &App{
		ports:       ports,
		ctx:         context.Background(),
		keys:        keys,
		styles:      s,
		runsView:    runs.NewView(s, keys),
		detailView:  rundetail.NewView(s, keys),
		currentView: messages.ViewRuns,
	}, nil
}

// WithContext sets the context for service calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("dkansync - Run History"),
		a.loadRuns(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.runsView.SetDimensions(msg.Width, msg.Height)
		a.detailView.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		k := msg.String()
		if keymap.Matches(k, a.keys.Quit) {
			return a, tea.Quit
		}
		if a.currentView == messages.ViewRunDetail {
			a.detailView, cmd = a.detailView.Update(msg)
			return a, cmd
		}
		switch {
		case keymap.Matches(k, a.keys.Refresh):
			a.runsView.SetStatus("")
			return a, a.loadRuns()
		case keymap.Matches(k, a.keys.ClearCache):
			return a, a.clearCache()
		}
		a.runsView, cmd = a.runsView.Update(msg)
		return a, cmd

	case messages.RunsLoaded:
		if msg.Err != nil {
			a.runsView.SetError(msg.Err)
		} else {
			a.runsView.SetRuns(msg.Runs)
		}
		return a, nil

	case messages.RunSelected:
		return a, a.loadRun(msg.ID)

	case messages.RunLoaded:
		if msg.Err != nil {
			a.detailView.SetError(msg.Err)
		} else {
			a.detailView.SetRun(msg.Run)
		}
		a.currentView = messages.ViewRunDetail
		return a, nil

	case messages.ViewChanged:
		a.currentView = msg.View
		return a, nil

	case messages.CacheCleared:
		if msg.Err != nil {
			a.runsView.SetStatus("Clearing cache failed: " + msg.Err.Error())
		} else {
			a.runsView.SetStatus("Response cache cleared")
		}
		return a, nil
	}

	if a.currentView == messages.ViewRunDetail {
		a.detailView, cmd = a.detailView.Update(msg)
	}
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if a.currentView == messages.ViewRunDetail {
		return a.detailView.View()
	}
	return a.runsView.View()
}

// CurrentView returns the active view.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

func (a *App) loadRuns() tea.Cmd {
	ctx, svc := a.ctx, a.ports.Maintenance
	return func() tea.Msg {
		list, err := svc.Runs(ctx, DefaultRunLimit)
		return messages.RunsLoaded{Runs: list, Err: err}
	}
}

func (a *App) loadRun(id string) tea.Cmd {
	ctx, svc := a.ctx, a.ports.Maintenance
	return func() tea.Msg {
		run, err := svc.Run(ctx, id)
		return messages.RunLoaded{Run: run, Err: err}
	}
}

func (a *App) clearCache() tea.Cmd {
	ctx, svc := a.ctx, a.ports.Maintenance
	return func() tea.Msg {
		return messages.CacheCleared{Err: svc.ClearCache(ctx)}
	}
}
