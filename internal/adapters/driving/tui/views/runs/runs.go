// Package runs provides the run list view for the TUI.
package runs

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/dkansync/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/dkansync/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/dkansync/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/dkansync/internal/core/domain"
)

// View lists recent runs, newest first.
type View struct {
	styles *styles.Styles
	keys   *keymap.KeyMap

	runs     []domain.Run
	selected int
	offset   int
	status   string
	width    int
	height   int
	err      error
}

// NewView creates a new run list view.
func NewView(s *styles.Styles, keys *keymap.KeyMap) *View {
	return &View{styles: s, keys: keys}
}

// SetRuns replaces the listed runs and keeps the cursor in range.
func (v *View) SetRuns(runs []domain.Run) {
	v.runs = runs
	v.err = nil
	if v.selected >= len(runs) {
		v.selected = max(len(runs)-1, 0)
	}
	v.clampOffset()
}

// SetError sets an error to display.
func (v *View) SetError(err error) {
	v.err = err
}

// SetStatus sets the status line below the list.
func (v *View) SetStatus(status string) {
	v.status = status
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.clampOffset()
}

// Selected returns the highlighted run, or nil when the list is empty.
func (v *View) Selected() *domain.Run {
	if v.selected < 0 || v.selected >= len(v.runs) {
		return nil
	}
	return &v.runs[v.selected]
}

// Update handles key presses for the list.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return v, nil
	}

	switch k := keyMsg.String(); {
	case keymap.Matches(k, v.keys.Up):
		if v.selected > 0 {
			v.selected--
		}
	case keymap.Matches(k, v.keys.Down):
		if v.selected < len(v.runs)-1 {
			v.selected++
		}
	case keymap.Matches(k, v.keys.Select):
		if run := v.Selected(); run != nil {
			id := run.ID
			return v, func() tea.Msg { return messages.RunSelected{ID: id} }
		}
	}
	v.clampOffset()
	return v, nil
}

// visibleRows returns how many runs fit between title and help.
func (v *View) visibleRows() int {
	return max(v.height-6, 1)
}

func (v *View) clampOffset() {
	rows := v.visibleRows()
	if v.selected < v.offset {
		v.offset = v.selected
	}
	if v.selected >= v.offset+rows {
		v.offset = v.selected - rows + 1
	}
}

// View renders the run list.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Run History"))
	b.WriteString("\n\n")

	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n")
	case len(v.runs) == 0:
		b.WriteString(v.styles.Muted.Render("No runs recorded."))
		b.WriteString("\n")
	default:
		end := min(v.offset+v.visibleRows(), len(v.runs))
		for i := v.offset; i < end; i++ {
			line := v.formatRun(&v.runs[i])
			if i == v.selected {
				line = v.styles.Selected.Render("> " + line)
			} else {
				line = "  " + line
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if v.status != "" {
		b.WriteString("\n")
		b.WriteString(v.styles.StatusBar.Render(v.status))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render(keymap.HelpLine(v.keys.ListHelp())))
	return b.String()
}

func (v *View) formatRun(run *domain.Run) string {
	kind := string(run.Kind)
	if run.DryRun {
		kind += " (dry)"
	}
	return fmt.Sprintf("%s  %-12s %-7s %s",
		run.StartedAt.Local().Format(time.DateTime),
		kind,
		statusText(run),
		run.File,
	)
}

func statusText(run *domain.Run) string {
	if run.Succeeded() {
		return "ok"
	}
	return "aborted"
}
