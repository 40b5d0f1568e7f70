// Package rundetail provides the view of a single run and its plan.
package rundetail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/dkansync/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/dkansync/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/dkansync/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/dkansync/internal/core/domain"
)

// reserved lines for title, separator and help.
const reserved = 5

// View shows one run in a scrollable viewport.
type View struct {
	styles   *styles.Styles
	keys     *keymap.KeyMap
	viewport viewport.Model

	run *domain.Run
	err error
}

// NewView creates a new run detail view.
func NewView(s *styles.Styles, keys *keymap.KeyMap) *View {
	return &View{
		styles:   s,
		keys:     keys,
		viewport: viewport.New(80, 20),
	}
}

// SetRun sets the run to display and scrolls to the top.
func (v *View) SetRun(run *domain.Run) {
	v.run = run
	v.err = nil
	v.viewport.SetContent(v.buildContent())
	v.viewport.GotoTop()
}

// SetError sets an error to display.
func (v *View) SetError(err error) {
	v.err = err
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.viewport.Width = width
	v.viewport.Height = max(height-reserved, 1)
}

// Run returns the displayed run.
func (v *View) Run() *domain.Run {
	return v.run
}

// Update handles scrolling and leaving the view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keymap.Matches(keyMsg.String(), v.keys.Back) {
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewRuns}
		}
	}

	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return v, cmd
}

// buildContent renders the run as plain lines.
func (v *View) buildContent() string {
	if v.run == nil {
		return ""
	}
	r := v.run
	s := r.Stats

	var lines []string
	lines = append(lines,
		formatField("Kind", string(r.Kind)),
		formatField("File", r.File),
		formatField("Started", r.StartedAt.Local().Format(time.DateTime)),
		formatField("Duration", r.Duration().Round(time.Millisecond).String()),
	)
	if r.DryRun {
		lines = append(lines, formatField("Mode", "dry run"))
	}
	if r.Error != "" {
		lines = append(lines, formatField("Error", v.styles.Error.Render(r.Error)))
	}

	lines = append(lines, "")
	if r.Kind == domain.RunExport {
		lines = append(lines, fmt.Sprintf("Datasets: %d exported, %d skipped", s.DatasetsExported, s.DatasetsSkipped))
	} else {
		lines = append(lines,
			fmt.Sprintf("Datasets: %d created, %d updated, %d skipped",
				s.DatasetsCreated, s.DatasetsUpdated, s.DatasetsSkipped),
			fmt.Sprintf("Resources: %d created, %d updated, %d deleted, %d unchanged",
				s.ResourcesCreated, s.ResourcesUpdated, s.ResourcesDeleted, s.ResourcesUnchanged),
		)
	}
	if s.RecordErrors > 0 || s.Warnings > 0 {
		lines = append(lines, v.styles.Warning.Render(
			fmt.Sprintf("%d record errors, %d warnings", s.RecordErrors, s.Warnings)))
	}

	if len(r.Entries) > 0 {
		lines = append(lines, "", v.styles.Subtitle.Render("Plan:"))
	}
	for _, e := range r.Entries {
		line := fmt.Sprintf("row %d: %s %q", e.Row, e.Action, e.Title)
		if e.NodeID != "" {
			line += " (node " + e.NodeID + ")"
		}
		if e.Action == domain.DatasetFailed {
			line = v.styles.Error.Render(line)
		}
		lines = append(lines, line)
		if e.Message != "" {
			lines = append(lines, "    "+e.Message)
		}
		for _, op := range e.Operations {
			lines = append(lines, fmt.Sprintf("    %s resource %q", op.Kind, op.Title))
			for _, reason := range op.Reasons {
				lines = append(lines, "      "+v.styles.Muted.Render(reason))
			}
		}
		for _, w := range e.Warnings {
			lines = append(lines, "    "+v.styles.Warning.Render("warning: "+w))
		}
	}
	return strings.Join(lines, "\n")
}

func formatField(label, value string) string {
	return fmt.Sprintf("%-10s %s", label+":", value)
}

// View renders the run detail view.
func (v *View) View() string {
	var b strings.Builder

	heading := "Run"
	if v.run != nil {
		heading += " " + v.run.ID
	}
	b.WriteString(v.styles.Title.Render(heading))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", min(max(v.viewport.Width-4, 10), 60)))
	b.WriteString("\n")

	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case v.run == nil:
		b.WriteString(v.styles.Muted.Render("No run selected"))
	default:
		b.WriteString(v.viewport.View())
	}

	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render(keymap.HelpLine(v.keys.DetailHelp())))
	return b.String()
}
