package runs

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dkansync/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/dkansync/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/dkansync/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/dkansync/internal/core/domain"
)

func testRuns() []domain.Run {
	start := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	return []domain.Run{
		{ID: "r3", Kind: domain.RunImport, File: "neu.xlsx", StartedAt: start, FinishedAt: start.Add(time.Second)},
		{ID: "r2", Kind: domain.RunExport, File: "portal.csv", StartedAt: start, Error: "aborted"},
		{ID: "r1", Kind: domain.RunImport, File: "alt.xlsx", DryRun: true, StartedAt: start, FinishedAt: start},
	}
}

func newTestView() *View {
	v := NewView(styles.DefaultStyles(), keymap.DefaultKeyMap())
	v.SetDimensions(80, 24)
	v.SetRuns(testRuns())
	return v
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestView_Navigation(t *testing.T) {
	v := newTestView()

	assert.Equal(t, "r3", v.Selected().ID)
	v, _ = v.Update(key("down"))
	v, _ = v.Update(key("j"))
	v, _ = v.Update(key("j"))
	assert.Equal(t, "r1", v.Selected().ID)
	v, _ = v.Update(key("k"))
	assert.Equal(t, "r2", v.Selected().ID)
	v, _ = v.Update(key("up"))
	v, _ = v.Update(key("up"))
	assert.Equal(t, "r3", v.Selected().ID)
}

func TestView_SelectEmitsRunSelected(t *testing.T) {
	v := newTestView()
	v, _ = v.Update(key("down"))

	_, cmd := v.Update(key("enter"))

	require.NotNil(t, cmd)
	assert.Equal(t, messages.RunSelected{ID: "r2"}, cmd())
}

func TestView_SelectOnEmptyList(t *testing.T) {
	v := NewView(styles.DefaultStyles(), keymap.DefaultKeyMap())

	_, cmd := v.Update(key("enter"))

	assert.Nil(t, cmd)
	assert.Nil(t, v.Selected())
	assert.Contains(t, v.View(), "No runs recorded.")
}

func TestView_SetRunsClampsCursor(t *testing.T) {
	v := newTestView()
	v, _ = v.Update(key("down"))
	v, _ = v.Update(key("down"))

	v.SetRuns(testRuns()[:1])

	assert.Equal(t, "r3", v.Selected().ID)
}

func TestView_Render(t *testing.T) {
	v := newTestView()
	v.SetStatus("Response cache cleared")

	out := v.View()

	assert.Contains(t, out, "Run History")
	assert.Contains(t, out, "neu.xlsx")
	assert.Contains(t, out, "portal.csv")
	assert.Contains(t, out, "import (dry)")
	assert.Contains(t, out, "aborted")
	assert.Contains(t, out, "Response cache cleared")
	assert.Contains(t, out, "[enter] open")
}

func TestView_ScrollsWithCursor(t *testing.T) {
	v := newTestView()
	v.SetDimensions(80, 7)

	v, _ = v.Update(key("down"))
	out := v.View()

	assert.NotContains(t, out, "neu.xlsx")
	assert.Contains(t, out, "portal.csv")
}
