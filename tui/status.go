package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/petcore/engine"
	"github.com/nathoo/petcore/engine/effects"
)

// displayName derives a human-readable name from an ID.
// "pocket_pet" -> "Pocket Pet".
func displayName(id string) string {
	words := strings.Split(id, "_")
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// renderStatusBar produces a full-width inverted status line showing the
// main character's status, resources and the queue length.
func (m Model) renderStatusBar() string {
	defs := m.engine.Defs()
	st := m.engine.Store()
	id := defs.Game.Character

	status, _ := st.String(effects.StatusPath(id))
	left := fmt.Sprintf(" %s | %s", displayName(id), status)
	if activity, _ := st.String(engine.ActivityPath(id)); activity == engine.ActivityActing {
		left += " (acting)"
	}
	if m.engine.Paused() {
		left += " | paused"
	}

	var res []string
	for _, r := range defs.Characters[id].Resources {
		v, _ := st.Number(effects.Path(id, r.Key))
		res = append(res, fmt.Sprintf("%s %g", r.Key, v))
	}
	right := fmt.Sprintf("Q:%d ", m.engine.Queue().Len())
	if len(res) > 0 {
		right = strings.Join(res, " ") + " | " + right
	}

	// Show the current animation if it fits.
	if m.animation != "" {
		candidate := "~" + m.animation + " | " + right
		if lipgloss.Width(left)+lipgloss.Width(candidate)+2 < m.width {
			right = candidate
		}
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
