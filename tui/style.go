package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleNarration = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	stylePortrait = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213")).
			Bold(true)

	styleDialogue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleScene = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")).
			Italic(true)

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindNarration lineKind = iota
	kindDialogue
	kindScene
	kindSystem
	kindError
	kindTrace
	kindInput
)

// renderLine applies the style for a line kind. portrait is only used for
// dialogue.
func renderLine(text, portrait string, kind lineKind) string {
	switch kind {
	case kindDialogue:
		if portrait == "" {
			return styleDialogue.Render(text)
		}
		return stylePortrait.Render(portrait+":") + " " + styleDialogue.Render(text)
	case kindScene:
		return styleScene.Render(text)
	case kindSystem:
		return styleSystem.Render("[" + text + "]")
	case kindError:
		return styleError.Render("[" + text + "]")
	case kindTrace:
		return styleTrace.Render("[trace] " + text)
	case kindInput:
		return stylePlayerInput.Render("> " + text)
	default:
		return styleNarration.Render(text)
	}
}
