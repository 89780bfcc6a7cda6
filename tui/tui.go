package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/petcore/engine"
	"github.com/nathoo/petcore/engine/parser"
)

// refreshInterval is how often the status bar re-reads the store, so that
// drains show up without input.
const refreshInterval = time.Second

// rawLine stores an unstyled output line with its classification,
// so we can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text     string
	portrait string
	kind     lineKind
}

// Model is the Bubble Tea model for the petcore TUI.
type Model struct {
	ctx    context.Context
	engine *engine.Engine

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines []rawLine // accumulated transcript lines (unstyled, for re-wrapping)

	sender    string
	animation string

	width    int
	height   int
	ready    bool
	trace    bool
	quitting bool
}

type refreshMsg time.Time

// New creates a TUI model wired to the given engine.
func New(ctx context.Context, eng *engine.Engine) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	return Model{
		ctx:     ctx,
		engine:  eng,
		input:   ti,
		history: NewHistory(100),
		sender:  parser.DefaultSender,
	}
}

// Run starts the Bubble Tea program and routes the bridge's output into it.
// The engine should already be started. Run returns when the owner quits
// or ctx is done.
func Run(ctx context.Context, eng *engine.Engine, b *Bridge) error {
	m := New(ctx, eng)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	b.Attach(p.Send)
	defer b.Attach(nil)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init returns the initial commands: the intro text and the status refresh.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.intro(), refresh())
}

func (m Model) intro() tea.Cmd {
	game := m.engine.Defs().Game
	return func() tea.Msg {
		lines := []rawLine{{text: game.Title + " v" + game.Version}}
		if game.Intro != "" {
			lines = append(lines, rawLine{}, rawLine{text: game.Intro})
		}
		return outputMsg(lines)
	}
}

// outputMsg appends ready-made lines to the transcript.
type outputMsg []rawLine

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Update handles messages (key presses, window resize, engine output).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := max(m.height-2, 1) // 1 status bar + 1 input line

		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}

		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up":
			if prev, ok := m.history.Prev(); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if next, ok := m.history.Next(); ok {
				m.input.SetValue(next)
				m.input.CursorEnd()
			} else {
				m.input.SetValue("")
				m.history.ResetCursor()
			}
			return m, nil

		case "pgup", "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case outputMsg:
		m = m.appendLines(msg...)

	case dialogueMsg:
		m = m.appendLines(rawLine{text: msg.line.Text, portrait: msg.line.Portrait, kind: kindDialogue})

	case animationMsg:
		if msg.character == m.engine.Defs().Game.Character {
			m.animation = strings.Join(msg.names, ",")
		}
		if m.trace {
			m = m.appendLines(rawLine{
				text: fmt.Sprintf("%s plays %s", msg.character, strings.Join(msg.names, ", ")),
				kind: kindTrace,
			})
		}

	case sceneMsg:
		text := "~ " + displayName(msg.scene) + " ~"
		m = m.appendLines(rawLine{}, rawLine{text: text, kind: kindScene})

	case refreshMsg:
		return m, refresh()
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	return m, tea.Batch(cmds...)
}

// handleEnter processes the submitted input line.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if input == "" {
		return m, nil
	}

	m.history.Push(input)
	m.history.ResetCursor()
	m = m.appendLines(rawLine{text: input, kind: kindInput})

	if strings.HasPrefix(input, "/") {
		output, quit := m.handleMeta(input)
		m = m.appendLines(output...)
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	if msg, ok := parser.ParseLine(input, m.sender); ok {
		m.engine.Receive(msg)
	}
	return m, nil
}

// appendLines adds lines to the transcript and refreshes the viewport.
func (m Model) appendLines(lines ...rawLine) Model {
	m.rawLines = append(m.rawLines, lines...)
	m.refreshViewport()
	return m
}

// refreshViewport re-wraps and re-styles all raw lines at the current width
// and updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	width := max(m.width, 10)

	styled := make([]string, 0, len(m.rawLines))
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}
		styled = append(styled, renderLine(wordWrap(rl.text, width), rl.portrait, rl.kind))
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// wordWrap wraps text to fit within the given width, breaking at word
// boundaries.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	words := strings.Fields(text)
	lineLen := 0

	for i, word := range words {
		wLen := len(word)

		if i == 0 {
			result.WriteString(word)
			lineLen = wLen
			continue
		}

		if lineLen+1+wLen > width {
			result.WriteString("\n")
			result.WriteString(word)
			lineLen = wLen
		} else {
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + wLen
		}
	}

	return result.String()
}

// View renders the full TUI layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

func system(format string, args ...any) rawLine {
	return rawLine{text: fmt.Sprintf(format, args...), kind: kindSystem}
}

func failure(format string, args ...any) rawLine {
	return rawLine{text: fmt.Sprintf(format, args...), kind: kindError}
}

// handleMeta dispatches meta-commands. Returns output lines and quit flag.
func (m *Model) handleMeta(input string) ([]rawLine, bool) {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		return []rawLine{system("Goodbye.")}, true

	case "/save":
		if err := m.engine.Store().SaveAll(m.ctx); err != nil {
			return []rawLine{failure("Save failed: %v", err)}, false
		}
		return []rawLine{system("Game saved.")}, false

	case "/load":
		ok, err := m.engine.Store().LoadAll(m.ctx)
		switch {
		case err != nil:
			return []rawLine{failure("Load failed: %v", err)}, false
		case !ok:
			return []rawLine{system("No saved game found.")}, false
		}
		return []rawLine{system("Game loaded.")}, false

	case "/help":
		return m.cmdHelp(), false

	case "/state":
		return m.cmdState(arg), false

	case "/queue":
		return m.cmdQueue(), false

	case "/pause":
		paused := !m.engine.Paused()
		m.engine.SetPaused(paused)
		if paused {
			return []rawLine{system("Paused.")}, false
		}
		return []rawLine{system("Resumed.")}, false

	case "/as":
		if arg != "" {
			m.sender = arg
		}
		return []rawLine{system("Speaking as %s.", m.sender)}, false

	case "/trace":
		m.trace = !m.trace
		if m.trace {
			return []rawLine{system("Trace output enabled.")}, false
		}
		return []rawLine{system("Trace output disabled.")}, false

	default:
		return []rawLine{failure("Unknown command: %s. Type /help for available commands.", cmd)}, false
	}
}

func (m *Model) cmdHelp() []rawLine {
	help := []string{
		"System:",
		"  /save          Save the pet",
		"  /load          Restore the last save",
		"  /state [path]  Dump store values, optionally under a path prefix",
		"  /queue         Show pending tasks",
		"  /pause         Pause or resume drains and idle behavior",
		"  /as <sender>   Speak as someone else",
		"  /trace         Toggle animation trace output",
		"  /help          Show this help",
		"  /quit          Exit",
		"",
		"Anything else is said to the pet. Prefix a line with \"name:\" to",
		"speak as name for that line only.",
		"",
		"Navigation: PgUp/PgDn to scroll, Up/Down for input history",
	}
	out := make([]rawLine, len(help))
	for i, line := range help {
		out[i] = rawLine{text: line}
	}
	return out
}

func (m *Model) cmdState(prefix string) []rawLine {
	snap := m.engine.Store().Snapshot()
	paths := make([]string, 0, len(snap))
	for path := range snap {
		if prefix == "" || path == prefix || strings.HasPrefix(path, prefix+".") {
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		return []rawLine{system("Nothing stored under %q.", prefix)}
	}
	sort.Strings(paths)
	out := make([]rawLine, len(paths))
	for i, path := range paths {
		out[i] = system("%s = %v", path, snap[path])
	}
	return out
}

func (m *Model) cmdQueue() []rawLine {
	tasks := m.engine.Queue().Tasks()
	if len(tasks) == 0 {
		return []rawLine{system("Queue is empty.")}
	}
	out := make([]rawLine, len(tasks))
	for i, t := range tasks {
		out[i] = system("%d. %s from %s (%s)", i+1, t.Action, t.Sender, t.ID)
	}
	return out
}

// viewportKeyMap returns a viewport keymap with Up/Down disabled
// (we use those for input history).
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
