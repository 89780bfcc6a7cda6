// Package cli provides the plain line-based driver for the petcore engine:
// each input line is a chat message for the pet, lines starting with '/'
// are meta-commands, and engine output is printed as it happens.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nathoo/petcore/engine"
	"github.com/nathoo/petcore/engine/parser"
	"github.com/nathoo/petcore/types"
)

// Printer writes engine output as plain text lines. It implements the
// engine's Animator, Presenter and SceneChanger and is safe for use from
// the engine goroutines.
type Printer struct {
	mu    sync.Mutex
	out   io.Writer
	delay time.Duration
	trace atomic.Bool
}

// NewPrinter creates a Printer writing to out. delay is the pause after
// each dialogue line.
func NewPrinter(out io.Writer, delay time.Duration) *Printer {
	return &Printer{out: out, delay: delay}
}

// SetTrace toggles printing of animations.
func (p *Printer) SetTrace(on bool) { p.trace.Store(on) }

// Trace reports whether animations are printed.
func (p *Printer) Trace() bool { return p.trace.Load() }

// PresentDialogue prints each line, prefixed with its portrait if any.
func (p *Printer) PresentDialogue(ctx context.Context, lines []types.DialogueLine) error {
	for _, line := range lines {
		if line.Portrait != "" {
			p.Printf("%s: %s\n", line.Portrait, line.Text)
		} else {
			p.Printf("%s\n", line.Text)
		}
		if p.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.delay):
			}
		}
	}
	return nil
}

// PlayAnimationSequence prints the sequence when tracing.
func (p *Printer) PlayAnimationSequence(_ context.Context, character string, names []string) error {
	if p.Trace() && len(names) > 0 {
		p.Printf("[trace] %s plays %s\n", character, strings.Join(names, ", "))
	}
	return nil
}

// ChangeScene prints the scene transition.
func (p *Printer) ChangeScene(_ context.Context, scene string, params map[string]any) error {
	if len(params) > 0 {
		p.Printf("[Scene: %s %v]\n", scene, params)
	} else {
		p.Printf("[Scene: %s]\n", scene)
	}
	return nil
}

// Printf writes formatted output under the printer lock.
func (p *Printer) Printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

// CLI handles terminal interaction with the owner.
type CLI struct {
	Engine  *engine.Engine
	Printer *Printer
	In      io.Reader
	// Sender is attributed to lines without a "sender:" prefix.
	Sender string
	// EchoInput echoes each input line after the prompt (for script playback).
	EchoInput bool
	// Sync waits for the queue to drain after every message, so that
	// output follows the line that caused it.
	Sync bool
}

// New creates a CLI wired to the given engine and printer.
func New(eng *engine.Engine, p *Printer) *CLI {
	return &CLI{
		Engine:  eng,
		Printer: p,
		In:      os.Stdin,
		Sender:  parser.DefaultSender,
	}
}

// Run shows the intro, then loops: prompt, input, dispatch. It returns
// when input ends, on /quit, or when ctx is done. The engine must already
// be started.
func (c *CLI) Run(ctx context.Context) error {
	game := c.Engine.Defs().Game
	c.printLine(game.Title)
	if game.Intro != "" {
		c.printLine(game.Intro)
	}
	c.printLine("")

	scanner := bufio.NewScanner(c.In)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.Printer.Printf("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		if strings.HasPrefix(input, "/") {
			if c.handleMeta(ctx, input) {
				return nil
			}
			continue
		}

		msg, ok := parser.ParseLine(input, c.Sender)
		if !ok {
			continue
		}
		c.Engine.Receive(msg)
		if c.Sync {
			if err := c.Engine.Queue().WaitIdle(ctx); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	if c.Sync {
		return c.Engine.Queue().WaitIdle(ctx)
	}
	return nil
}

// handleMeta dispatches meta-commands. Returns true if the session should end.
func (c *CLI) handleMeta(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true

	case "/save":
		c.cmdSave(ctx)

	case "/load":
		c.cmdLoad(ctx)

	case "/help":
		c.cmdHelp()

	case "/state":
		c.cmdState(arg)

	case "/queue":
		c.cmdQueue()

	case "/pause":
		paused := !c.Engine.Paused()
		c.Engine.SetPaused(paused)
		if paused {
			c.printSystem("Paused.")
		} else {
			c.printSystem("Resumed.")
		}

	case "/as":
		if arg == "" {
			c.printSystem(fmt.Sprintf("Speaking as %s.", c.Sender))
			return false
		}
		c.Sender = arg
		c.printSystem(fmt.Sprintf("Speaking as %s.", arg))

	case "/trace":
		c.Printer.SetTrace(!c.Printer.Trace())
		if c.Printer.Trace() {
			c.printSystem("Trace output enabled.")
		} else {
			c.printSystem("Trace output disabled.")
		}

	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}

	return false
}

func (c *CLI) cmdSave(ctx context.Context) {
	if err := c.Engine.Store().SaveAll(ctx); err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	c.printSystem("Game saved.")
}

func (c *CLI) cmdLoad(ctx context.Context) {
	ok, err := c.Engine.Store().LoadAll(ctx)
	switch {
	case err != nil:
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
	case !ok:
		c.printSystem("No saved game found.")
	default:
		c.printSystem("Game loaded.")
	}
}

func (c *CLI) cmdHelp() {
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
	}
	for _, line := range help {
		c.printLine(line)
	}
}

func (c *CLI) cmdState(prefix string) {
	snap := c.Engine.Store().Snapshot()
	paths := make([]string, 0, len(snap))
	for path := range snap {
		if prefix == "" || path == prefix || strings.HasPrefix(path, prefix+".") {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		c.printSystem(fmt.Sprintf("Nothing stored under %q.", prefix))
		return
	}
	for _, path := range paths {
		c.printSystem(fmt.Sprintf("%s = %v", path, snap[path]))
	}
}

func (c *CLI) cmdQueue() {
	tasks := c.Engine.Queue().Tasks()
	if len(tasks) == 0 {
		c.printSystem("Queue is empty.")
		return
	}
	for i, t := range tasks {
		c.printSystem(fmt.Sprintf("%d. %s from %s (%s)", i+1, t.Action, t.Sender, t.ID))
	}
}

func (c *CLI) printLine(text string) {
	c.Printer.Printf("%s\n", text)
}

func (c *CLI) printSystem(text string) {
	c.Printer.Printf("[%s]\n", text)
}
