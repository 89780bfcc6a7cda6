package tui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/petcore/types"
)

// dialogueMsg carries one spoken line from the engine.
type dialogueMsg struct {
	line types.DialogueLine
}

// animationMsg reports the sequence a character is playing.
type animationMsg struct {
	character string
	names     []string
}

// sceneMsg reports a scene transition.
type sceneMsg struct {
	scene  string
	params map[string]any
}

// Bridge forwards engine output into a running Bubble Tea program. It
// implements the engine's Animator, Presenter and SceneChanger. Output
// produced before Attach is dropped.
type Bridge struct {
	mu    sync.RWMutex
	send  func(tea.Msg)
	delay time.Duration
}

// NewBridge creates a Bridge. delay is the pause after each dialogue line.
func NewBridge(delay time.Duration) *Bridge {
	return &Bridge{delay: delay}
}

// Attach sets the function used to deliver messages, normally
// (*tea.Program).Send.
func (b *Bridge) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

func (b *Bridge) deliver(msg tea.Msg) {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

// PresentDialogue delivers each line, pausing between lines.
func (b *Bridge) PresentDialogue(ctx context.Context, lines []types.DialogueLine) error {
	for _, line := range lines {
		b.deliver(dialogueMsg{line: line})
		if b.delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.delay):
		}
	}
	return nil
}

// PlayAnimationSequence delivers the sequence to the status bar.
func (b *Bridge) PlayAnimationSequence(_ context.Context, character string, names []string) error {
	b.deliver(animationMsg{character: character, names: append([]string(nil), names...)})
	return nil
}

// ChangeScene delivers the scene transition.
func (b *Bridge) ChangeScene(_ context.Context, scene string, params map[string]any) error {
	b.deliver(sceneMsg{scene: scene, params: params})
	return nil
}
