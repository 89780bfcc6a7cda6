package engine

import (
	"context"
	"time"

	"github.com/nathoo/petcore/engine/effects"
	"github.com/nathoo/petcore/engine/resolve"
	"github.com/nathoo/petcore/engine/rng"
)

func (e *Engine) idleLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.idleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Idle(ctx)
		}
	}
}

// Idle plays one idle action of the main character, chosen by priority.
// Nothing happens while the simulation is paused, while tasks are queued or
// while the character is acting. It returns the name of the action played.
func (e *Engine) Idle(ctx context.Context) (string, bool) {
	character := e.defs.Game.Character
	ch, err := e.registry.Character(character)
	if err != nil || len(ch.IdleActions) == 0 {
		return "", false
	}
	if e.Paused() || e.queue.Busy() {
		return "", false
	}

	slot := e.slot(character)
	if !slot.TryLock() {
		return "", false
	}
	defer slot.Unlock()

	a, idx := rng.Select(e.rng, ch.IdleActions)
	if idx < 0 {
		return "", false
	}
	e.st.Set(IdlePath(character), a.Name)

	status, _ := e.st.String(effects.StatusPath(character))
	if names := resolve.Animations(a.Animations, status); len(names) > 0 {
		if err := e.animator.PlayAnimationSequence(ctx, character, names); err != nil {
			e.logger.Warn("idle animation failed", "character", character, "action", a.Name, "error", err)
		}
	}
	return a.Name, true
}
