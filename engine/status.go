package engine

import (
	"context"
	"time"

	"github.com/nathoo/petcore/engine/effects"
	"github.com/nathoo/petcore/types"
)

// restartDrains stops the drains of a character's previous status and
// starts the ones declared for status.
func (e *Engine) restartDrains(character, status string) {
	ch, err := e.registry.Character(character)
	if err != nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped || e.ctx == nil {
		return
	}
	if cancel, ok := e.drains[character]; ok {
		cancel()
		delete(e.drains, character)
	}

	def, ok := statusDef(ch, status)
	if !ok || len(def.Drains) == 0 {
		return
	}
	ctx, cancel := context.WithCancel(e.ctx)
	e.drains[character] = cancel
	for _, d := range def.Drains {
		if d.Interval <= 0 {
			continue
		}
		e.wg.Add(1)
		go e.drainLoop(ctx, character, ch.Resources, d)
	}
	e.logger.Debug("status drains started", "character", character, "status", status, "drains", len(def.Drains))
}

func (e *Engine) drainLoop(ctx context.Context, character string, resources []types.ResourceDef, d types.ResourceDrain) {
	defer e.wg.Done()
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tickDrain(character, resources, d)
		}
	}
}

// tickDrain applies one drain step. Drains hold while the simulation is
// paused or the character is acting.
func (e *Engine) tickDrain(character string, resources []types.ResourceDef, d types.ResourceDrain) bool {
	if e.Paused() {
		return false
	}
	if activity, _ := e.st.String(ActivityPath(character)); activity == ActivityActing {
		return false
	}
	effects.Apply(e.st, character, resources, []types.ResourceEffect{
		{Key: d.Key, Method: "add", Value: d.Change},
	})
	return true
}

func statusDef(ch types.CharacterDef, status string) (types.StatusDef, bool) {
	for _, s := range ch.Statuses {
		if s.Name == status {
			return s, true
		}
	}
	return types.StatusDef{}, false
}
