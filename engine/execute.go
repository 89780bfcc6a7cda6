package engine

import (
	"context"
	"fmt"
	"maps"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathoo/petcore/engine/dialogue"
	"github.com/nathoo/petcore/engine/effects"
	"github.com/nathoo/petcore/engine/resolve"
	"github.com/nathoo/petcore/types"
)

var tracer = otel.Tracer("petcore/engine")

// Execute runs one task as a character action. It is the task queue's
// handler: a false result or an error makes the queue retry the task.
//
// The character is marked acting before the first suspension point and
// idle again when the action ends, whatever the outcome. Within an action
// the order is fixed: animation, status change, dialogue, resource
// effects, battle, scene change. A retried task skips the effects and the
// battle an earlier attempt already completed.
func (e *Engine) Execute(ctx context.Context, task types.Task) (ok bool, err error) {
	character := e.characterOf(task)

	ctx, span := tracer.Start(ctx, "engine.execute",
		trace.WithAttributes(
			attribute.String("task.id", task.ID),
			attribute.String("task.action", task.Action),
			attribute.String("task.sender", task.Sender),
			attribute.String("character.id", character),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ch, err := e.registry.Character(character)
	if err != nil {
		return false, err
	}
	action, err := e.registry.Action(character, task.Action)
	if err != nil {
		return false, err
	}

	slot := e.slot(character)
	slot.Lock()
	defer slot.Unlock()
	e.st.Set(ActivityPath(character), ActivityActing)
	defer e.st.Set(ActivityPath(character), ActivityIdle)

	status, _ := e.st.String(effects.StatusPath(character))
	if names := resolve.Animations(action.Animations, status); len(names) > 0 {
		if err := e.animator.PlayAnimationSequence(ctx, character, names); err != nil {
			return false, fmt.Errorf("playing %s animation: %w", action.Name, err)
		}
	}

	effects.SetStatus(e.st, character, action.Status)

	vars := effects.Vars(action.Effects)
	vars["user"] = task.Sender
	maps.Copy(vars, task.Params)
	if lines := dialogue.Narrate(e.rng, action.Dialogues, vars); len(lines) > 0 {
		if err := e.presenter.PresentDialogue(ctx, lines); err != nil {
			return false, fmt.Errorf("presenting %s dialogue: %w", action.Name, err)
		}
	}

	done := e.progress(task.ID)
	if done < stageEffects {
		for _, c := range effects.Apply(e.st, character, ch.Resources, action.Effects) {
			e.logger.Debug("resource changed",
				"character", character,
				"key", c.Key,
				"old", c.Old,
				"new", c.New)
		}
		e.advance(task.ID, stageEffects)
	}

	opponent := action.Battle
	if p, ok := task.Params["opponent"].(string); ok && p != "" {
		opponent = p
	}
	if opponent != "" && done < stageBattle {
		if _, err := e.RunBattle(ctx, opponent); err != nil {
			return false, err
		}
		e.advance(task.ID, stageBattle)
	}

	if action.NextScene != "" {
		params := maps.Clone(task.Params)
		if params == nil {
			params = map[string]any{}
		}
		e.st.Set(PathTransmit, params)
		e.st.Set(PathScene, action.NextScene)
		if err := e.scenes.ChangeScene(ctx, action.NextScene, params); err != nil {
			return false, fmt.Errorf("changing scene to %s: %w", action.NextScene, err)
		}
	}

	e.finish(task.ID)
	ActionsExecuted.WithLabelValues(character, action.Name).Inc()
	return true, nil
}

// stage is how far a task got through the steps that change state. A retry
// resumes after the last completed one, so effects and battles run once per
// task however many attempts it takes.
type stage int

const (
	stageNone stage = iota
	stageEffects
	stageBattle
)

func (e *Engine) progress(id string) stage {
	if id == "" {
		return stageNone
	}
	e.stagesMu.Lock()
	defer e.stagesMu.Unlock()
	return e.stages[id]
}

func (e *Engine) advance(id string, s stage) {
	if id == "" {
		return
	}
	e.stagesMu.Lock()
	defer e.stagesMu.Unlock()
	e.stages[id] = s
}

// finish forgets the progress of a completed task and of every task the
// queue has since dropped.
func (e *Engine) finish(id string) {
	e.stagesMu.Lock()
	defer e.stagesMu.Unlock()
	delete(e.stages, id)
	if len(e.stages) == 0 {
		return
	}
	queued := map[string]bool{}
	for _, t := range e.queue.Tasks() {
		queued[t.ID] = true
	}
	for pending := range e.stages {
		if !queued[pending] {
			delete(e.stages, pending)
		}
	}
}
