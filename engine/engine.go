// Package engine provides the character behavior controller. It turns
// inbound messages into queued tasks, runs each task as one character
// action, keeps the status drains and idle behavior ticking, and hands
// battle tasks to the battle resolver.
//
// All mutable state lives in the store. The engine itself only holds
// timers, subscriptions and the per-character action slots.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nathoo/petcore/engine/effects"
	"github.com/nathoo/petcore/engine/events"
	"github.com/nathoo/petcore/engine/queue"
	"github.com/nathoo/petcore/engine/resolve"
	"github.com/nathoo/petcore/engine/rng"
	"github.com/nathoo/petcore/engine/rules"
	"github.com/nathoo/petcore/engine/store"
	"github.com/nathoo/petcore/types"
)

// Well-known store paths.
const (
	PathMessages         = "queue.messages"
	PathBattleResult     = "battle.result"
	PathBattleOpponent   = "battle.opponent"
	PathBattleSelfHP     = "battle.self.hp"
	PathBattleOpponentHP = "battle.opponent.hp"
	PathTransmit         = "global.transmit"
	PathScene            = "global.scene"
	PathPaused           = "global.is_paused"
)

// Activity values held at ActivityPath.
const (
	ActivityIdle   = "idle"
	ActivityActing = "acting"
)

// DefaultIdleInterval is how often an idle character picks an idle action.
const DefaultIdleInterval = 10 * time.Second

// ActivityPath returns the store path of a character's activity.
func ActivityPath(character string) string {
	return store.Join(character, "activity")
}

// IdlePath returns the store path of a character's last idle action.
func IdlePath(character string) string {
	return store.Join(character, "idle")
}

// Animator plays animation sequences for a character and returns once
// they finish.
type Animator interface {
	PlayAnimationSequence(ctx context.Context, character string, names []string) error
}

// Presenter shows dialogue lines and returns once the last one has been
// advanced.
type Presenter interface {
	PresentDialogue(ctx context.Context, lines []types.DialogueLine) error
}

// SceneChanger switches to another scene.
type SceneChanger interface {
	ChangeScene(ctx context.Context, scene string, params map[string]any) error
}

type nopCollaborator struct{}

func (nopCollaborator) PlayAnimationSequence(context.Context, string, []string) error { return nil }
func (nopCollaborator) PresentDialogue(context.Context, []types.DialogueLine) error  { return nil }
func (nopCollaborator) ChangeScene(context.Context, string, map[string]any) error    { return nil }

// Option configures an Engine.
type Option func(*Engine)

// WithAnimator sets the animation collaborator.
func WithAnimator(a Animator) Option {
	return func(e *Engine) { e.animator = a }
}

// WithPresenter sets the dialogue collaborator.
func WithPresenter(p Presenter) Option {
	return func(e *Engine) { e.presenter = p }
}

// WithSceneChanger sets the scene collaborator.
func WithSceneChanger(s SceneChanger) Option {
	return func(e *Engine) { e.scenes = s }
}

// WithRNG sets the random source used for every priority selection.
func WithRNG(r *rng.RNG) Option {
	return func(e *Engine) { e.rng = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithInterval sets the delay the task queue waits before each attempt.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

// WithIdleInterval sets the idle tick. Zero or negative disables idle behavior.
func WithIdleInterval(d time.Duration) Option {
	return func(e *Engine) { e.idleInterval = d }
}

// WithMaxRetries sets the retry budget of a failing task.
func WithMaxRetries(n int) Option {
	return func(e *Engine) { e.maxRetries = n }
}

type subscription struct {
	path string
	id   store.WatchID
}

// Engine is the character behavior controller.
type Engine struct {
	defs     *types.Defs
	st       *store.Store
	registry *resolve.Registry
	queue    *queue.Queue
	rng      *rng.RNG
	logger   *slog.Logger

	animator  Animator
	presenter Presenter
	scenes    SceneChanger

	interval     time.Duration
	idleInterval time.Duration
	maxRetries   int

	slotsMu sync.Mutex
	slots   map[string]*sync.Mutex

	stagesMu sync.Mutex
	stages   map[string]stage

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	stopped  bool
	subs     []subscription
	triggers []*events.Trigger
	drains   map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// New creates an engine for defs over st. Nothing runs until Start.
func New(defs *types.Defs, st *store.Store, opts ...Option) *Engine {
	e := &Engine{
		defs:         defs,
		st:           st,
		registry:     resolve.NewRegistry(defs),
		logger:       slog.Default(),
		animator:     nopCollaborator{},
		presenter:    nopCollaborator{},
		scenes:       nopCollaborator{},
		interval:     queue.DefaultInterval,
		idleInterval: DefaultIdleInterval,
		maxRetries:   queue.DefaultMaxRetries,
		slots:        map[string]*sync.Mutex{},
		stages:       map[string]stage{},
		drains:       map[string]context.CancelFunc{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		seed, err := rng.NewSeed()
		if err != nil {
			seed = time.Now().UnixNano()
		}
		e.rng = rng.NewRNG(seed)
	}
	e.queue = queue.New(st, e.Execute,
		queue.WithInterval(e.interval),
		queue.WithMaxRetries(e.maxRetries),
		queue.WithLogger(e.logger))
	return e
}

// Store returns the engine's state store.
func (e *Engine) Store() *store.Store { return e.st }

// Queue returns the engine's task queue.
func (e *Engine) Queue() *queue.Queue { return e.queue }

// Defs returns the game definitions.
func (e *Engine) Defs() *types.Defs { return e.defs }

// RNG returns the engine's random source.
func (e *Engine) RNG() *rng.RNG { return e.rng }

// InitDefaults seeds every path the engine reads, without touching paths
// that already hold a value, for example from a loaded snapshot.
func (e *Engine) InitDefaults() {
	for id, ch := range e.defs.Characters {
		for _, r := range ch.Resources {
			e.st.Init(effects.Path(id, r.Key), r.Initial)
		}
		status := ch.Status
		if status == "" {
			status = "alive"
		}
		e.st.Init(effects.StatusPath(id), status)
		e.st.Init(IdlePath(id), "")
		e.st.Set(ActivityPath(id), ActivityIdle)
	}
	e.st.Init(queue.DefaultPath, []types.Task{})
	e.st.Init(PathMessages, []types.Message{})
	e.st.Init(PathBattleResult, "")
	e.st.Init(PathBattleOpponent, "")
	e.st.Init(PathBattleSelfHP, MaxBattleHP)
	e.st.Init(PathBattleOpponentHP, MaxBattleHP)
	e.st.Init(PathTransmit, map[string]any{})
	e.st.Init(PathScene, e.defs.Game.Scene)
	e.st.Init(PathPaused, false)
}

// Start initializes store defaults and starts the queue, the auto
// triggers, the status drains, the idle loop and the battle reward and
// message backlog watchers.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	e.InitDefaults()

	for id, ch := range e.defs.Characters {
		tr := events.NewTrigger(e.st, id, ch.Actions, func(task types.Task) {
			e.queue.EnqueueUrgent(task)
		}, e.logger)
		tr.Start()
		e.mu.Lock()
		e.triggers = append(e.triggers, tr)
		e.mu.Unlock()

		character := id
		e.watch(effects.StatusPath(id), func(newValue, oldValue any) {
			status, _ := newValue.(string)
			if prev, _ := oldValue.(string); status != prev {
				e.restartDrains(character, status)
			}
		})
		status, _ := e.st.String(effects.StatusPath(id))
		e.restartDrains(id, status)
	}

	e.watch(PathBattleResult, func(newValue, _ any) { e.reward(newValue) })
	e.watch(PathMessages, func(_, _ any) { e.drainMessages() })
	e.drainMessages()

	e.queue.Start(e.ctx)

	if e.idleInterval > 0 {
		e.mu.Lock()
		e.wg.Add(1)
		e.mu.Unlock()
		go e.idleLoop(e.ctx)
	}
	e.logger.Info("engine started",
		"character", e.defs.Game.Character,
		"characters", len(e.defs.Characters),
		"mappings", len(e.defs.Mappings))
}

// Destroy stops every timer and subscription. A task already executing
// runs to completion; Done closes once it has.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.stopped = true
		e.mu.Unlock()
		e.queue.Destroy()
		return
	}
	e.stopped = true
	subs := e.subs
	e.subs = nil
	triggers := e.triggers
	e.triggers = nil
	for _, cancel := range e.drains {
		cancel()
	}
	e.drains = map[string]context.CancelFunc{}
	e.cancel()
	e.mu.Unlock()

	for _, s := range subs {
		e.st.Unwatch(s.path, s.id)
	}
	for _, tr := range triggers {
		tr.Stop()
	}
	e.queue.Destroy()
	e.wg.Wait()
}

// Done is closed when the task queue has stopped after Destroy.
func (e *Engine) Done() <-chan struct{} {
	return e.queue.Done()
}

// Receive adds a message to the pending backlog. The backlog is resolved
// into tasks as soon as the engine is started.
func (e *Engine) Receive(msg types.Message) {
	e.st.Update(PathMessages, func(old any) any {
		return append(decodeMessages(old), msg)
	})
}

// Enqueue appends a task to the queue.
func (e *Engine) Enqueue(task types.Task) types.Task {
	return e.queue.Enqueue(task)
}

// EnqueueUrgent inserts a task at the head of the queue.
func (e *Engine) EnqueueUrgent(task types.Task) types.Task {
	return e.queue.EnqueueUrgent(task)
}

// SetPaused pauses or resumes the status drains and idle behavior.
func (e *Engine) SetPaused(paused bool) {
	e.st.Set(PathPaused, paused)
}

// Paused reports whether the simulation is paused.
func (e *Engine) Paused() bool {
	return e.st.Bool(PathPaused)
}

func (e *Engine) watch(path string, fn store.Handler) {
	id := e.st.Watch(path, fn)
	e.mu.Lock()
	e.subs = append(e.subs, subscription{path: path, id: id})
	e.mu.Unlock()
}

// drainMessages resolves every pending message and clears the backlog.
// Messages that match no rule are dropped.
func (e *Engine) drainMessages() {
	v, _ := e.st.Get(PathMessages)
	if len(decodeMessages(v)) == 0 {
		return
	}
	var pending []types.Message
	e.st.Update(PathMessages, func(old any) any {
		pending = decodeMessages(old)
		return []types.Message{}
	})
	for _, msg := range pending {
		task, ok := rules.Resolve(msg, e.defs.Mappings)
		if !ok {
			e.logger.Debug("message matched no rule", "sender", msg.Sender, "text", msg.Text)
			continue
		}
		task = e.queue.Enqueue(task)
		e.logger.Debug("message resolved",
			"sender", msg.Sender,
			"action", task.Action,
			"task_id", task.ID)
	}
}

// reward enqueues the configured follow-up action of a battle outcome and
// clears the outcome once it has been consumed.
func (e *Engine) reward(value any) {
	result, _ := value.(string)
	if result == "" {
		return
	}
	action, ok := e.defs.Game.Rewards[result]
	if !ok || action == "" {
		return
	}
	e.queue.EnqueueUrgent(types.Task{
		Sender: events.SystemSender,
		Action: action,
		Params: map[string]any{
			"character": e.defs.Game.Character,
			"result":    result,
		},
	})
	e.st.Set(PathBattleResult, "")
}

// slot returns the action slot of a character. Holding it means the
// character is busy.
func (e *Engine) slot(character string) *sync.Mutex {
	e.slotsMu.Lock()
	defer e.slotsMu.Unlock()
	m, ok := e.slots[character]
	if !ok {
		m = &sync.Mutex{}
		e.slots[character] = m
	}
	return m
}

// characterOf returns the character a task targets: its "character"
// param, or the game's main character.
func (e *Engine) characterOf(task types.Task) string {
	if c, ok := task.Params["character"].(string); ok && c != "" {
		return c
	}
	return e.defs.Game.Character
}

func decodeMessages(v any) []types.Message {
	switch msgs := v.(type) {
	case nil:
		return nil
	case []types.Message:
		out := make([]types.Message, len(msgs))
		copy(out, msgs)
		return out
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var msgs []types.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil
	}
	return msgs
}
