// Package events fires self-triggering actions when the state they watch
// changes. Evaluation is single pass: the first auto action, in declaration
// order, whose conditions all hold is dispatched, and it is not dispatched
// again until some other action (or none) has matched in between.
package events

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nathoo/petcore/engine/rules"
	"github.com/nathoo/petcore/engine/store"
	"github.com/nathoo/petcore/types"
)

// SystemSender is the sender of tasks raised by the engine itself.
const SystemSender = "system"

// Triggered counts dispatched auto actions.
var Triggered = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "petcore_auto_triggers_total",
		Help: "Total number of self-triggered actions",
	},
	[]string{"character", "action"},
)

// RegisterMetrics registers events package metrics with the given Prometheus registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Triggered)
}

// Dispatcher receives the task of a triggered action.
type Dispatcher func(task types.Task)

// Trigger watches the condition paths of one character's auto actions.
type Trigger struct {
	st        *store.Store
	character string
	actions   []types.ActionDef
	dispatch  Dispatcher
	logger    *slog.Logger

	mu      sync.Mutex
	last    string
	watches map[string]store.WatchID
}

// NewTrigger creates a trigger for the auto actions of character. Actions
// without conditions are ignored.
func NewTrigger(st *store.Store, character string, actions []types.ActionDef, dispatch Dispatcher, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	var autos []types.ActionDef
	for _, a := range actions {
		if a.Auto && len(a.Conditions) > 0 {
			autos = append(autos, a)
		}
	}
	return &Trigger{
		st:        st,
		character: character,
		actions:   autos,
		dispatch:  dispatch,
		logger:    logger,
	}
}

// Paths returns the distinct store paths the trigger depends on.
func (t *Trigger) Paths() []string {
	seen := map[string]bool{}
	var paths []string
	for _, a := range t.actions {
		for _, c := range a.Conditions {
			if !seen[c.Path] {
				seen[c.Path] = true
				paths = append(paths, c.Path)
			}
		}
	}
	return paths
}

// Start subscribes to every condition path.
func (t *Trigger) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.watches != nil {
		return
	}
	t.watches = map[string]store.WatchID{}
	for _, p := range t.Paths() {
		t.watches[p] = t.st.Watch(p, func(_, _ any) { t.Check() })
	}
}

// Stop removes the subscriptions.
func (t *Trigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for p, id := range t.watches {
		t.st.Unwatch(p, id)
	}
	t.watches = nil
}

// Match returns the first auto action whose conditions all hold.
func (t *Trigger) Match() (types.ActionDef, bool) {
	for _, a := range t.actions {
		if rules.EvalAll(a.Conditions, t.st.Get) {
			return a, true
		}
	}
	return types.ActionDef{}, false
}

// Check evaluates the auto actions and dispatches the match, if it differs
// from the last dispatched action. It reports the dispatched action name.
func (t *Trigger) Check() (string, bool) {
	t.mu.Lock()
	a, ok := t.Match()
	if !ok {
		t.last = ""
		t.mu.Unlock()
		return "", false
	}
	if a.Name == t.last {
		t.mu.Unlock()
		return "", false
	}
	t.last = a.Name
	t.mu.Unlock()

	t.logger.Debug("auto action triggered", "character", t.character, "action", a.Name)
	Triggered.WithLabelValues(t.character, a.Name).Inc()
	t.dispatch(types.Task{
		Sender: SystemSender,
		Action: a.Name,
		Params: map[string]any{"character": t.character},
	})
	return a.Name, true
}

// Last returns the name of the last dispatched action, or "" after a check
// in which nothing matched.
func (t *Trigger) Last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
