package events

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nathoo/petcore/engine/store"
	"github.com/nathoo/petcore/types"
)

func testActions() []types.ActionDef {
	return []types.ActionDef{
		{Name: "feed"},
		{
			Name: "die",
			Auto: true,
			Conditions: []types.Condition{
				{Path: "pet.hp", Op: "<=", Value: 0},
			},
		},
		{
			Name: "starve",
			Auto: true,
			Conditions: []types.Condition{
				{Path: "pet.hp", Op: "<=", Value: 20},
				{Path: "pet.status", Op: "!=", Value: "dead"},
			},
		},
		{Name: "noop", Auto: true},
	}
}

type sink struct {
	tasks []types.Task
}

func (s *sink) dispatch(task types.Task) {
	s.tasks = append(s.tasks, task)
}

func (s *sink) actions() []string {
	var out []string
	for _, t := range s.tasks {
		out = append(out, t.Action)
	}
	return out
}

func setup() (*store.Store, *sink, *Trigger) {
	st := store.New()
	st.Set("pet.hp", 100.0)
	st.Set("pet.status", "alive")
	s := &sink{}
	tr := NewTrigger(st, "pet", testActions(), s.dispatch, nil)
	tr.Start()
	return st, s, tr
}

func TestTrigger_Paths(t *testing.T) {
	_, _, tr := setup()
	paths := tr.Paths()
	if len(paths) != 2 || paths[0] != "pet.hp" || paths[1] != "pet.status" {
		t.Errorf("Paths = %v, want [pet.hp pet.status]", paths)
	}
}

func TestTrigger_FiresOnChange(t *testing.T) {
	st, s, _ := setup()

	st.Set("pet.hp", 15.0)

	if len(s.tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(s.tasks))
	}
	task := s.tasks[0]
	if task.Action != "starve" || task.Sender != SystemSender {
		t.Errorf("task = %+v, want starve from system", task)
	}
	if task.Params["character"] != "pet" {
		t.Errorf("character param = %v, want pet", task.Params["character"])
	}
}

func TestTrigger_FirstMatchInDeclarationOrder(t *testing.T) {
	st, s, _ := setup()

	// Both die and starve hold at hp 0; die is declared first.
	st.Set("pet.hp", 0.0)

	if got := s.actions(); len(got) != 1 || got[0] != "die" {
		t.Errorf("dispatched %v, want [die]", got)
	}
}

func TestTrigger_Dedup(t *testing.T) {
	st, s, _ := setup()

	st.Set("pet.hp", 15.0)
	st.Set("pet.hp", 10.0)
	st.Set("pet.status", "sleeping")

	if got := s.actions(); len(got) != 1 {
		t.Errorf("dispatched %v, want a single starve", got)
	}
}

func TestTrigger_ResetWhenNothingMatches(t *testing.T) {
	st, s, tr := setup()

	st.Set("pet.hp", 15.0)
	st.Set("pet.hp", 50.0)
	if tr.Last() != "" {
		t.Errorf("Last = %q, want empty after no match", tr.Last())
	}
	st.Set("pet.hp", 15.0)

	if got := s.actions(); len(got) != 2 || got[0] != "starve" || got[1] != "starve" {
		t.Errorf("dispatched %v, want [starve starve]", got)
	}
}

func TestTrigger_SwitchBetweenActions(t *testing.T) {
	st, s, _ := setup()

	st.Set("pet.hp", 15.0)
	st.Set("pet.hp", 0.0)

	if got := s.actions(); len(got) != 2 || got[0] != "starve" || got[1] != "die" {
		t.Errorf("dispatched %v, want [starve die]", got)
	}
}

func TestTrigger_Stop(t *testing.T) {
	st, s, tr := setup()
	tr.Stop()

	st.Set("pet.hp", 0.0)

	if len(s.tasks) != 0 {
		t.Errorf("dispatched %v after Stop", s.actions())
	}
	if n := st.WatcherCount("pet.hp"); n != 0 {
		t.Errorf("WatcherCount = %d, want 0", n)
	}
}

func TestTrigger_NoAutoActions(t *testing.T) {
	st := store.New()
	s := &sink{}
	tr := NewTrigger(st, "pet", []types.ActionDef{{Name: "feed"}}, s.dispatch, nil)
	tr.Start()
	if _, ok := tr.Check(); ok {
		t.Error("Check should not dispatch without auto actions")
	}
}

func TestTrigger_Metrics(t *testing.T) {
	st := store.New()
	st.Set("cat.hp", 100.0)
	s := &sink{}
	tr := NewTrigger(st, "cat", testActionsFor("cat"), s.dispatch, nil)
	tr.Start()

	st.Set("cat.hp", 0.0)

	if got := testutil.ToFloat64(Triggered.WithLabelValues("cat", "die")); got != 1 {
		t.Errorf("Triggered = %v, want 1", got)
	}
}

func testActionsFor(character string) []types.ActionDef {
	return []types.ActionDef{{
		Name:       "die",
		Auto:       true,
		Conditions: []types.Condition{{Path: character + ".hp", Op: "<=", Value: 0}},
	}}
}
