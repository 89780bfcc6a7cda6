package rules

import (
	"testing"

	"github.com/nathoo/petcore/engine/store"
	"github.com/nathoo/petcore/types"
)

func condTestStore() *store.Store {
	s := store.New()
	s.Set("pet.hp", 0.0)
	s.Set("pet.coin", 50)
	s.Set("pet.status", "alive")
	s.Set("global.is_paused", false)
	return s
}

func TestEvalCondition(t *testing.T) {
	s := condTestStore()

	tests := []struct {
		name string
		cond types.Condition
		want bool
	}{
		{
			name: "scalar equality",
			cond: types.Condition{Path: "pet.status", Value: "alive"},
			want: true,
		},
		{
			name: "scalar inequality",
			cond: types.Condition{Path: "pet.status", Value: "dead"},
			want: false,
		},
		{
			name: "numeric equality across int and float",
			cond: types.Condition{Path: "pet.hp", Op: "==", Value: 0},
			want: true,
		},
		{
			name: "number never equals string",
			cond: types.Condition{Path: "pet.hp", Value: "0"},
			want: false,
		},
		{
			name: "bool equality",
			cond: types.Condition{Path: "global.is_paused", Value: false},
			want: true,
		},
		{
			name: "not equal",
			cond: types.Condition{Path: "pet.status", Op: "!=", Value: "dead"},
			want: true,
		},
		{
			name: "list membership",
			cond: types.Condition{Path: "pet.status", Op: "in", Values: []any{"sleeping", "alive"}},
			want: true,
		},
		{
			name: "list membership miss",
			cond: types.Condition{Path: "pet.status", Op: "in", Values: []any{"sleeping", "dead"}},
			want: false,
		},
		{
			name: "greater or equal",
			cond: types.Condition{Path: "pet.coin", Op: ">=", Value: 50},
			want: true,
		},
		{
			name: "greater than",
			cond: types.Condition{Path: "pet.coin", Op: ">", Value: 50},
			want: false,
		},
		{
			name: "less or equal",
			cond: types.Condition{Path: "pet.hp", Op: "<=", Value: 0},
			want: true,
		},
		{
			name: "less than",
			cond: types.Condition{Path: "pet.coin", Op: "<", Value: 100.5},
			want: true,
		},
		{
			name: "ordered comparison on a string fails",
			cond: types.Condition{Path: "pet.status", Op: ">", Value: 1},
			want: false,
		},
		{
			name: "unset path",
			cond: types.Condition{Path: "pet.level", Value: 1},
			want: false,
		},
		{
			name: "unset path is not equal to anything",
			cond: types.Condition{Path: "pet.level", Op: "!=", Value: 1},
			want: true,
		},
		{
			name: "unknown op",
			cond: types.Condition{Path: "pet.hp", Op: "~=", Value: 0},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvalCondition(tt.cond, s.Get)
			if got != tt.want {
				t.Errorf("EvalCondition(%+v) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestEvalAll(t *testing.T) {
	s := condTestStore()

	if !EvalAll(nil, s.Get) {
		t.Error("empty condition list should be true")
	}

	conds := []types.Condition{
		{Path: "pet.status", Value: "alive"},
		{Path: "pet.hp", Op: "<=", Value: 0},
	}
	if !EvalAll(conds, s.Get) {
		t.Error("expected all conditions to pass")
	}

	conds = append(conds, types.Condition{Path: "pet.coin", Op: ">", Value: 1000})
	if EvalAll(conds, s.Get) {
		t.Error("expected AND to fail when one condition fails")
	}
}
