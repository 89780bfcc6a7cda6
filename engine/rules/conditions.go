package rules

import (
	"fmt"

	"github.com/nathoo/petcore/engine/store"
	"github.com/nathoo/petcore/types"
)

// Lookup reads a value by store path. (*store.Store).Get satisfies it.
type Lookup func(path string) (any, bool)

// EvalCondition evaluates a single condition against current store values.
// An unset path only satisfies != and never the ordered comparisons.
func EvalCondition(c types.Condition, lookup Lookup) bool {
	actual, ok := lookup(c.Path)

	switch c.Op {
	case "", "==":
		return ok && equal(actual, c.Value)

	case "!=":
		return !ok || !equal(actual, c.Value)

	case "in":
		if !ok {
			return false
		}
		for _, candidate := range c.Values {
			if equal(actual, candidate) {
				return true
			}
		}
		return false

	case ">", ">=", "<", "<=":
		if !ok {
			return false
		}
		a, aok := store.ToFloat(actual)
		b, bok := store.ToFloat(c.Value)
		if !aok || !bok {
			return false
		}
		switch c.Op {
		case ">":
			return a > b
		case ">=":
			return a >= b
		case "<":
			return a < b
		default:
			return a <= b
		}

	default:
		return false
	}
}

// EvalAll returns true if all conditions pass (AND logic).
// An empty condition list is vacuously true.
func EvalAll(conditions []types.Condition, lookup Lookup) bool {
	for _, c := range conditions {
		if !EvalCondition(c, lookup) {
			return false
		}
	}
	return true
}

// equal compares numbers numerically and everything else by formatted value,
// so 3 from Lua and 3.0 from a JSON snapshot are the same.
func equal(a, b any) bool {
	af, aok := store.ToFloat(a)
	bf, bok := store.ToFloat(b)
	if aok && bok {
		return af == bf
	}
	if aok != bok {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
