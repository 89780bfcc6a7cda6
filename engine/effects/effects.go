// Package effects implements centralized resource mutation through the store.
// Every effect is one atomic read-modify-write of one store path.
package effects

import (
	"github.com/nathoo/petcore/engine/store"
	"github.com/nathoo/petcore/types"
)

// Change records one applied effect.
type Change struct {
	Key string
	Old float64
	New float64
}

// Path returns the store path of a character resource.
func Path(character, key string) string {
	return store.Join(character, key)
}

// StatusPath returns the store path of a character's status.
func StatusPath(character string) string {
	return store.Join(character, "status")
}

// Apply applies resource effects for a character, clamping each result to
// the bounds of its resource. Effects with an unknown method are ignored.
func Apply(st *store.Store, character string, resources []types.ResourceDef, effs []types.ResourceEffect) []Change {
	var changes []Change
	for _, eff := range effs {
		if eff.Method != "add" && eff.Method != "sub" && eff.Method != "set" {
			continue
		}
		def := lookup(resources, eff.Key)
		var old float64
		next := st.Update(Path(character, eff.Key), func(cur any) any {
			old, _ = store.ToFloat(cur)
			v := eff.Value
			switch eff.Method {
			case "add":
				v = old + eff.Value
			case "sub":
				v = old - eff.Value
			}
			return Clamp(v, def)
		})
		n, _ := store.ToFloat(next)
		changes = append(changes, Change{Key: eff.Key, Old: old, New: n})
	}
	return changes
}

// SetStatus moves the character onto another status.
func SetStatus(st *store.Store, character, status string) {
	if status == "" {
		return
	}
	st.Set(StatusPath(character), status)
}

// Clamp bounds v by a resource definition. A zero Max means no upper bound.
func Clamp(v float64, def types.ResourceDef) float64 {
	if v < def.Min {
		v = def.Min
	}
	if def.Max > def.Min && v > def.Max {
		v = def.Max
	}
	return v
}

// Vars returns the template variables of a list of effects: the signed
// amount of each add/sub, or the target of a set.
func Vars(effs []types.ResourceEffect) map[string]any {
	vars := make(map[string]any, len(effs))
	for _, eff := range effs {
		switch eff.Method {
		case "add", "set":
			vars[eff.Key] = eff.Value
		case "sub":
			vars[eff.Key] = -eff.Value
		}
	}
	return vars
}

func lookup(resources []types.ResourceDef, key string) types.ResourceDef {
	for _, r := range resources {
		if r.Key == key {
			return r
		}
	}
	return types.ResourceDef{Key: key}
}
