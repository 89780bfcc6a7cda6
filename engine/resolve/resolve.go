// Package resolve maps the string keys of tasks and battles to their
// compiled definitions.
package resolve

import (
	"github.com/samber/oops"

	"github.com/nathoo/petcore/types"
)

// Error codes for lookup failures.
const (
	CodeUnknownAction    = "UNKNOWN_ACTION"
	CodeUnknownCharacter = "UNKNOWN_CHARACTER"
	CodeUnknownBattler   = "UNKNOWN_BATTLER"
)

// ErrUnknownAction creates an error for an action the character does not define.
func ErrUnknownAction(character, action string) error {
	return oops.Code(CodeUnknownAction).
		With("character", character).
		With("action", action).
		Errorf("character %q has no action %q", character, action)
}

// ErrUnknownCharacter creates an error for an undefined character.
func ErrUnknownCharacter(character string) error {
	return oops.Code(CodeUnknownCharacter).
		With("character", character).
		Errorf("unknown character %q", character)
}

// ErrUnknownBattler creates an error for an undefined battle participant.
func ErrUnknownBattler(battler string) error {
	return oops.Code(CodeUnknownBattler).
		With("battler", battler).
		Errorf("unknown battler %q", battler)
}

// Registry indexes the action tables of every character by name, so that
// adding an action is a change to game content, not to code.
type Registry struct {
	defs    *types.Defs
	actions map[string]map[string]int // character -> action name -> index
}

// NewRegistry builds the index for defs.
func NewRegistry(defs *types.Defs) *Registry {
	r := &Registry{
		defs:    defs,
		actions: make(map[string]map[string]int, len(defs.Characters)),
	}
	for id, ch := range defs.Characters {
		idx := make(map[string]int, len(ch.Actions))
		for i, a := range ch.Actions {
			if _, dup := idx[a.Name]; !dup {
				idx[a.Name] = i
			}
		}
		r.actions[id] = idx
	}
	return r
}

// Character returns the definition of a character.
func (r *Registry) Character(id string) (types.CharacterDef, error) {
	ch, ok := r.defs.Characters[id]
	if !ok {
		return types.CharacterDef{}, ErrUnknownCharacter(id)
	}
	return ch, nil
}

// Action returns the named action of a character.
func (r *Registry) Action(character, name string) (types.ActionDef, error) {
	idx, ok := r.actions[character]
	if !ok {
		return types.ActionDef{}, ErrUnknownCharacter(character)
	}
	i, ok := idx[name]
	if !ok {
		return types.ActionDef{}, ErrUnknownAction(character, name)
	}
	return r.defs.Characters[character].Actions[i], nil
}

// AutoActions returns the self-triggering actions of a character in
// declaration order.
func (r *Registry) AutoActions(character string) []types.ActionDef {
	var out []types.ActionDef
	for _, a := range r.defs.Characters[character].Actions {
		if a.Auto && len(a.Conditions) > 0 {
			out = append(out, a)
		}
	}
	return out
}

// Battler returns the definition of a battle participant.
func (r *Registry) Battler(id string) (types.BattlerDef, error) {
	b, ok := r.defs.Battlers[id]
	if !ok {
		return types.BattlerDef{}, ErrUnknownBattler(id)
	}
	return b, nil
}

// Animations picks the animation sequence for a status, falling back to
// the "default" entry.
func Animations(set map[string][]string, status string) []string {
	if names, ok := set[status]; ok {
		return names
	}
	return set["default"]
}
