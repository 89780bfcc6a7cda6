package loader

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/nathoo/petcore/types"
)

// MaxBattlerHP is the largest hp a battler may declare.
const MaxBattlerHP = 100

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

func (e *ValidationError) errorf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

func (e *ValidationError) warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

var validMethods = map[string]bool{"add": true, "sub": true, "set": true}

var validOps = map[string]bool{
	"": true, "==": true, "!=": true,
	">": true, ">=": true, "<": true, "<=": true,
	"in": true,
}

var validResults = map[string]bool{"start": true, "win": true, "lose": true, "finish": true}

var messageFields = map[string]bool{"sender": true, "text": true}

// Validate checks compiled defs for referential integrity and consistency.
// It returns the warnings found, and a *ValidationError when any check
// failed.
func Validate(defs *types.Defs) ([]string, error) {
	ve := &ValidationError{}

	if defs.Game.Title == "" {
		ve.errorf("Game.title is required")
	}
	if defs.Game.Version == "" {
		ve.errorf("Game.version is required")
	} else if _, err := semver.NewVersion(defs.Game.Version); err != nil {
		ve.errorf("Game.version %q is not a semantic version: %v", defs.Game.Version, err)
	}

	main, ok := defs.Characters[defs.Game.Character]
	switch {
	case defs.Game.Character == "":
		ve.errorf("Game.character is required")
	case !ok:
		ve.errorf("Game.character %q is not a defined character", defs.Game.Character)
	}

	if len(defs.Battlers) > 0 {
		if _, ok := defs.Battlers[defs.Game.Self]; !ok {
			ve.errorf("Game.self %q is not a defined battler", defs.Game.Self)
		}
	}

	for _, outcome := range slices.Sorted(maps.Keys(defs.Game.Rewards)) {
		if outcome != "win" && outcome != "lose" {
			ve.warnf("reward for unknown battle outcome %q is never used", outcome)
		}
		action := defs.Game.Rewards[outcome]
		if ok && !hasAction(main, action) {
			ve.errorf("reward %q references undefined action %q", outcome, action)
		}
	}

	for _, id := range slices.Sorted(maps.Keys(defs.Characters)) {
		validateCharacter(defs.Characters[id], defs, ve)
	}

	for _, id := range slices.Sorted(maps.Keys(defs.Battlers)) {
		validateBattler(defs.Battlers[id], ve)
	}

	for i, rule := range defs.Mappings {
		validateMapping(i, rule, defs, ve)
	}

	if len(ve.Errors) > 0 {
		return ve.Warnings, ve
	}
	return ve.Warnings, nil
}

func validateCharacter(c types.CharacterDef, defs *types.Defs, ve *ValidationError) {
	resources := map[string]bool{}
	for _, r := range c.Resources {
		if r.Key == "" {
			ve.errorf("character %q declares a resource without a key", c.ID)
			continue
		}
		if resources[r.Key] {
			ve.errorf("character %q declares resource %q twice", c.ID, r.Key)
		}
		resources[r.Key] = true
		if r.Max > 0 && r.Max < r.Min {
			ve.errorf("character %q resource %q has max %g below min %g", c.ID, r.Key, r.Max, r.Min)
			continue
		}
		if r.Initial < r.Min || (r.Max > 0 && r.Initial > r.Max) {
			ve.warnf("character %q resource %q initial %g is outside its bounds and will be clamped",
				c.ID, r.Key, r.Initial)
		}
	}

	statuses := map[string]bool{}
	for _, s := range c.Statuses {
		if statuses[s.Name] {
			ve.errorf("character %q declares status %q twice", c.ID, s.Name)
		}
		statuses[s.Name] = true
		for _, d := range s.Drains {
			if !resources[d.Key] {
				ve.errorf("character %q status %q drains undefined resource %q", c.ID, s.Name, d.Key)
			}
			if d.Interval <= 0 {
				ve.errorf("character %q status %q drain %q needs a positive interval", c.ID, s.Name, d.Key)
			}
		}
	}
	if len(c.Statuses) > 0 && !statuses[c.Status] {
		ve.warnf("character %q starts with status %q which declares no drains", c.ID, c.Status)
	}

	for _, idle := range c.IdleActions {
		if idle.Priority < 0 {
			ve.errorf("character %q idle action %q has negative priority", c.ID, idle.Name)
		}
		if len(idle.Animations) == 0 {
			ve.warnf("character %q idle action %q plays no animation", c.ID, idle.Name)
		}
	}

	names := map[string]bool{}
	for _, a := range c.Actions {
		where := fmt.Sprintf("character %q action %q", c.ID, a.Name)
		if a.Name == "" {
			ve.errorf("character %q declares an action without a name", c.ID)
		} else if names[a.Name] {
			ve.errorf("character %q declares action %q twice", c.ID, a.Name)
		}
		names[a.Name] = true

		for _, eff := range a.Effects {
			if !validMethods[eff.Method] {
				ve.errorf("%s has unknown effect method %q", where, eff.Method)
			}
			if !resources[eff.Key] {
				ve.errorf("%s changes undefined resource %q", where, eff.Key)
			}
		}
		if a.Status != "" && len(c.Statuses) > 0 && !statuses[a.Status] {
			ve.warnf("%s sets status %q which declares no drains", where, a.Status)
		}

		validateDialogues(where, a.Dialogues, ve)

		if a.Auto && len(a.Conditions) == 0 {
			ve.warnf("%s is auto but has no conditions and never triggers", where)
		}
		for _, cond := range a.Conditions {
			if cond.Path == "" {
				ve.errorf("%s has a condition without a path", where)
			}
			if !validOps[cond.Op] {
				ve.errorf("%s has unknown condition operator %q", where, cond.Op)
			}
			if cond.Op == "in" && len(cond.Values) == 0 {
				ve.errorf("%s has an in condition on %q with no values", where, cond.Path)
			}
		}

		if a.Battle != "" {
			if _, ok := defs.Battlers[a.Battle]; !ok {
				ve.errorf("%s battles undefined battler %q", where, a.Battle)
			}
		}
	}
}

func validateBattler(b types.BattlerDef, ve *ValidationError) {
	where := fmt.Sprintf("battler %q", b.ID)
	if b.HP < 0 || b.HP > MaxBattlerHP {
		ve.errorf("%s hp %d is outside [0, %d]", where, b.HP, MaxBattlerHP)
	}
	if len(b.Actions) == 0 {
		ve.errorf("%s has no battle actions", where)
	}
	for _, a := range b.Actions {
		if a.Priority < 0 {
			ve.errorf("%s action %q has negative priority", where, a.Name)
		}
		if a.Effect.Type == "" {
			ve.errorf("%s action %q has no effect type", where, a.Name)
		}
		if t := a.Effect.Target; t != "self" && t != "opponent" {
			ve.errorf("%s action %q has unknown target %q", where, a.Name, t)
		}
		validateDialogues(fmt.Sprintf("%s action %q", where, a.Name), a.Dialogues, ve)
	}
	for _, key := range slices.Sorted(maps.Keys(b.Results)) {
		if !validResults[key] {
			ve.warnf("%s result %q is never played", where, key)
		}
		pool := b.Results[key]
		if len(pool) == 0 {
			ve.errorf("%s result %q has an empty dialogue pool", where, key)
		}
		validateDialogues(fmt.Sprintf("%s result %q", where, key), pool, ve)
	}
	for _, key := range slices.Sorted(maps.Keys(b.Reactions)) {
		pool := b.Reactions[key]
		if len(pool) == 0 {
			ve.errorf("%s reaction %q has an empty dialogue pool", where, key)
		}
		validateDialogues(fmt.Sprintf("%s reaction %q", where, key), pool, ve)
	}
}

func validateMapping(i int, rule types.MatchRule, defs *types.Defs, ve *ValidationError) {
	where := fmt.Sprintf("mapping %d (%s)", i+1, rule.Action)
	if len(rule.Matches) == 0 {
		ve.errorf("%s matches nothing", where)
	}
	for _, field := range slices.Sorted(maps.Keys(rule.Matches)) {
		if !messageFields[field] {
			ve.errorf("%s matches unknown message field %q", where, field)
		}
		if len(rule.Matches[field]) == 0 {
			ve.warnf("%s field %q has no candidates and never matches", where, field)
		}
	}

	character := defs.Game.Character
	if c, ok := rule.Params["character"].(string); ok && c != "" {
		character = c
	}
	c, ok := defs.Characters[character]
	if !ok {
		ve.errorf("%s targets undefined character %q", where, character)
		return
	}
	if !hasAction(c, rule.Action) {
		ve.errorf("%s references undefined action %q", where, rule.Action)
	}
}

// validateDialogues checks that every variant of a pool has lines and a
// non-negative priority.
func validateDialogues(where string, pool []types.DialogueVariant, ve *ValidationError) {
	for i, v := range pool {
		if v.Priority < 0 {
			ve.errorf("%s dialogue variant %d has negative priority", where, i+1)
		}
		if len(v.Lines) == 0 {
			ve.errorf("%s dialogue variant %d has no lines", where, i+1)
		}
	}
}

func hasAction(c types.CharacterDef, name string) bool {
	for _, a := range c.Actions {
		if a.Name == name {
			return true
		}
	}
	return false
}
