// Package loader compiles game definitions, written either as Lua DSL files
// or as a single YAML document, into types.Defs. The Lua VM is discarded
// after loading, so no Lua runs alongside the engine.
package loader

import (
	"fmt"
	"sort"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/petcore/types"
)

// defaultPriority is the weight of DSL entries that do not name one.
const defaultPriority = 1

// compileLua converts the collected Lua tables into a Document.
func compileLua(coll *collector) (*Document, error) {
	if coll.game == nil {
		return nil, fmt.Errorf("no Game {} definition found")
	}

	doc := &Document{Game: compileGame(coll.game)}

	index := make(map[string]int, len(coll.characters))
	for _, raw := range coll.characters {
		if _, dup := index[raw.id]; dup {
			return nil, fmt.Errorf("duplicate character %q", raw.id)
		}
		index[raw.id] = len(doc.Characters)
		doc.Characters = append(doc.Characters, types.CharacterDef{
			ID:        raw.id,
			Status:    getString(raw.table, "status"),
			Resources: compileResources(getTable(raw.table, "resources")),
		})
	}

	// owner returns the character a definition attaches to.
	owner := func(kind string, raw rawDef) (*types.CharacterDef, error) {
		id := getString(raw.table, "character")
		if id == "" {
			id = doc.Game.Character
		}
		i, ok := index[id]
		if !ok {
			return nil, fmt.Errorf("%s %q references undefined character %q", kind, raw.id, id)
		}
		return &doc.Characters[i], nil
	}

	for _, raw := range coll.actions {
		c, err := owner("action", raw)
		if err != nil {
			return nil, err
		}
		c.Actions = append(c.Actions, compileAction(raw))
	}

	for _, raw := range coll.idles {
		c, err := owner("idle action", raw)
		if err != nil {
			return nil, err
		}
		c.IdleActions = append(c.IdleActions, types.IdleAction{
			Name:       raw.id,
			Priority:   numberOr(raw.table, "priority", defaultPriority),
			Animations: compileAnimations(raw.table.RawGetString("animations")),
		})
	}

	for _, raw := range coll.statuses {
		c, err := owner("status", raw)
		if err != nil {
			return nil, err
		}
		drains, err := compileDrains(getTable(raw.table, "drains"))
		if err != nil {
			return nil, fmt.Errorf("status %q: %w", raw.id, err)
		}
		c.Statuses = append(c.Statuses, types.StatusDef{Name: raw.id, Drains: drains})
	}

	for _, raw := range coll.battlers {
		doc.Battlers = append(doc.Battlers, compileBattler(raw))
	}

	for _, raw := range coll.mappings {
		doc.Mappings = append(doc.Mappings, compileMapping(raw))
	}

	return doc, nil
}

func compileGame(tbl *lua.LTable) types.GameDef {
	return types.GameDef{
		Title:     getString(tbl, "title"),
		Author:    getString(tbl, "author"),
		Version:   getString(tbl, "version"),
		Intro:     getString(tbl, "intro"),
		Character: getString(tbl, "character"),
		Self:      getString(tbl, "self"),
		Scene:     getString(tbl, "scene"),
		Rewards:   tableToStringMap(getTable(tbl, "rewards")),
	}
}

func compileAction(raw rawDef) types.ActionDef {
	tbl := raw.table
	return types.ActionDef{
		Name:       raw.id,
		Animations: compileAnimations(tbl.RawGetString("animations")),
		Status:     getString(tbl, "status"),
		Effects:    compileEffects(getTable(tbl, "effects")),
		Dialogues:  compileDialogues(tbl.RawGetString("dialogues")),
		Auto:       getBool(tbl, "auto", false),
		Conditions: compileConditions(getTable(tbl, "conditions")),
		NextScene:  getString(tbl, "next_scene"),
		Battle:     getString(tbl, "battle"),
	}
}

// compileAnimations accepts a single name, a list of names, or a table
// keyed by status whose values are a name or a list. The first two forms
// are stored under "default".
func compileAnimations(v lua.LValue) map[string][]string {
	switch val := v.(type) {
	case lua.LString:
		return map[string][]string{"default": {string(val)}}
	case *lua.LTable:
		if val.MaxN() > 0 {
			return map[string][]string{"default": stringList(val)}
		}
		m := map[string][]string{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = stringList(v)
			}
		})
		if len(m) == 0 {
			return nil
		}
		return m
	default:
		return nil
	}
}

func compileResources(tbl *lua.LTable) []types.ResourceDef {
	if tbl == nil {
		return nil
	}
	var out []types.ResourceDef
	for i := 1; i <= tbl.MaxN(); i++ {
		r, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			continue
		}
		out = append(out, types.ResourceDef{
			Key:     getString(r, "key"),
			Initial: getNumber(r, "initial"),
			Min:     getNumber(r, "min"),
			Max:     getNumber(r, "max"),
		})
	}
	return out
}

func compileEffects(tbl *lua.LTable) []types.ResourceEffect {
	if tbl == nil {
		return nil
	}
	var out []types.ResourceEffect
	for i := 1; i <= tbl.MaxN(); i++ {
		e, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			continue
		}
		out = append(out, types.ResourceEffect{
			Key:    getString(e, "key"),
			Method: getString(e, "method"),
			Value:  getNumber(e, "value"),
		})
	}
	return out
}

// compileDrains reads drain tables. An interval is a duration string
// ("30s") or a number of seconds.
func compileDrains(tbl *lua.LTable) ([]types.ResourceDrain, error) {
	if tbl == nil {
		return nil, nil
	}
	var out []types.ResourceDrain
	for i := 1; i <= tbl.MaxN(); i++ {
		d, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			continue
		}
		var interval time.Duration
		switch v := d.RawGetString("interval").(type) {
		case lua.LString:
			parsed, err := time.ParseDuration(string(v))
			if err != nil {
				return nil, fmt.Errorf("drain %q: %w", getString(d, "key"), err)
			}
			interval = parsed
		case lua.LNumber:
			interval = time.Duration(float64(v) * float64(time.Second))
		}
		out = append(out, types.ResourceDrain{
			Key:      getString(d, "key"),
			Change:   getNumber(d, "change"),
			Interval: interval,
		})
	}
	return out, nil
}

// compileConditions accepts a list of condition tables (Eq, In, ...) or a
// map of path to expected value. In the map form a list means "in" and a
// table with op and value is taken as is. Map entries are sorted by path.
func compileConditions(tbl *lua.LTable) []types.Condition {
	if tbl == nil {
		return nil
	}
	var out []types.Condition
	if tbl.MaxN() > 0 {
		for i := 1; i <= tbl.MaxN(); i++ {
			c, ok := tbl.RawGetInt(i).(*lua.LTable)
			if !ok {
				continue
			}
			out = append(out, types.Condition{
				Path:   getString(c, "path"),
				Op:     getString(c, "op"),
				Value:  toGoValue(c.RawGetString("value")),
				Values: listOf(getTable(c, "values")),
			})
		}
		return out
	}

	var paths []string
	tbl.ForEach(func(k, _ lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			paths = append(paths, string(ks))
		}
	})
	sort.Strings(paths)
	for _, path := range paths {
		v := tbl.RawGetString(path)
		c := types.Condition{Path: path, Op: "=="}
		if t, ok := v.(*lua.LTable); ok {
			if t.MaxN() > 0 {
				c.Op = "in"
				c.Values = listOf(t)
			} else {
				c.Op = getString(t, "op")
				c.Value = toGoValue(t.RawGetString("value"))
			}
		} else {
			c.Value = toGoValue(v)
		}
		out = append(out, c)
	}
	return out
}

// compileDialogues accepts a string, a single Say line, a Variant, a list
// of lines (one variant) or a list of Variants (a weighted pool).
func compileDialogues(v lua.LValue) []types.DialogueVariant {
	switch val := v.(type) {
	case lua.LString:
		return []types.DialogueVariant{{
			Priority: defaultPriority,
			Lines:    []types.DialogueLine{{Text: string(val)}},
		}}
	case *lua.LTable:
		if getTable(val, "lines") != nil {
			return []types.DialogueVariant{compileVariant(val)}
		}
		if getString(val, "text") != "" {
			return []types.DialogueVariant{{
				Priority: defaultPriority,
				Lines:    []types.DialogueLine{compileLine(val)},
			}}
		}
		if val.MaxN() == 0 {
			return nil
		}
		if first, ok := val.RawGetInt(1).(*lua.LTable); ok && getTable(first, "lines") != nil {
			var pool []types.DialogueVariant
			for i := 1; i <= val.MaxN(); i++ {
				if t, ok := val.RawGetInt(i).(*lua.LTable); ok {
					pool = append(pool, compileVariant(t))
				}
			}
			return pool
		}
		return []types.DialogueVariant{{Priority: defaultPriority, Lines: compileLines(val)}}
	default:
		return nil
	}
}

func compileVariant(tbl *lua.LTable) types.DialogueVariant {
	return types.DialogueVariant{
		Priority: numberOr(tbl, "priority", defaultPriority),
		Lines:    compileLines(getTable(tbl, "lines")),
	}
}

func compileLines(tbl *lua.LTable) []types.DialogueLine {
	if tbl == nil {
		return nil
	}
	var lines []types.DialogueLine
	for i := 1; i <= tbl.MaxN(); i++ {
		lines = append(lines, compileLine(tbl.RawGetInt(i)))
	}
	return lines
}

func compileLine(v lua.LValue) types.DialogueLine {
	switch val := v.(type) {
	case lua.LString:
		return types.DialogueLine{Text: string(val)}
	case *lua.LTable:
		return types.DialogueLine{
			Portrait: getString(val, "portrait"),
			Text:     getString(val, "text"),
		}
	default:
		return types.DialogueLine{}
	}
}

// compileDialogueMap reads a table of dialogue pools keyed by name, as used
// for battler reactions and results.
func compileDialogueMap(tbl *lua.LTable) map[string][]types.DialogueVariant {
	if tbl == nil {
		return nil
	}
	m := map[string][]types.DialogueVariant{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			m[string(ks)] = compileDialogues(v)
		}
	})
	return m
}

func compileBattler(raw rawDef) types.BattlerDef {
	tbl := raw.table
	b := types.BattlerDef{
		ID:        raw.id,
		HP:        getInt(tbl, "hp"),
		Animation: getString(tbl, "animation"),
		Reactions: compileDialogueMap(getTable(tbl, "reactions")),
		Results:   compileDialogueMap(getTable(tbl, "results")),
	}
	if actions := getTable(tbl, "actions"); actions != nil {
		for i := 1; i <= actions.MaxN(); i++ {
			a, ok := actions.RawGetInt(i).(*lua.LTable)
			if !ok {
				continue
			}
			action := types.BattleAction{
				Name:      getString(a, "name"),
				Priority:  numberOr(a, "priority", defaultPriority),
				Dialogues: compileDialogues(a.RawGetString("dialogues")),
			}
			if eff := getTable(a, "effect"); eff != nil {
				action.Effect = types.BattleEffect{
					Type:   getString(eff, "type"),
					Target: getString(eff, "target"),
					Value:  getInt(eff, "value"),
				}
			}
			b.Actions = append(b.Actions, action)
		}
	}
	return b
}

// compileMapping reads Mapping "action" { field = candidates, params = {} }.
// Every key other than params names a message field.
func compileMapping(raw rawDef) types.MatchRule {
	rule := types.MatchRule{
		Action:  raw.id,
		Matches: map[string][]string{},
		Params:  tableToAnyMap(getTable(raw.table, "params")),
	}
	raw.table.ForEach(func(k, v lua.LValue) {
		ks, ok := k.(lua.LString)
		if !ok || ks == "params" {
			return
		}
		rule.Matches[string(ks)] = stringList(v)
	})
	return rule
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getNumber returns a numeric field from a Lua table, or 0 if missing.
func getNumber(tbl *lua.LTable, key string) float64 {
	return numberOr(tbl, key, 0)
}

// numberOr returns a numeric field from a Lua table, or def if missing.
func numberOr(tbl *lua.LTable, key string, def float64) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return def
}

// getInt returns an int field from a Lua table, or 0 if missing.
func getInt(tbl *lua.LTable, key string) int {
	return int(getNumber(tbl, key))
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// stringList reads a string or an array of strings.
func stringList(v lua.LValue) []string {
	switch val := v.(type) {
	case lua.LString:
		return []string{string(val)}
	case *lua.LTable:
		var out []string
		for i := 1; i <= val.MaxN(); i++ {
			if s, ok := val.RawGetInt(i).(lua.LString); ok {
				out = append(out, string(s))
			}
		}
		return out
	default:
		return nil
	}
}

// listOf converts the array part of a table, or nil.
func listOf(tbl *lua.LTable) []any {
	if tbl == nil || tbl.MaxN() == 0 {
		return nil
	}
	out := make([]any, 0, tbl.MaxN())
	for i := 1; i <= tbl.MaxN(); i++ {
		out = append(out, toGoValue(tbl.RawGetInt(i)))
	}
	return out
}

// toGoValue converts a Lua value to a Go value recursively.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case lua.LString:
		return string(val)
	case *lua.LTable:
		// Sequential integer keys starting at 1 make an array.
		if val.MaxN() > 0 {
			return listOf(val)
		}
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		return m
	default:
		return nil
	}
}

// tableToStringMap converts a Lua table to a map[string]string.
func tableToStringMap(tbl *lua.LTable) map[string]string {
	if tbl == nil {
		return nil
	}
	m := map[string]string{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			if vs, ok := v.(lua.LString); ok {
				m[string(ks)] = string(vs)
			}
		}
	})
	return m
}

// tableToAnyMap converts a Lua table to a map[string]any.
func tableToAnyMap(tbl *lua.LTable) map[string]any {
	if tbl == nil {
		return nil
	}
	m := map[string]any{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			m[string(ks)] = toGoValue(v)
		}
	})
	return m
}

// sortedLuaFiles returns files with game.lua first, rest alphabetical.
func sortedLuaFiles(files []string) []string {
	var gameFile string
	var others []string
	for _, f := range files {
		if f == "game.lua" {
			gameFile = f
		} else {
			others = append(others, f)
		}
	}
	sort.Strings(others)
	if gameFile != "" {
		return append([]string{gameFile}, others...)
	}
	return others
}
