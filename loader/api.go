package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerConditionHelpers(L)
	registerEffectHelpers(L)
	registerDialogueHelpers(L)
	registerBattleHelpers(L)
}

// curried returns a constructor used as Name "id" { ... }: called with the
// id it returns a function that takes the definition table.
func curried(L *lua.LState, add func(id string, tbl *lua.LTable)) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			add(id, tbl)
			return 0
		}))
		return 1
	})
}

func registerConstructors(L *lua.LState, coll *collector) {
	// Game { title = "...", character = "pet", ... }
	L.SetGlobal("Game", L.NewFunction(func(L *lua.LState) int {
		coll.game = L.CheckTable(1)
		return 0
	}))

	L.SetGlobal("Character", curried(L, func(id string, tbl *lua.LTable) {
		coll.characters = append(coll.characters, rawDef{id: id, table: tbl})
	}))
	L.SetGlobal("Action", curried(L, func(id string, tbl *lua.LTable) {
		coll.actions = append(coll.actions, rawDef{id: id, table: tbl})
	}))
	L.SetGlobal("Idle", curried(L, func(id string, tbl *lua.LTable) {
		coll.idles = append(coll.idles, rawDef{id: id, table: tbl})
	}))
	L.SetGlobal("Status", curried(L, func(id string, tbl *lua.LTable) {
		coll.statuses = append(coll.statuses, rawDef{id: id, table: tbl})
	}))
	L.SetGlobal("Battler", curried(L, func(id string, tbl *lua.LTable) {
		coll.battlers = append(coll.battlers, rawDef{id: id, table: tbl})
	}))

	// Mapping "action" { text = {"feed", "food"}, params = { ... } }
	L.SetGlobal("Mapping", curried(L, func(id string, tbl *lua.LTable) {
		coll.mappings = append(coll.mappings, rawDef{id: id, table: tbl})
	}))
}

func registerConditionHelpers(L *lua.LState) {
	// Eq("pet.hp", 0), Ne(...), Gt(...), Ge(...), Lt(...), Le(...)
	for name, op := range map[string]string{
		"Eq": "==",
		"Ne": "!=",
		"Gt": ">",
		"Ge": ">=",
		"Lt": "<",
		"Le": "<=",
	} {
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			path := L.CheckString(1)
			tbl := L.NewTable()
			tbl.RawSetString("path", lua.LString(path))
			tbl.RawSetString("op", lua.LString(op))
			tbl.RawSetString("value", L.Get(2))
			L.Push(tbl)
			return 1
		}))
	}

	// In("pet.status", {"alive", "sleeping"})
	L.SetGlobal("In", L.NewFunction(func(L *lua.LState) int {
		path := L.CheckString(1)
		values := L.CheckTable(2)
		tbl := L.NewTable()
		tbl.RawSetString("path", lua.LString(path))
		tbl.RawSetString("op", lua.LString("in"))
		tbl.RawSetString("values", values)
		L.Push(tbl)
		return 1
	}))
}

func registerEffectHelpers(L *lua.LState) {
	// Add("hp", 10), Sub("coin", 2), Set("level", 1)
	for name, method := range map[string]string{
		"Add": "add",
		"Sub": "sub",
		"Set": "set",
	} {
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			key := L.CheckString(1)
			value := L.CheckNumber(2)
			tbl := L.NewTable()
			tbl.RawSetString("key", lua.LString(key))
			tbl.RawSetString("method", lua.LString(method))
			tbl.RawSetString("value", value)
			L.Push(tbl)
			return 1
		}))
	}

	// Resource("hp", { initial = 100, min = 0, max = 100 })
	L.SetGlobal("Resource", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		tbl := L.NewTable()
		if opts := L.OptTable(2, nil); opts != nil {
			opts.ForEach(func(k, v lua.LValue) { tbl.RawSet(k, v) })
		}
		tbl.RawSetString("key", lua.LString(key))
		L.Push(tbl)
		return 1
	}))

	// Drain("hp", -1, "30s")
	L.SetGlobal("Drain", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		change := L.CheckNumber(2)
		interval := L.CheckString(3)
		tbl := L.NewTable()
		tbl.RawSetString("key", lua.LString(key))
		tbl.RawSetString("change", change)
		tbl.RawSetString("interval", lua.LString(interval))
		L.Push(tbl)
		return 1
	}))
}

func registerDialogueHelpers(L *lua.LState) {
	// Say("pet_happy", "Thanks {{user}}!") or Say("Thanks!")
	L.SetGlobal("Say", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		if L.GetTop() >= 2 {
			tbl.RawSetString("portrait", lua.LString(L.CheckString(1)))
			tbl.RawSetString("text", lua.LString(L.CheckString(2)))
		} else {
			tbl.RawSetString("text", lua.LString(L.CheckString(1)))
		}
		L.Push(tbl)
		return 1
	}))

	// Variant(3, { Say(...), Say(...) })
	L.SetGlobal("Variant", L.NewFunction(func(L *lua.LState) int {
		priority := L.CheckNumber(1)
		lines := L.CheckTable(2)
		tbl := L.NewTable()
		tbl.RawSetString("priority", priority)
		tbl.RawSetString("lines", lines)
		L.Push(tbl)
		return 1
	}))
}

func registerBattleHelpers(L *lua.LState) {
	hit := func(L *lua.LState, target, typ string, value lua.LNumber) *lua.LTable {
		tbl := L.NewTable()
		tbl.RawSetString("type", lua.LString(typ))
		tbl.RawSetString("target", lua.LString(target))
		tbl.RawSetString("value", value)
		return tbl
	}

	// Attack(10) hits the opponent.
	L.SetGlobal("Attack", L.NewFunction(func(L *lua.LState) int {
		L.Push(hit(L, "opponent", "attack", L.CheckNumber(1)))
		return 1
	}))

	// Recover(10) heals the acting side.
	L.SetGlobal("Recover", L.NewFunction(func(L *lua.LState) int {
		L.Push(hit(L, "self", "recover", L.CheckNumber(1)))
		return 1
	}))

	// Hit("opponent", "poison", 5)
	L.SetGlobal("Hit", L.NewFunction(func(L *lua.LState) int {
		L.Push(hit(L, L.CheckString(1), L.CheckString(2), L.CheckNumber(3)))
		return 1
	}))
}
