package loader

import (
	"fmt"
	"maps"

	"github.com/nathoo/petcore/types"
)

// DefaultStatus is the status a character starts with when none is declared.
const DefaultStatus = "alive"

// Document is the authored form of a game definition, as written in YAML
// or collected from the Lua DSL. Compile turns it into types.Defs.
type Document struct {
	Game       types.GameDef        `json:"game" yaml:"game" jsonschema:"required"`
	Characters []types.CharacterDef `json:"characters" yaml:"characters" jsonschema:"required"`
	Battlers   []types.BattlerDef   `json:"battlers,omitempty" yaml:"battlers,omitempty"`
	Mappings   []types.MatchRule    `json:"mappings,omitempty" yaml:"mappings,omitempty"`
}

// Compile indexes a Document by ID and fills defaults. It fails on
// duplicate character or battler IDs; everything else is left to Validate.
func Compile(doc *Document) (*types.Defs, error) {
	defs := &types.Defs{
		Game:       doc.Game,
		Characters: make(map[string]types.CharacterDef, len(doc.Characters)),
		Battlers:   make(map[string]types.BattlerDef, len(doc.Battlers)),
		Mappings:   doc.Mappings,
	}
	defs.Game.Rewards = maps.Clone(doc.Game.Rewards)
	if defs.Game.Self == "" {
		defs.Game.Self = defs.Game.Character
	}

	for _, c := range doc.Characters {
		if c.ID == "" {
			return nil, fmt.Errorf("character without id")
		}
		if _, dup := defs.Characters[c.ID]; dup {
			return nil, fmt.Errorf("duplicate character %q", c.ID)
		}
		if c.Status == "" {
			c.Status = DefaultStatus
		}
		defs.Characters[c.ID] = c
	}

	for _, b := range doc.Battlers {
		if b.ID == "" {
			return nil, fmt.Errorf("battler without id")
		}
		if _, dup := defs.Battlers[b.ID]; dup {
			return nil, fmt.Errorf("duplicate battler %q", b.ID)
		}
		actions := make([]types.BattleAction, len(b.Actions))
		for i, a := range b.Actions {
			if a.Effect.Target == "" {
				a.Effect.Target = defaultTarget(a.Effect.Type)
			}
			actions[i] = a
		}
		b.Actions = actions
		defs.Battlers[b.ID] = b
	}

	return defs, nil
}

// defaultTarget aims healing at the acting side and everything else at
// the other one.
func defaultTarget(effectType string) string {
	switch effectType {
	case "recover", "heal":
		return "self"
	default:
		return "opponent"
	}
}
