package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nathoo/petcore/types"
)

// writeGame writes files into a fresh directory and returns its path.
func writeGame(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const minimalGame = `
Game { title = "Tiny", version = "0.1.0", character = "pet" }
Character "pet" { resources = { Resource("hp", { initial = 5, max = 10 }) } }
`

func TestLoad_PetGame(t *testing.T) {
	defs, err := Load("testdata/pet")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if defs.Game.Title != "Pocket Pet" {
		t.Errorf("Title = %q, want %q", defs.Game.Title, "Pocket Pet")
	}
	if defs.Game.Self != "pet" {
		t.Errorf("Self = %q, want it to default to the character", defs.Game.Self)
	}
	if defs.Game.Rewards["win"] != "celebrate" {
		t.Errorf("Rewards[win] = %q", defs.Game.Rewards["win"])
	}

	pet, ok := defs.Characters["pet"]
	if !ok {
		t.Fatal("character 'pet' not found")
	}
	if len(pet.Resources) != 2 || pet.Resources[0].Max != 100 {
		t.Errorf("Resources = %+v", pet.Resources)
	}
	if len(pet.Actions) != 7 {
		t.Fatalf("expected 7 actions, got %d", len(pet.Actions))
	}

	feed := pet.Actions[0]
	if feed.Name != "feed" {
		t.Errorf("first action = %q, want feed", feed.Name)
	}
	if got := feed.Animations["sleeping"]; len(got) != 2 || got[0] != "pet_wake" {
		t.Errorf("feed sleeping animations = %v", got)
	}
	if len(feed.Dialogues) != 2 || feed.Dialogues[0].Priority != 3 {
		t.Errorf("feed dialogues = %+v", feed.Dialogues)
	}
	if line := feed.Dialogues[1].Lines[1]; line.Text != "Burp." || line.Portrait != "" {
		t.Errorf("bare string line = %+v", line)
	}

	hungry := pet.Actions[5]
	want := types.Condition{Path: "pet.hp", Op: "<", Value: 20}
	if len(hungry.Conditions) != 1 || hungry.Conditions[0].Path != want.Path ||
		hungry.Conditions[0].Op != want.Op || hungry.Conditions[0].Value != want.Value {
		t.Errorf("hungry conditions = %+v, want [%+v]", hungry.Conditions, want)
	}

	if d := pet.Statuses[0].Drains[0]; d.Interval != 30*time.Second || d.Change != -1 {
		t.Errorf("alive drain = %+v", d)
	}
	if pet.IdleActions[1].Priority != defaultPriority {
		t.Errorf("wag priority = %v, want default %v", pet.IdleActions[1].Priority, defaultPriority)
	}

	slime := defs.Battlers["slime"]
	if slime.HP != 50 || slime.Actions[0].Effect.Type != "damage" {
		t.Errorf("slime = %+v", slime)
	}
	lick := defs.Battlers["pet"].Actions[1]
	if lick.Effect.Target != "self" {
		t.Errorf("Recover target = %q, want self", lick.Effect.Target)
	}

	if len(defs.Mappings) != 3 || defs.Mappings[2].Params["opponent"] != "slime" {
		t.Errorf("Mappings = %+v", defs.Mappings)
	}
}

func TestLoad_LuaAndYAMLAgree(t *testing.T) {
	fromLua, err := Load("testdata/pet")
	require.NoError(t, err)
	fromYAML, err := Load("testdata/pet.yaml")
	require.NoError(t, err)

	require.Equal(t, fromLua, fromYAML)
}

func TestLoad_FileOrdering(t *testing.T) {
	// game.lua runs first, so later files can read what it defines.
	dir := writeGame(t, map[string]string{
		"game.lua": `
			PET = "pet"
			Game { title = "Order", version = "1.0.0", character = PET }
		`,
		"a_pet.lua": `Character (PET) {}`,
	})

	defs, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := defs.Characters["pet"]; !ok {
		t.Error("character defined from game.lua global not found")
	}
}

func TestLoad_NoLuaFiles_Fails(t *testing.T) {
	dir := writeGame(t, map[string]string{"notes.txt": "hello"})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "no .lua files") {
		t.Errorf("err = %v, want no .lua files", err)
	}
}

func TestLoad_BadLuaSyntax_Fails(t *testing.T) {
	dir := writeGame(t, map[string]string{"game.lua": `Game { title = `})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "executing game.lua") {
		t.Errorf("err = %v, want an execution error", err)
	}
}

func TestLoad_NoGameDef_Fails(t *testing.T) {
	dir := writeGame(t, map[string]string{"pet.lua": `Character "pet" {}`})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "no Game") {
		t.Errorf("err = %v, want missing Game", err)
	}
}

func TestLoad_SandboxEnforced(t *testing.T) {
	for _, src := range []string{
		`dofile("other.lua")`,
		`os.execute("true")`,
		`io.open("x")`,
		`math.randomseed(1)`,
	} {
		dir := writeGame(t, map[string]string{"game.lua": minimalGame + src})
		if _, err := Load(dir); err == nil {
			t.Errorf("%s: expected sandbox error", src)
		}
	}
}

func TestLoad_UndefinedCharacter_Fails(t *testing.T) {
	dir := writeGame(t, map[string]string{
		"game.lua": minimalGame + `Action "wave" { character = "ghost" }`,
	})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), `undefined character "ghost"`) {
		t.Errorf("err = %v, want undefined character", err)
	}
}

func TestLoad_BadDrainInterval_Fails(t *testing.T) {
	dir := writeGame(t, map[string]string{
		"game.lua": minimalGame + `Status "alive" { drains = { Drain("hp", -1, "soon") } }`,
	})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), `status "alive"`) {
		t.Errorf("err = %v, want drain interval error", err)
	}
}

func TestLoad_DuplicateCharacter_Fails(t *testing.T) {
	dir := writeGame(t, map[string]string{
		"game.lua": minimalGame + `Character "pet" {}`,
	})
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), `duplicate character "pet"`) {
		t.Errorf("err = %v, want duplicate character", err)
	}
}

func TestLoad_ValidationErrorReturned(t *testing.T) {
	dir := writeGame(t, map[string]string{
		"game.lua": minimalGame + `Mapping "dance" { text = "dance" }`,
	})
	_, err := Load(dir)

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	assertContains(t, ve.Errors, `undefined action "dance"`)
}

func TestLoad_UnsupportedFile_Fails(t *testing.T) {
	dir := writeGame(t, map[string]string{"game.json": "{}"})
	_, err := Load(filepath.Join(dir, "game.json"))
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("err = %v, want unsupported", err)
	}
}

func TestLoad_MissingPath_Fails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for a missing path")
	}
}

func TestLoad_YAMLSchemaRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "game: {title: T, version: 1.0.0, character: pet, colour: red}\ncharacters: [{id: pet}]\n"},
		{"missing characters", "game: {title: T, version: 1.0.0, character: pet}\n"},
		{"wrong type", "game: {title: T, version: 1.0.0, character: pet}\ncharacters: [{id: pet, resources: nope}]\n"},
		{"bad method", "game: {title: T, version: 1.0.0, character: pet}\ncharacters: [{id: pet, actions: [{name: a, effects: [{key: hp, method: mul}]}]}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeGame(t, map[string]string{"game.yaml": tt.yaml})
			_, err := Load(filepath.Join(dir, "game.yaml"))
			if err == nil || !strings.Contains(err.Error(), "schema validation failed") {
				t.Errorf("err = %v, want schema validation failure", err)
			}
		})
	}
}
