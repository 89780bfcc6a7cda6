package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"gopkg.in/yaml.v3"

	"github.com/nathoo/petcore/types"
)

// collector accumulates Lua definitions during file execution.
type collector struct {
	game       *lua.LTable
	characters []rawDef
	actions    []rawDef
	idles      []rawDef
	statuses   []rawDef
	battlers   []rawDef
	mappings   []rawDef
}

// rawDef holds a named definition table before compilation.
type rawDef struct {
	id    string
	table *lua.LTable
}

// Load reads a game definition from path, compiles it into Defs and
// validates it. A directory is loaded as Lua DSL files; a .yaml or .yml file
// as a single Document. Validation warnings are logged to slog.Default().
func Load(path string) (*types.Defs, error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}

	defs, err := Compile(doc)
	if err != nil {
		return nil, fmt.Errorf("compiling game data: %w", err)
	}

	warnings, err := Validate(defs)
	for _, w := range warnings {
		slog.Warn("game definition warning", "path", path, "warning", w)
	}
	if err != nil {
		return nil, err
	}
	return defs, nil
}

// LoadDocument reads the uncompiled Document at path.
func LoadDocument(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading game definition %s: %w", path, err)
	}
	if info.IsDir() {
		return loadLua(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(path)
	default:
		return nil, fmt.Errorf("unsupported game definition %s: want a directory of .lua files or a .yaml file", path)
	}
}

// loadYAML checks the file against the Document schema and decodes it.
func loadYAML(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := ValidateSchema(data); err != nil {
		return nil, fmt.Errorf("checking %s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &doc, nil
}

// loadLua executes every .lua file in dir in a sandboxed VM and compiles the
// collected definitions. The VM is discarded afterwards.
func loadLua(dir string) (*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading game directory %s: %w", dir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lua") {
			luaFiles = append(luaFiles, e.Name())
		}
	}
	if len(luaFiles) == 0 {
		return nil, fmt.Errorf("no .lua files found in %s", dir)
	}

	// game.lua first, rest alphabetical.
	luaFiles = sortedLuaFiles(luaFiles)

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	openSafeLibs(L)
	sandbox(L)

	coll := &collector{}
	registerAPI(L, coll)

	for _, f := range luaFiles {
		if err := L.DoFile(filepath.Join(dir, f)); err != nil {
			return nil, fmt.Errorf("executing %s: %w", f, err)
		}
	}

	doc, err := compileLua(coll)
	if err != nil {
		return nil, fmt.Errorf("compiling game data: %w", err)
	}
	return doc, nil
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	// Base library (print, type, tostring, tonumber, pairs, ipairs, etc.)
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes dangerous globals and functions.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}

	// Game content must not reseed; the engine owns the RNG.
	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		tbl.RawSetString("randomseed", lua.LNil)
	}
}
