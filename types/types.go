// Package types defines the shared data structures for the petcore engine.
// Apart from the Weight accessors used by the priority selector, this
// package contains only type definitions.
package types

import "time"

// Message is one inbound chat-style stimulus from the transport.
type Message struct {
	Sender string `json:"sender" yaml:"sender"`
	Text   string `json:"text" yaml:"text"`
}

// Task is a unit of character work waiting in the queue.
// ID is assigned at enqueue time and never changes afterwards.
type Task struct {
	ID     string         `json:"id"`
	Sender string         `json:"sender"`
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// MatchRule maps inbound messages to an action. A rule matches when every
// field listed in Matches holds one of its candidate values.
type MatchRule struct {
	Action  string              `json:"action" yaml:"action" jsonschema:"required"`
	Matches map[string][]string `json:"matches" yaml:"matches" jsonschema:"required"`
	Params  map[string]any      `json:"params,omitempty" yaml:"params,omitempty"`
}

// Prioritized is a candidate for priority-weighted selection.
type Prioritized interface {
	Weight() float64
}

// DialogueLine is one line of narration with the portrait shown beside it.
type DialogueLine struct {
	Portrait string `json:"portrait,omitempty" yaml:"portrait,omitempty"`
	Text     string `json:"text" yaml:"text"`
}

// DialogueVariant is one weighted alternative among a dialogue pool.
type DialogueVariant struct {
	Priority float64        `json:"priority" yaml:"priority"`
	Lines    []DialogueLine `json:"lines" yaml:"lines"`
}

// Weight implements Prioritized.
func (v DialogueVariant) Weight() float64 { return v.Priority }

// ResourceDef declares a numeric character resource and its bounds.
// A zero Max means unbounded above.
type ResourceDef struct {
	Key     string  `json:"key" yaml:"key" jsonschema:"required"`
	Initial float64 `json:"initial" yaml:"initial"`
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// ResourceEffect mutates one resource. Method is add, sub or set.
type ResourceEffect struct {
	Key    string  `json:"key" yaml:"key" jsonschema:"required"`
	Method string  `json:"method" yaml:"method" jsonschema:"enum=add,enum=sub,enum=set"`
	Value  float64 `json:"value" yaml:"value"`
}

// Condition is a predicate on a store path used by auto actions.
// Op is one of ==, !=, >=, <=, >, < or in. An empty Op means ==.
type Condition struct {
	Path   string `json:"path" yaml:"path" jsonschema:"required"`
	Op     string `json:"op,omitempty" yaml:"op,omitempty"`
	Value  any    `json:"value,omitempty" yaml:"value,omitempty"`
	Values []any  `json:"values,omitempty" yaml:"values,omitempty"`
}

// ActionDef is one entry of a character's action table.
type ActionDef struct {
	Name string `json:"name" yaml:"name" jsonschema:"required"`
	// Animations is keyed by character status, with "default" as fallback.
	Animations map[string][]string `json:"animations,omitempty" yaml:"animations,omitempty"`
	Status     string              `json:"status,omitempty" yaml:"status,omitempty"`
	Effects    []ResourceEffect    `json:"effects,omitempty" yaml:"effects,omitempty"`
	Dialogues  []DialogueVariant   `json:"dialogues,omitempty" yaml:"dialogues,omitempty"`
	Auto       bool                `json:"auto,omitempty" yaml:"auto,omitempty"`
	Conditions []Condition         `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	NextScene  string              `json:"next_scene,omitempty" yaml:"next_scene,omitempty"`
	Battle     string              `json:"battle,omitempty" yaml:"battle,omitempty"`
}

// IdleAction is played when the character has nothing queued.
type IdleAction struct {
	Name       string              `json:"name" yaml:"name" jsonschema:"required"`
	Priority   float64             `json:"priority" yaml:"priority"`
	Animations map[string][]string `json:"animations,omitempty" yaml:"animations,omitempty"`
}

// Weight implements Prioritized.
func (a IdleAction) Weight() float64 { return a.Priority }

// ResourceDrain changes a resource on a fixed interval while a status holds.
type ResourceDrain struct {
	Key      string        `json:"key" yaml:"key" jsonschema:"required"`
	Change   float64       `json:"change" yaml:"change"`
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// StatusDef declares the timed drains active while the character has a status.
type StatusDef struct {
	Name   string          `json:"name" yaml:"name" jsonschema:"required"`
	Drains []ResourceDrain `json:"drains,omitempty" yaml:"drains,omitempty"`
}

// CharacterDef is the full behavior table of one character.
type CharacterDef struct {
	ID          string        `json:"id" yaml:"id" jsonschema:"required"`
	Status      string        `json:"status" yaml:"status"`
	Resources   []ResourceDef `json:"resources,omitempty" yaml:"resources,omitempty"`
	Statuses    []StatusDef   `json:"statuses,omitempty" yaml:"statuses,omitempty"`
	IdleActions []IdleAction  `json:"idle_actions,omitempty" yaml:"idle_actions,omitempty"`
	Actions     []ActionDef   `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// BattleEffect is applied to one side's hp. Target is self or opponent,
// relative to the acting side.
type BattleEffect struct {
	Type   string `json:"type" yaml:"type" jsonschema:"required"`
	Target string `json:"target" yaml:"target" jsonschema:"enum=self,enum=opponent"`
	Value  int    `json:"value" yaml:"value"`
}

// BattleAction is one weighted entry of a battler's action table.
type BattleAction struct {
	Name      string            `json:"name" yaml:"name" jsonschema:"required"`
	Priority  float64           `json:"priority" yaml:"priority"`
	Effect    BattleEffect      `json:"effect" yaml:"effect"`
	Dialogues []DialogueVariant `json:"dialogues,omitempty" yaml:"dialogues,omitempty"`
}

// Weight implements Prioritized.
func (a BattleAction) Weight() float64 { return a.Priority }

// BattlerDef configures one battle participant.
// Reactions are keyed by effect type; Results by start, win, lose and finish.
type BattlerDef struct {
	ID        string                       `json:"id" yaml:"id" jsonschema:"required"`
	HP        int                          `json:"hp" yaml:"hp"`
	Animation string                       `json:"animation,omitempty" yaml:"animation,omitempty"`
	Actions   []BattleAction               `json:"actions" yaml:"actions"`
	Reactions map[string][]DialogueVariant `json:"reactions,omitempty" yaml:"reactions,omitempty"`
	Results   map[string][]DialogueVariant `json:"results,omitempty" yaml:"results,omitempty"`
}

// GameDef holds game metadata.
type GameDef struct {
	Title     string `json:"title" yaml:"title" jsonschema:"required"`
	Author    string `json:"author,omitempty" yaml:"author,omitempty"`
	Version   string `json:"version" yaml:"version" jsonschema:"required"`
	Intro     string `json:"intro,omitempty" yaml:"intro,omitempty"`
	Character string `json:"character" yaml:"character" jsonschema:"required"`
	Self      string `json:"self,omitempty" yaml:"self,omitempty"`
	Scene     string `json:"scene,omitempty" yaml:"scene,omitempty"`
	// Rewards maps a battle outcome (win, lose) to the action run afterwards.
	Rewards map[string]string `json:"rewards,omitempty" yaml:"rewards,omitempty"`
}

// Defs holds all immutable game definitions, compiled from a game document.
type Defs struct {
	Game       GameDef
	Characters map[string]CharacterDef
	Battlers   map[string]BattlerDef
	Mappings   []MatchRule
}
