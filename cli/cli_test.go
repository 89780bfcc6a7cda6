package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nathoo/petcore/engine"
	"github.com/nathoo/petcore/engine/rng"
	"github.com/nathoo/petcore/engine/save"
	"github.com/nathoo/petcore/engine/store"
	"github.com/nathoo/petcore/types"
)

func line(portrait, text string) []types.DialogueVariant {
	return []types.DialogueVariant{{Priority: 1, Lines: []types.DialogueLine{{Portrait: portrait, Text: text}}}}
}

// testDefs returns a minimal pet for CLI testing.
func testDefs() *types.Defs {
	return &types.Defs{
		Game: types.GameDef{
			Title:     "Test Pet",
			Version:   "1.0.0",
			Intro:     "A pet looks at you.",
			Character: "pet",
			Self:      "pet",
		},
		Characters: map[string]types.CharacterDef{
			"pet": {
				ID:        "pet",
				Status:    "alive",
				Resources: []types.ResourceDef{{Key: "hp", Initial: 50, Max: 100}},
				Actions: []types.ActionDef{
					{
						Name:       "feed",
						Animations: map[string][]string{"default": {"eat"}},
						Effects:    []types.ResourceEffect{{Key: "hp", Method: "add", Value: 10}},
						Dialogues:  line("pet", "Thanks {{user}}!"),
					},
					{Name: "walk", NextScene: "park", Dialogues: line("", "Off we go.")},
				},
			},
		},
		Mappings: []types.MatchRule{
			{Action: "feed", Matches: map[string][]string{"text": {"feed"}}},
			{Action: "walk", Matches: map[string][]string{"text": {"walk"}}},
		},
	}
}

// runCLI plays input against a started engine and returns everything printed.
func runCLI(t *testing.T, input string, setup ...func(*CLI)) (string, *engine.Engine) {
	t.Helper()
	st := store.New(
		store.WithPersister(save.NewFilePersister(filepath.Join(t.TempDir(), "save.json"))),
		store.WithVersion("1.0.0"))

	var out bytes.Buffer
	p := NewPrinter(&out, 0)
	eng := engine.New(testDefs(), st,
		engine.WithAnimator(p),
		engine.WithPresenter(p),
		engine.WithSceneChanger(p),
		engine.WithRNG(rng.NewRNG(1)),
		engine.WithInterval(time.Millisecond),
		engine.WithIdleInterval(0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	eng.Start(ctx)
	defer eng.Destroy()

	c := New(eng, p)
	c.In = strings.NewReader(input)
	c.Sync = true
	for _, fn := range setup {
		fn(c)
	}
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String(), eng
}

func TestCLI_Intro(t *testing.T) {
	output, _ := runCLI(t, "/quit\n")

	if !strings.Contains(output, "Test Pet") {
		t.Error("expected title in output")
	}
	if !strings.Contains(output, "A pet looks at you.") {
		t.Error("expected intro text in output")
	}
	if !strings.Contains(output, "[Goodbye.]") {
		t.Error("expected goodbye on /quit")
	}
}

func TestCLI_MessageRunsAction(t *testing.T) {
	output, eng := runCLI(t, "feed\n")

	if !strings.Contains(output, "pet: Thanks owner!") {
		t.Errorf("expected dialogue in output, got:\n%s", output)
	}
	if hp, _ := eng.Store().Number("pet.hp"); hp != 60 {
		t.Errorf("pet.hp = %v, want 60", hp)
	}
}

func TestCLI_SenderPrefix(t *testing.T) {
	output, _ := runCLI(t, "alice: feed\n")
	if !strings.Contains(output, "Thanks alice!") {
		t.Errorf("expected sender from prefix, got:\n%s", output)
	}
}

func TestCLI_AsChangesSender(t *testing.T) {
	output, _ := runCLI(t, "/as bob\nfeed\n")
	if !strings.Contains(output, "[Speaking as bob.]") {
		t.Error("expected /as confirmation")
	}
	if !strings.Contains(output, "Thanks bob!") {
		t.Errorf("expected dialogue for bob, got:\n%s", output)
	}
}

func TestCLI_UnmatchedMessageIgnored(t *testing.T) {
	output, eng := runCLI(t, "hello there\n")
	if strings.Contains(output, "Thanks") {
		t.Error("unmatched message must not run an action")
	}
	if eng.Queue().Len() != 0 {
		t.Errorf("queue length = %d, want 0", eng.Queue().Len())
	}
}

func TestCLI_SceneChange(t *testing.T) {
	output, _ := runCLI(t, "walk\n")
	if !strings.Contains(output, "Off we go.") || !strings.Contains(output, "[Scene: park]") {
		t.Errorf("expected dialogue and scene change, got:\n%s", output)
	}
}

func TestCLI_HelpCommand(t *testing.T) {
	output, _ := runCLI(t, "/help\n")
	for _, want := range []string{"/save", "/load", "/state", "/queue", "/pause", "/quit"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in help", want)
		}
	}
}

func TestCLI_SaveAndLoad(t *testing.T) {
	output, eng := runCLI(t, "/load\n/save\nfeed\n/load\n")

	if !strings.Contains(output, "[No saved game found.]") {
		t.Error("expected no save before /save")
	}
	if !strings.Contains(output, "[Game saved.]") {
		t.Error("expected save confirmation")
	}
	if !strings.Contains(output, "[Game loaded.]") {
		t.Error("expected load confirmation")
	}
	// The load restored hp from before feeding.
	if hp, _ := eng.Store().Number("pet.hp"); hp != 50 {
		t.Errorf("pet.hp = %v, want 50 after load", hp)
	}
}

func TestCLI_StateCommand(t *testing.T) {
	output, _ := runCLI(t, "/state pet\n/state nothing\n")
	if !strings.Contains(output, "[pet.hp = 50]") {
		t.Errorf("expected pet.hp in state dump, got:\n%s", output)
	}
	if strings.Contains(output, "[global.") {
		t.Error("prefix must filter other paths")
	}
	if !strings.Contains(output, `[Nothing stored under "nothing".]`) {
		t.Error("expected empty prefix message")
	}
}

func TestCLI_QueueCommand(t *testing.T) {
	output, _ := runCLI(t, "/queue\n")
	if !strings.Contains(output, "[Queue is empty.]") {
		t.Errorf("expected empty queue, got:\n%s", output)
	}
}

func TestCLI_PauseToggle(t *testing.T) {
	output, eng := runCLI(t, "/pause\n")
	if !strings.Contains(output, "[Paused.]") {
		t.Error("expected pause confirmation")
	}
	if !eng.Paused() {
		t.Error("engine should be paused")
	}
}

func TestCLI_TraceToggle(t *testing.T) {
	output, _ := runCLI(t, "/trace\nfeed\n/trace\n")
	if !strings.Contains(output, "[Trace output enabled.]") || !strings.Contains(output, "[Trace output disabled.]") {
		t.Error("expected both trace toggles")
	}
	if !strings.Contains(output, "[trace] pet plays eat") {
		t.Errorf("expected animation trace, got:\n%s", output)
	}
}

func TestCLI_UnknownMetaCommand(t *testing.T) {
	output, _ := runCLI(t, "/dance\n")
	if !strings.Contains(output, "Unknown command: /dance") {
		t.Error("expected unknown command message")
	}
}

func TestCLI_CommentsAndEcho(t *testing.T) {
	output, _ := runCLI(t, "# a comment\nfeed\n", func(c *CLI) { c.EchoInput = true })
	if strings.Contains(output, "a comment") {
		t.Error("comment lines must be skipped")
	}
	if !strings.Contains(output, "> feed\n") {
		t.Errorf("expected echoed input, got:\n%s", output)
	}
}

func TestPrinter_LineDelayHonorsContext(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.PresentDialogue(ctx, []types.DialogueLine{{Text: "one"}, {Text: "two"}})
	if err == nil {
		t.Fatal("expected context error")
	}
	if out.String() != "one\n" {
		t.Errorf("output = %q, want only the first line", out.String())
	}
}
