package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathoo/petcore/engine/dialogue"
	"github.com/nathoo/petcore/engine/rng"
	"github.com/nathoo/petcore/types"
)

// Battle limits.
const (
	MaxBattleHP    = 100
	MaxBattleTurns = 999
)

// Battle outcomes, from the perspective of the self side.
const (
	OutcomeWin  = "win"
	OutcomeLose = "lose"
)

// BattleReport summarizes a finished battle.
type BattleReport struct {
	Opponent   string
	Outcome    string
	Turns      int
	SelfHP     int
	OpponentHP int
	// Capped is set when the turn cap, not a knockout, ended the exchange.
	Capped    bool
	Narration []types.DialogueLine
}

type combatant struct {
	def    types.BattlerDef
	hp     int
	hpPath string
}

type battle struct {
	e         *Engine
	ctx       context.Context
	self, opp *combatant
	narration []types.DialogueLine
}

// RunBattle plays a full battle between the game's self battler and
// opponentID and writes the outcome to the store.
//
// Opening: both sides animate in and say their start lines, self first.
// Exchange: the sides alternate, self first, until one side's hp reaches 0
// or MaxBattleTurns have been played. Resolution: on a knockout the
// survivor wins; at the cap the side with more hp wins and self wins ties.
// Aftermath: the winner's win lines, then the loser's lose lines, then the
// self side's finish lines.
func (e *Engine) RunBattle(ctx context.Context, opponentID string) (report BattleReport, err error) {
	ctx, span := tracer.Start(ctx, "engine.battle",
		trace.WithAttributes(
			attribute.String("battle.self", e.defs.Game.Self),
			attribute.String("battle.opponent", opponentID),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.String("battle.outcome", report.Outcome),
				attribute.Int("battle.turns", report.Turns),
			)
		}
		span.End()
	}()

	selfDef, err := e.registry.Battler(e.defs.Game.Self)
	if err != nil {
		return BattleReport{}, err
	}
	oppDef, err := e.registry.Battler(opponentID)
	if err != nil {
		return BattleReport{}, err
	}

	b := &battle{
		e:    e,
		ctx:  ctx,
		self: &combatant{def: selfDef, hp: startHP(selfDef), hpPath: PathBattleSelfHP},
		opp:  &combatant{def: oppDef, hp: startHP(oppDef), hpPath: PathBattleOpponentHP},
	}
	e.st.Set(PathBattleOpponent, opponentID)
	e.st.Set(b.self.hpPath, b.self.hp)
	e.st.Set(b.opp.hpPath, b.opp.hp)

	for _, c := range []*combatant{b.self, b.opp} {
		b.enter(c)
	}

	turns := 0
	actor, target := b.self, b.opp
	for turns < MaxBattleTurns && b.self.hp > 0 && b.opp.hp > 0 {
		turns++
		b.turn(actor, target)
		actor, target = target, actor
	}
	capped := b.self.hp > 0 && b.opp.hp > 0

	winner, loser := b.self, b.opp
	if b.self.hp < b.opp.hp || b.self.hp == 0 {
		winner, loser = b.opp, b.self
	}
	b.say(winner.def.Results["win"], nil)
	b.say(loser.def.Results["lose"], nil)
	b.say(b.self.def.Results["finish"], nil)

	outcome := OutcomeWin
	if winner == b.opp {
		outcome = OutcomeLose
	}

	BattleOutcomes.WithLabelValues(opponentID, outcome).Inc()
	e.logger.Info("battle finished",
		"opponent", opponentID,
		"outcome", outcome,
		"turns", turns,
		"capped", capped)

	report = BattleReport{
		Opponent:   opponentID,
		Outcome:    outcome,
		Turns:      turns,
		SelfHP:     b.self.hp,
		OpponentHP: b.opp.hp,
		Capped:     capped,
		Narration:  b.narration,
	}
	e.st.Set(PathBattleResult, outcome)
	return report, nil
}

func (b *battle) enter(c *combatant) {
	anim := c.def.Animation
	if anim == "" {
		anim = "battle_" + c.def.ID + "_in"
	}
	if err := b.e.animator.PlayAnimationSequence(b.ctx, c.def.ID, []string{anim}); err != nil {
		b.e.logger.Warn("battle animation failed", "battler", c.def.ID, "error", err)
	}
	b.say(c.def.Results["start"], nil)
}

// turn plays one action of actor. The effect lands on target unless the
// action targets its own side.
func (b *battle) turn(actor, target *combatant) {
	action, idx := rng.Select(b.e.rng, actor.def.Actions)
	if idx < 0 {
		return
	}
	eff := action.Effect
	victim := target
	if eff.Target == "self" {
		victim = actor
	}
	vars := map[string]any{
		"actor":  actor.def.ID,
		"target": victim.def.ID,
		"value":  eff.Value,
	}
	b.say(action.Dialogues, vars)

	switch eff.Type {
	case "attack", "damage":
		victim.hp = clampHP(victim.hp - eff.Value)
		b.e.st.Set(victim.hpPath, victim.hp)
	case "recover", "heal":
		victim.hp = clampHP(victim.hp + eff.Value)
		b.e.st.Set(victim.hpPath, victim.hp)
	}
	b.say(victim.def.Reactions[eff.Type], vars)
}

// say presents one variant of a pool. Presentation failures are logged;
// the battle state has already advanced and is not rolled back.
func (b *battle) say(pool []types.DialogueVariant, vars map[string]any) {
	lines := dialogue.Narrate(b.e.rng, pool, vars)
	if len(lines) == 0 {
		return
	}
	b.narration = append(b.narration, lines...)
	if err := b.e.presenter.PresentDialogue(b.ctx, lines); err != nil {
		b.e.logger.Warn("battle dialogue failed", "error", err)
	}
}

func startHP(def types.BattlerDef) int {
	if def.HP <= 0 {
		return MaxBattleHP
	}
	return clampHP(def.HP)
}

func clampHP(hp int) int {
	return max(0, min(hp, MaxBattleHP))
}
