package game

import (
	"go.uber.org/zap"

	"github.com/Tantawi65/khofogame/internal/game/cards"
	"github.com/Tantawi65/khofogame/internal/game/rules"
	"github.com/Tantawi65/khofogame/internal/game/zones"
)

// pendingAction is the single in-flight action of a match: a reaction
// window or a follow-up obligation. A nil pendingAction means Idle.
type pendingAction interface {
	gen() uint64
	stop()
	// held lists card instances parked outside every zone while the
	// action is pending.
	held() []zones.Instance
	view() *PendingView
}

// playIntent is a resolved play waiting for its effect.
type playIntent struct {
	actor  string
	target string
	card   cards.Type
	named  cards.Type
}

type reactionPending struct {
	window rules.Window
	play   playIntent
	timer  Timer
}

func (r *reactionPending) gen() uint64 { return r.window.Generation }

func (r *reactionPending) stop() {
	if r.timer != nil {
		r.timer.Stop()
	}
}

func (r *reactionPending) held() []zones.Instance { return nil }

func (r *reactionPending) view() *PendingView {
	return &PendingView{
		Kind:       PendingReaction,
		Card:       r.play.card,
		ActorID:    r.play.actor,
		TargetID:   r.play.target,
		Counters:   r.window.Counters(),
		Round:      r.window.Round,
		Generation: r.window.Generation,
		Deadline:   r.window.Deadline,
	}
}

func (m *Match) playCard(c PlayCard) error {
	if !m.seq.IsTurnOf(c.PlayerID) {
		return reject(KindIllegalTurn, "not your turn")
	}
	if m.pending != nil {
		return reject(KindActionInProgress, "wait for the pending action to finish")
	}

	hand := m.hands[c.PlayerID]
	inst, ok := hand.Find(c.InstanceID)
	if !ok {
		return reject(KindInvalidReference, "card %s is not in your hand", c.InstanceID)
	}
	def := inst.Type.Definition()
	if !def.Playable {
		return reject(KindInvalidReference, "%s cannot be played from hand", def.Name)
	}
	if def.Half && hand.CountOf(inst.Type) < 2 {
		return reject(KindInsufficientResource, "%s needs two copies to play", def.Name)
	}

	intent := playIntent{actor: c.PlayerID, card: inst.Type}
	if def.Targeted {
		if c.Target == "" || c.Target == c.PlayerID || !m.seq.Alive(c.Target) {
			return reject(KindInvalidReference, "%s needs a living opponent as target", def.Name)
		}
		intent.target = c.Target
	}
	if c.Named != "" {
		if inst.Type != cards.Spellbound || !c.Named.Valid() {
			return reject(KindInvalidReference, "cannot name %q for %s", c.Named, def.Name)
		}
		intent.named = c.Named
	}

	// The cost is paid now and stays paid even if the effect is cancelled.
	spent, _ := hand.Remove(inst.ID)
	m.discard.Push(spent)
	if def.Half {
		second, _ := hand.RemoveFirstOf(inst.Type)
		m.discard.Push(second)
	}
	m.broadcast(rules.EventCardPlayed, CardPlayedData{
		PlayerID: c.PlayerID,
		Card:     inst.Type,
		TargetID: intent.target,
	})
	m.logger.Debug("card played",
		zap.String("player_id", c.PlayerID),
		zap.String("card", inst.Type.String()),
		zap.String("target_id", intent.target),
	)

	if def.Cancelable {
		if others := m.seq.Others(c.PlayerID); len(others) > 0 {
			m.openReaction(intent, others)
			return nil
		}
	}
	m.resolveEffect(intent)
	return nil
}

// openReaction starts the first round. Every other living player is asked,
// holder or not, so a prompt reveals nothing about who holds a counter-card.
func (m *Match) openReaction(intent playIntent, prompted []string) {
	gen := m.nextGeneration()
	w := rules.Open(gen, intent.card, intent.actor, intent.target, prompted, m.now().Add(m.opts.ReactionWindow))
	rp := &reactionPending{window: w, play: intent}
	rp.timer = m.schedule(m.opts.ReactionWindow, gen, func() { m.closeWindow(rp) })
	m.pending = rp

	timeout := m.opts.ReactionWindow.Milliseconds()
	m.tell(rules.EventActionPending, ActionPendingData{Card: intent.card, TimeoutMS: timeout}, intent.actor)
	m.broadcast(rules.EventReactionOpened, ReactionOpenedData{
		Card:       intent.card,
		ActorID:    intent.actor,
		TargetID:   intent.target,
		TimeoutMS:  timeout,
		Generation: gen,
	})
	m.promptRound(rp, intent.actor, intent.card, intent.target)
}

func (m *Match) promptRound(rp *reactionPending, actor string, card cards.Type, target string) {
	prompt := ReactionPromptData{
		Generation: rp.window.Generation,
		Round:      rp.window.Round,
		ActorID:    actor,
		ActorName:  m.name(actor),
		Card:       card,
		TimeoutMS:  m.opts.ReactionWindow.Milliseconds(),
	}
	if target != "" {
		prompt.TargetID = target
		prompt.TargetName = m.name(target)
	}
	for _, id := range rp.window.Prompted {
		m.tell(rules.EventReactionPrompt, prompt, id)
	}
}

// respond handles a reaction answer. Anything that does not belong to the
// open round is stale and ignored without an error.
func (m *Match) respond(c RespondReaction) error {
	rp, ok := m.pending.(*reactionPending)
	if !ok {
		m.logger.Debug("ignoring response with no open window", zap.String("player_id", c.PlayerID))
		return nil
	}
	if c.Generation != 0 && c.Generation != rp.window.Generation {
		m.logger.Debug("ignoring response for an earlier round",
			zap.String("player_id", c.PlayerID),
			zap.Uint64("generation", c.Generation),
			zap.Uint64("current", rp.window.Generation),
		)
		return nil
	}
	w, err := rp.window.Respond(c.PlayerID)
	if err != nil {
		m.logger.Debug("ignoring response", zap.String("player_id", c.PlayerID), zap.Error(err))
		return nil
	}
	rp.window = w
	if !c.Accept {
		return nil
	}

	counter, ok := m.hands[c.PlayerID].RemoveFirstOf(cards.Counter)
	if !ok {
		m.logger.Debug("accept without a counter-card counts as decline", zap.String("player_id", c.PlayerID))
		return nil
	}
	m.discard.Push(counter)
	rp.window = rp.window.Counter(c.PlayerID)
	m.broadcast(rules.EventReactionResponse, ReactionResponseData{
		PlayerID: c.PlayerID,
		Counters: rp.window.Counters(),
	})

	eligible := rp.window.Eligible(m.counterHolders())
	if len(eligible) == 0 {
		m.closeWindow(rp)
		return nil
	}

	rp.stop()
	gen := m.nextGeneration()
	rp.window = rp.window.NextRound(gen, eligible, m.now().Add(m.opts.ReactionWindow))
	rp.timer = m.schedule(m.opts.ReactionWindow, gen, func() { m.closeWindow(rp) })
	m.promptRound(rp, c.PlayerID, cards.Counter, "")
	return nil
}

// counterHolders lists living players holding at least one counter-card.
func (m *Match) counterHolders() []string {
	var out []string
	for _, id := range m.seq.Living() {
		if m.hands[id].Has(cards.Counter) {
			out = append(out, id)
		}
	}
	return out
}

// closeWindow evaluates the chain and clears the slot before any effect
// runs, so the effect is free to open a follow-up of its own.
func (m *Match) closeWindow(rp *reactionPending) {
	if m.pending != rp {
		return
	}
	m.clearPending()

	counters := rp.window.Counters()
	switch rp.window.Outcome() {
	case rules.OutcomeCancel:
		m.broadcast(rules.EventActionCancelled, ActionCancelledData{Card: rp.play.card, Counters: counters})
		m.logger.Debug("action cancelled", zap.String("card", rp.play.card.String()), zap.Int("counters", counters))
	case rules.OutcomeExecute:
		m.broadcast(rules.EventActionResolved, ActionResolvedData{Card: rp.play.card, Counters: counters})
		m.resolveEffect(rp.play)
	}
}
