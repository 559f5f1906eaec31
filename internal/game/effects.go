package game

import (
	"go.uber.org/zap"

	"github.com/Tantawi65/khofogame/internal/game/cards"
	"github.com/Tantawi65/khofogame/internal/game/rules"
	"github.com/Tantawi65/khofogame/internal/game/zones"
)

const (
	sharpEyePeek     = 3
	flipTheTablePeek = 5
	safeTravelsTurns = 2
)

// resolveEffect runs the effect of a play that was not cancelled. Players
// may have left while the window was open; an effect whose actor or target
// is gone fizzles.
func (m *Match) resolveEffect(p playIntent) {
	if !m.seq.Alive(p.actor) {
		m.logger.Debug("effect fizzled, actor gone", zap.String("card", p.card.String()))
		return
	}
	if p.card.Definition().Targeted && !m.seq.Alive(p.target) {
		m.fail(p.actor, p.card, "target is no longer in the match")
		return
	}

	switch p.card {
	case cards.SharpEye:
		m.tell(rules.EventPeekCards, PeekData{Cards: m.deck.PeekTop(sharpEyePeek)}, p.actor)
	case cards.WaitASec:
		m.seq.EndTurn()
	case cards.ShuffleIt:
		m.deck.Shuffle()
	case cards.SafeTravels:
		m.seq.GrantExtraTurns(safeTravelsTurns)
	case cards.MeOrYou:
		m.duel(p.actor, p.target)
	case cards.Spellbound:
		if p.named != "" {
			m.spellbound(p.actor, p.target, p.named)
			return
		}
		m.openFollowUp(&followUp{kind: obligationNameCard, owner: p.actor, actor: p.actor, target: p.target}, m.opts.FollowUpTimeout)
		m.tell(rules.EventNameCardPrompt, NameCardPromptData{
			TargetID:   p.target,
			TargetName: m.name(p.target),
			TimeoutMS:  m.opts.FollowUpTimeout.Milliseconds(),
		}, p.actor)
	case cards.CriminalMummy:
		m.criminalMummy(p.actor, p.target)
	case cards.GiveAndTake:
		m.swap(p.actor, p.target)
	case cards.AllOrNothing:
		m.allOrNothing(p.actor, p.target)
	case cards.FlipTheTable:
		m.flipTheTable(p.actor)
	case cards.ThisIsOnYou:
		if m.deck.Len() == 0 {
			m.fail(p.actor, cards.ThisIsOnYou, "deck is empty")
			return
		}
		m.draw(p.target, false)
	case cards.KingRaSaysNo, cards.TakeALap, cards.Mummified:
		m.logger.Warn("reactive card reached the effect resolver", zap.String("card", p.card.String()))
	default:
		m.logger.Error("no effect for card", zap.String("card", p.card.String()))
	}
}

// draw gives playerID the top card. A turn-ending draw is the normal end of
// a turn; forced and penalty draws leave every turn budget alone.
func (m *Match) draw(playerID string, endsTurn bool) {
	inst, ok := m.deck.Draw()
	if !ok {
		m.fail(playerID, "", "deck is empty")
		return
	}
	if inst.Type == cards.Elimination {
		m.mummyDrawn(playerID, inst, endsTurn)
		return
	}
	m.hands[playerID].Add(inst)
	if endsTurn {
		m.seq.EndTurn()
	}
}

// mummyDrawn consumes a defuse or eliminates the drawer. A defused
// elimination card is retired and a fresh instance goes back into the deck.
func (m *Match) mummyDrawn(playerID string, inst zones.Instance, endsTurn bool) {
	m.broadcast(rules.EventMummyDrawn, MummyData{PlayerID: playerID})

	defuse, ok := m.hands[playerID].RemoveFirstOf(cards.Defuse)
	if !ok {
		m.discard.Push(inst)
		m.eliminate(playerID, EliminatedMummified)
		return
	}
	m.discard.Push(defuse)
	m.broadcast(rules.EventMummyDefused, MummyData{PlayerID: playerID})

	replacement := zones.NewInstance(cards.Elimination)
	if endsTurn && m.opts.ChooseMummyPosition {
		m.openFollowUp(&followUp{
			kind:   obligationPlaceMummy,
			owner:  playerID,
			actor:  playerID,
			parked: []zones.Instance{replacement},
		}, m.opts.FollowUpTimeout)
		m.tell(rules.EventPlaceMummyPrompt, PlaceMummyPromptData{
			DeckSize:  m.deck.Len(),
			TimeoutMS: m.opts.FollowUpTimeout.Milliseconds(),
		}, playerID)
		return
	}
	m.deck.InsertRandom(replacement)
	if endsTurn {
		m.seq.EndTurn()
	}
}

// duel draws one card for each side. The higher value takes both; only the
// winner goes through elimination card handling. A tie puts both cards back
// and reshuffles.
func (m *Match) duel(actor, target string) {
	if m.deck.Len() < 2 {
		m.fail(actor, cards.MeOrYou, "not enough cards in the deck for a duel")
		return
	}
	actorCard, _ := m.deck.Draw()
	targetCard, _ := m.deck.Draw()

	result := DuelResultData{
		ActorID:    actor,
		ActorCard:  actorCard,
		TargetID:   target,
		TargetCard: targetCard,
	}
	switch av, tv := actorCard.Type.Value(), targetCard.Type.Value(); {
	case av > tv:
		result.WinnerID = actor
	case tv > av:
		result.WinnerID = target
	}
	m.tell(rules.EventDuelResult, result, actor, target)

	if result.WinnerID == "" {
		m.deck.InsertRandom(actorCard)
		m.deck.InsertRandom(targetCard)
		m.deck.Shuffle()
		return
	}

	var mummies []zones.Instance
	for _, won := range []zones.Instance{actorCard, targetCard} {
		if won.Type == cards.Elimination {
			mummies = append(mummies, won)
			continue
		}
		m.hands[result.WinnerID].Add(won)
	}
	for _, mummy := range mummies {
		if !m.seq.Alive(result.WinnerID) {
			m.discard.Push(mummy)
			continue
		}
		m.mummyDrawn(result.WinnerID, mummy, false)
	}
}

// swap trades the actor's lowest card (never a defuse) for the target's
// highest.
func (m *Match) swap(actor, target string) {
	low, okLow := m.hands[actor].Lowest(cards.Defuse, cards.Elimination)
	high, okHigh := m.hands[target].Highest(cards.Elimination)
	if !okLow || !okHigh {
		m.fail(actor, cards.GiveAndTake, "not enough cards to swap")
		return
	}
	m.hands[actor].Remove(low.ID)
	m.hands[target].Remove(high.ID)
	m.hands[actor].Add(high)
	m.hands[target].Add(low)

	m.tell(rules.EventSwapResult, SwapResultData{Gave: low, Received: high, WithID: target, WithName: m.name(target)}, actor)
	m.tell(rules.EventSwapResult, SwapResultData{Gave: high, Received: low, WithID: actor, WithName: m.name(actor)}, target)
}

// spellbound takes one named card from the target. On a miss the asker
// draws as a penalty without ending the turn.
func (m *Match) spellbound(actor, target string, named cards.Type) {
	if taken, ok := m.hands[target].RemoveFirstOf(named); ok {
		m.hands[actor].Add(taken)
		m.tell(rules.EventSpellboundResult, SpellboundResultData{Success: true, Card: named, TargetID: target}, actor, target)
		return
	}
	m.tell(rules.EventSpellboundResult, SpellboundResultData{Success: false, Card: named, TargetID: target}, actor)
	m.draw(actor, false)
}

// criminalMummy lets the victim rearrange before the thief picks blind.
func (m *Match) criminalMummy(actor, target string) {
	if m.hands[target].Len() == 0 {
		m.fail(actor, cards.CriminalMummy, "target has no cards")
		return
	}
	m.openFollowUp(&followUp{kind: obligationArrange, owner: target, actor: actor, target: target}, m.opts.ArrangeTimeout)
	m.tell(rules.EventArrangeHandPrompt, ArrangeHandPromptData{
		ThiefID:   actor,
		ThiefName: m.name(actor),
		TimeoutMS: m.opts.ArrangeTimeout.Milliseconds(),
	}, target)
}

func (m *Match) allOrNothing(actor, target string) {
	revealed := m.hands[target].Cards()
	m.tell(rules.EventViewHand, ViewHandData{TargetID: target, Cards: revealed}, actor)
	if len(revealed) == 0 {
		return
	}
	m.openFollowUp(&followUp{kind: obligationBurn, owner: actor, actor: actor, target: target}, m.opts.FollowUpTimeout)
	m.tell(rules.EventBurnPrompt, BurnPromptData{
		TargetID:  target,
		TimeoutMS: m.opts.FollowUpTimeout.Milliseconds(),
	}, actor)
}

func (m *Match) flipTheTable(actor string) {
	top := m.deck.PeekTop(flipTheTablePeek)
	m.tell(rules.EventFlipTableCards, PeekData{Cards: top, TimeoutMS: m.opts.FollowUpTimeout.Milliseconds()}, actor)
	if len(top) < 2 {
		return
	}
	m.openFollowUp(&followUp{kind: obligationReorder, owner: actor, actor: actor, revealed: zones.IDs(top)}, m.opts.FollowUpTimeout)
}
