package game

import (
	"time"

	"go.uber.org/zap"

	"github.com/Tantawi65/khofogame/internal/game/rules"
	"github.com/Tantawi65/khofogame/internal/game/zones"
)

type obligationKind string

const (
	obligationArrange    obligationKind = "arrange_hand"
	obligationBlindSteal obligationKind = "blind_steal"
	obligationBurn       obligationKind = "burn_card"
	obligationReorder    obligationKind = "reorder_deck_top"
	obligationNameCard   obligationKind = "name_card"
	obligationPlaceMummy obligationKind = "place_mummy"
)

// followUp is an out-of-band choice an effect is blocked on. Only owner
// may answer; the fallback timer applies the conservative outcome.
type followUp struct {
	generation uint64
	kind       obligationKind
	owner      string
	actor      string
	target     string
	revealed   []string
	parked     []zones.Instance
	deadline   time.Time
	timer      Timer
}

func (f *followUp) gen() uint64 { return f.generation }

func (f *followUp) stop() {
	if f.timer != nil {
		f.timer.Stop()
	}
}

func (f *followUp) held() []zones.Instance { return f.parked }

func (f *followUp) view() *PendingView {
	return &PendingView{
		Kind:       PendingKind(f.kind),
		OwnerID:    f.owner,
		ActorID:    f.actor,
		TargetID:   f.target,
		Generation: f.generation,
		Deadline:   f.deadline,
	}
}

// openFollowUp makes f the pending action, replacing whatever was there.
func (m *Match) openFollowUp(f *followUp, timeout time.Duration) {
	m.clearPending()
	f.generation = m.nextGeneration()
	f.deadline = m.now().Add(timeout)
	f.timer = m.schedule(timeout, f.generation, func() {
		m.logger.Debug("follow-up timed out",
			zap.String("kind", string(f.kind)),
			zap.String("owner_id", f.owner),
		)
		m.expire(f)
	})
	m.pending = f
}

// expire applies the fallback for an unanswered obligation.
func (m *Match) expire(f *followUp) {
	if m.pending != f {
		return
	}
	switch f.kind {
	case obligationArrange:
		m.startBlindSteal(f)
	case obligationPlaceMummy:
		m.clearPending()
		m.deck.InsertRandom(f.parked[0])
		m.seq.EndTurn()
	default:
		m.clearPending()
	}
}

// releasePending winds down the pending action before playerID leaves.
func (m *Match) releasePending(playerID string) {
	switch p := m.pending.(type) {
	case *reactionPending:
		if p.play.actor == playerID {
			m.clearPending()
			m.broadcast(rules.EventActionCancelled, ActionCancelledData{
				Card:     p.play.card,
				Counters: p.window.Counters(),
				Reason:   "actor left",
			})
			return
		}
		if w, err := p.window.Respond(playerID); err == nil {
			p.window = w
		}
	case *followUp:
		if p.owner != playerID && p.target != playerID {
			return
		}
		if p.kind == obligationPlaceMummy {
			m.expire(p)
			return
		}
		m.clearPending()
	}
}

// obligation returns the open follow-up of kind if playerID owns it.
func (m *Match) obligation(kind obligationKind, playerID string) (*followUp, error) {
	f, ok := m.pending.(*followUp)
	if !ok || f.kind != kind {
		return nil, reject(KindIllegalTurn, "no %s choice is pending", kind)
	}
	if f.owner != playerID {
		return nil, reject(KindIllegalTurn, "waiting on another player")
	}
	return f, nil
}

func (m *Match) startBlindSteal(f *followUp) {
	if !m.seq.Alive(f.actor) || !m.seq.Alive(f.target) || m.hands[f.target].Len() == 0 {
		m.clearPending()
		return
	}
	m.openFollowUp(&followUp{kind: obligationBlindSteal, owner: f.actor, actor: f.actor, target: f.target}, m.opts.FollowUpTimeout)
	m.tell(rules.EventBlindStealPrompt, BlindStealPromptData{
		TargetID:   f.target,
		TargetName: m.name(f.target),
		HandSize:   m.hands[f.target].Len(),
		TimeoutMS:  m.opts.FollowUpTimeout.Milliseconds(),
	}, f.actor)
}

// selectBlindSteal takes the card at the chosen position. An out of range
// position steals nothing.
func (m *Match) selectBlindSteal(c SelectBlindSteal) error {
	f, err := m.obligation(obligationBlindSteal, c.PlayerID)
	if err != nil {
		return err
	}
	m.clearPending()

	victim := m.hands[f.target]
	stolen, ok := victim.At(c.Index)
	if !ok {
		m.tell(rules.EventBlindStealResult, BlindStealResultData{TargetID: f.target, Index: c.Index}, f.actor)
		return nil
	}
	victim.Remove(stolen.ID)
	m.hands[f.actor].Add(stolen)
	m.tell(rules.EventBlindStealResult, BlindStealResultData{
		TargetID: f.target,
		Index:    c.Index,
		Success:  true,
		Card:     stolen,
	}, f.actor, f.target)
	return nil
}

// submitHandOrder is accepted at any time for the submitter's own hand. It
// also completes the victim's arrange step of a blind steal.
func (m *Match) submitHandOrder(c SubmitHandOrder) error {
	if !m.hands[c.PlayerID].Reorder(c.Order) {
		return reject(KindInvalidReference, "order must list every card in your hand exactly once")
	}
	if f, ok := m.pending.(*followUp); ok && f.kind == obligationArrange && f.owner == c.PlayerID {
		m.startBlindSteal(f)
	}
	return nil
}

func (m *Match) submitDeckTopOrder(c SubmitDeckTopOrder) error {
	f, err := m.obligation(obligationReorder, c.PlayerID)
	if err != nil {
		return err
	}
	if len(c.Order) != len(f.revealed) || !m.deck.ReorderTop(c.Order) {
		return reject(KindInvalidReference, "order must be a permutation of the revealed cards")
	}
	m.clearPending()
	return nil
}

func (m *Match) burnCard(c BurnCard) error {
	f, err := m.obligation(obligationBurn, c.PlayerID)
	if err != nil {
		return err
	}
	burned, ok := m.hands[f.target].Remove(c.InstanceID)
	if !ok {
		return reject(KindInvalidReference, "card %s is not in the revealed hand", c.InstanceID)
	}
	m.discard.Push(burned)
	m.clearPending()
	return nil
}

func (m *Match) nameCard(c NameCard) error {
	f, err := m.obligation(obligationNameCard, c.PlayerID)
	if err != nil {
		return err
	}
	if c.Target != "" && c.Target != f.target {
		return reject(KindInvalidReference, "Spellbound was played on %s", f.target)
	}
	if !c.Card.Valid() {
		return reject(KindInvalidReference, "unknown card %q", c.Card)
	}
	m.clearPending()
	m.spellbound(f.actor, f.target, c.Card)
	return nil
}

func (m *Match) chooseInsertion(c ChooseInsertion) error {
	f, err := m.obligation(obligationPlaceMummy, c.PlayerID)
	if err != nil {
		return err
	}
	m.clearPending()
	m.deck.InsertAt(f.parked[0], c.Offset)
	m.seq.EndTurn()
	return nil
}
