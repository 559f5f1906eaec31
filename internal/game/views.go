package game

import (
	"time"

	"github.com/Tantawi65/khofogame/internal/game/cards"
	"github.com/Tantawi65/khofogame/internal/game/rules"
	"github.com/Tantawi65/khofogame/internal/game/zones"
)

// PublicState is the match snapshot every player may see. Hands appear as
// sizes only.
type PublicState struct {
	MatchID            string       `json:"match_id"`
	Phase              rules.Phase  `json:"phase"`
	Players            []PlayerView `json:"players"`
	CurrentPlayerIndex int          `json:"current_player_index"`
	CurrentPlayerID    string       `json:"current_player_id,omitempty"`
	TurnsRemaining     int          `json:"turns_remaining"`
	DeckCount          int          `json:"deck_count"`
	DiscardPile        []cards.Type `json:"discard_pile"`
	WinnerID           string       `json:"winner_id,omitempty"`
	Pending            *PendingView `json:"pending,omitempty"`
}

// PlayerView is the public part of a player.
type PlayerView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Alive    bool   `json:"alive"`
	HandSize int    `json:"hand_size"`
}

// PendingKind names what a pending action is waiting on.
type PendingKind string

const (
	PendingReaction   PendingKind = "reaction"
	PendingArrange    PendingKind = PendingKind(obligationArrange)
	PendingBlindSteal PendingKind = PendingKind(obligationBlindSteal)
	PendingBurn       PendingKind = PendingKind(obligationBurn)
	PendingReorder    PendingKind = PendingKind(obligationReorder)
	PendingNameCard   PendingKind = PendingKind(obligationNameCard)
	PendingPlaceMummy PendingKind = PendingKind(obligationPlaceMummy)
)

// PendingView describes the pending action without revealing hidden cards.
type PendingView struct {
	Kind       PendingKind `json:"kind"`
	Card       cards.Type  `json:"card,omitempty"`
	OwnerID    string      `json:"owner_id,omitempty"`
	ActorID    string      `json:"actor_id"`
	TargetID   string      `json:"target_id,omitempty"`
	Counters   int         `json:"counters,omitempty"`
	Round      int         `json:"round,omitempty"`
	Generation uint64      `json:"generation"`
	Deadline   time.Time   `json:"deadline"`
}

// HandSnapshot is a private hand, sent only to its owner.
type HandSnapshot struct {
	PlayerID string           `json:"player_id"`
	Cards    []zones.Instance `json:"cards"`
}

func (m *Match) publicState() PublicState {
	players := make([]PlayerView, 0, len(m.seats))
	for _, s := range m.seats {
		players = append(players, PlayerView{
			ID:       s.ID,
			Name:     s.Name,
			Alive:    m.seq.Alive(s.ID),
			HandSize: m.hands[s.ID].Len(),
		})
	}
	st := PublicState{
		MatchID:            m.id,
		Phase:              m.seq.Phase(),
		Players:            players,
		CurrentPlayerIndex: m.seq.CurrentIndex(),
		CurrentPlayerID:    m.seq.Current(),
		TurnsRemaining:     m.seq.TurnsRemaining(),
		DeckCount:          m.deck.Len(),
		DiscardPile:        m.discard.Types(),
		WinnerID:           m.seq.Winner(),
	}
	if m.pending != nil {
		st.Pending = m.pending.view()
	}
	return st
}

// EliminationReason says why a player left the match.
type EliminationReason string

const (
	EliminatedMummified EliminationReason = "mummified"
	EliminatedLeft      EliminationReason = "left"
)

// Notification payloads, one per rules.EventType.

type GameStartedData struct {
	Players []Seat `json:"players"`
}

type TurnStartedData struct {
	PlayerID       string `json:"player_id"`
	TurnsRemaining int    `json:"turns_remaining"`
}

type CardPlayedData struct {
	PlayerID string     `json:"player_id"`
	Card     cards.Type `json:"card"`
	TargetID string     `json:"target_id,omitempty"`
}

type ActionPendingData struct {
	Card      cards.Type `json:"card"`
	TimeoutMS int64      `json:"timeout_ms"`
}

type ActionFailedData struct {
	Card   cards.Type `json:"card,omitempty"`
	Reason string     `json:"reason"`
}

type GameOverData struct {
	WinnerID   string `json:"winner_id,omitempty"`
	WinnerName string `json:"winner_name,omitempty"`
}

type ReactionOpenedData struct {
	Card       cards.Type `json:"card"`
	ActorID    string     `json:"actor_id"`
	TargetID   string     `json:"target_id,omitempty"`
	TimeoutMS  int64      `json:"timeout_ms"`
	Generation uint64     `json:"generation"`
}

type ReactionPromptData struct {
	Generation uint64     `json:"generation"`
	Round      int        `json:"round"`
	ActorID    string     `json:"actor_id"`
	ActorName  string     `json:"actor_name"`
	Card       cards.Type `json:"card"`
	TargetID   string     `json:"target_id,omitempty"`
	TargetName string     `json:"target_name,omitempty"`
	TimeoutMS  int64      `json:"timeout_ms"`
}

type ReactionResponseData struct {
	PlayerID string `json:"player_id"`
	Counters int    `json:"counters"`
}

type ActionResolvedData struct {
	Card     cards.Type `json:"card"`
	Counters int        `json:"counters"`
}

type ActionCancelledData struct {
	Card     cards.Type `json:"card"`
	Counters int        `json:"counters"`
	Reason   string     `json:"reason,omitempty"`
}

type PeekData struct {
	Cards     []zones.Instance `json:"cards"`
	TimeoutMS int64            `json:"timeout_ms,omitempty"`
}

type DuelResultData struct {
	ActorID    string         `json:"actor_id"`
	ActorCard  zones.Instance `json:"actor_card"`
	TargetID   string         `json:"target_id"`
	TargetCard zones.Instance `json:"target_card"`
	WinnerID   string         `json:"winner_id,omitempty"`
}

type SwapResultData struct {
	Gave     zones.Instance `json:"gave"`
	Received zones.Instance `json:"received"`
	WithID   string         `json:"with_id"`
	WithName string         `json:"with_name"`
}

type ViewHandData struct {
	TargetID string           `json:"target_id"`
	Cards    []zones.Instance `json:"cards"`
}

type SpellboundResultData struct {
	Success  bool       `json:"success"`
	Card     cards.Type `json:"card"`
	TargetID string     `json:"target_id"`
}

type BlindStealResultData struct {
	TargetID string         `json:"target_id"`
	Index    int            `json:"index"`
	Success  bool           `json:"success"`
	Card     zones.Instance `json:"card,omitempty"`
}

type ArrangeHandPromptData struct {
	ThiefID   string `json:"thief_id"`
	ThiefName string `json:"thief_name"`
	TimeoutMS int64  `json:"timeout_ms"`
}

type BlindStealPromptData struct {
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
	HandSize   int    `json:"hand_size"`
	TimeoutMS  int64  `json:"timeout_ms"`
}

type BurnPromptData struct {
	TargetID  string `json:"target_id"`
	TimeoutMS int64  `json:"timeout_ms"`
}

type NameCardPromptData struct {
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
	TimeoutMS  int64  `json:"timeout_ms"`
}

type PlaceMummyPromptData struct {
	DeckSize  int   `json:"deck_size"`
	TimeoutMS int64 `json:"timeout_ms"`
}

type MummyData struct {
	PlayerID string `json:"player_id"`
}

type EliminatedData struct {
	PlayerID string            `json:"player_id"`
	Reason   EliminationReason `json:"reason"`
}
