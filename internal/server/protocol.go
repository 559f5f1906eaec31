package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Tantawi65/khofogame/internal/game"
	"github.com/Tantawi65/khofogame/internal/game/cards"
)

// Inbound message types.
const (
	msgStartMatch         = "start_match"
	msgGetState           = "get_state"
	msgPlayCard           = "play_card"
	msgDrawCard           = "draw_card"
	msgRespondReaction    = "respond_reaction"
	msgSelectBlindSteal   = "select_blind_steal"
	msgSubmitHandOrder    = "submit_hand_order"
	msgSubmitDeckTopOrder = "submit_deck_top_order"
	msgBurnCard           = "burn_card"
	msgNameCard           = "name_card"
	msgChooseInsertion    = "choose_insertion"
	msgLeave              = "leave"
)

// Outbound message types that are not match events.
const (
	msgError        = "error"
	msgMatchCreated = "match_created"
	msgWelcome      = "welcome"
	msgSnapshot     = "snapshot"
)

// WSMessage is the envelope for both directions.
type WSMessage struct {
	Type     string          `json:"type"`
	MatchID  string          `json:"match_id,omitempty"`
	PlayerID string          `json:"player_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Type     string `json:"type"`
	MatchID  string `json:"match_id,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	Data     any    `json:"data,omitempty"`
}

type errorData struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

type startMatchData struct {
	Players []game.Seat `json:"players"`
}

type playCardData struct {
	InstanceID string     `json:"instance_id"`
	Target     string     `json:"target_id"`
	Named      cards.Type `json:"named_card"`
}

type respondReactionData struct {
	Accept     bool   `json:"accept"`
	Generation uint64 `json:"generation"`
}

type indexData struct {
	Index int `json:"index"`
}

type orderData struct {
	Order []string `json:"order"`
}

type instanceData struct {
	InstanceID string `json:"instance_id"`
}

type nameCardData struct {
	Target string     `json:"target_id"`
	Card   cards.Type `json:"card_id"`
}

type offsetData struct {
	Offset int `json:"offset"`
}

var errUnknownMessage = errors.New("unknown message type")

// decodeCommand turns a player message into a match command. The player id
// always comes from the connection, never from the payload.
func decodeCommand(playerID string, msg WSMessage) (game.Command, error) {
	switch msg.Type {
	case msgPlayCard:
		var d playCardData
		if err := decodeData(msg, &d); err != nil {
			return nil, err
		}
		return game.PlayCard{PlayerID: playerID, InstanceID: d.InstanceID, Target: d.Target, Named: d.Named}, nil
	case msgDrawCard:
		return game.DrawCard{PlayerID: playerID}, nil
	case msgRespondReaction:
		var d respondReactionData
		if err := decodeData(msg, &d); err != nil {
			return nil, err
		}
		return game.RespondReaction{PlayerID: playerID, Accept: d.Accept, Generation: d.Generation}, nil
	case msgSelectBlindSteal:
		var d indexData
		if err := decodeData(msg, &d); err != nil {
			return nil, err
		}
		return game.SelectBlindSteal{PlayerID: playerID, Index: d.Index}, nil
	case msgSubmitHandOrder:
		var d orderData
		if err := decodeData(msg, &d); err != nil {
			return nil, err
		}
		return game.SubmitHandOrder{PlayerID: playerID, Order: d.Order}, nil
	case msgSubmitDeckTopOrder:
		var d orderData
		if err := decodeData(msg, &d); err != nil {
			return nil, err
		}
		return game.SubmitDeckTopOrder{PlayerID: playerID, Order: d.Order}, nil
	case msgBurnCard:
		var d instanceData
		if err := decodeData(msg, &d); err != nil {
			return nil, err
		}
		return game.BurnCard{PlayerID: playerID, InstanceID: d.InstanceID}, nil
	case msgNameCard:
		var d nameCardData
		if err := decodeData(msg, &d); err != nil {
			return nil, err
		}
		return game.NameCard{PlayerID: playerID, Target: d.Target, Card: d.Card}, nil
	case msgChooseInsertion:
		var d offsetData
		if err := decodeData(msg, &d); err != nil {
			return nil, err
		}
		return game.ChooseInsertion{PlayerID: playerID, Offset: d.Offset}, nil
	case msgLeave:
		return game.Leave{PlayerID: playerID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownMessage, msg.Type)
	}
}

func decodeData(msg WSMessage, into any) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%s needs a data payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Data, into); err != nil {
		return fmt.Errorf("invalid %s payload: %w", msg.Type, err)
	}
	return nil
}

// errorMessage renders err for the submitter, keeping the rejection kind
// machine readable.
func errorMessage(matchID string, err error) outbound {
	data := errorData{Message: err.Error()}
	var ce *game.CommandError
	if errors.As(err, &ce) {
		data.Kind = string(ce.Kind)
		data.Message = ce.Msg
	}
	return outbound{Type: msgError, MatchID: matchID, Data: data}
}
