package rules

import (
	"slices"
	"sync"
	"time"
)

// EventType indicates the category of a match notification.
type EventType string

const (
	// Snapshots
	EventState EventType = "state"
	EventHand  EventType = "hand"

	// Turn and play events
	EventGameStarted   EventType = "game_started"
	EventTurnStarted   EventType = "turn_started"
	EventCardPlayed    EventType = "card_played"
	EventActionPending EventType = "action_pending"
	EventActionFailed  EventType = "action_failed"
	EventGameOver      EventType = "game_over"

	// Reaction window events
	EventReactionOpened   EventType = "reaction_opened"
	EventReactionPrompt   EventType = "reaction_prompt"
	EventReactionResponse EventType = "reaction_response"
	EventActionResolved   EventType = "action_resolved"
	EventActionCancelled  EventType = "action_cancelled"

	// Card reveals, private to the players involved
	EventPeekCards        EventType = "peek_cards"
	EventDuelResult       EventType = "duel_result"
	EventSwapResult       EventType = "swap_result"
	EventViewHand         EventType = "view_hand"
	EventFlipTableCards   EventType = "flip_table_cards"
	EventSpellboundResult EventType = "spellbound_result"
	EventBlindStealResult EventType = "blind_steal_result"

	// Follow-up prompts
	EventArrangeHandPrompt EventType = "arrange_hand_prompt"
	EventBlindStealPrompt  EventType = "blind_steal_prompt"
	EventBurnPrompt        EventType = "burn_prompt"
	EventNameCardPrompt    EventType = "name_card_prompt"
	EventPlaceMummyPrompt  EventType = "place_mummy_prompt"

	// Elimination card lifecycle
	EventMummyDrawn       EventType = "mummy_drawn"
	EventMummyDefused     EventType = "mummy_defused"
	EventPlayerEliminated EventType = "player_eliminated"
)

// Event is a notification produced by a match. Recipients lists the players
// allowed to see it; an empty list means every player in the match.
type Event struct {
	Type       EventType
	MatchID    string
	Recipients []string
	Data       any
	Timestamp  time.Time
}

// NewEvent creates a broadcast event.
func NewEvent(eventType EventType, matchID string, data any) Event {
	return Event{
		Type:      eventType,
		MatchID:   matchID,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// NewPrivateEvent creates an event visible only to recipients.
func NewPrivateEvent(eventType EventType, matchID string, data any, recipients ...string) Event {
	evt := NewEvent(eventType, matchID, data)
	evt.Recipients = slices.Clone(recipients)
	return evt
}

// Broadcast reports whether every player may see the event.
func (e Event) Broadcast() bool {
	return len(e.Recipients) == 0
}

// VisibleTo reports whether playerID may see the event.
func (e Event) VisibleTo(playerID string) bool {
	return e.Broadcast() || slices.Contains(e.Recipients, playerID)
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle,
// typed or not.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
// Listeners run on the publishing match's goroutine and must not call back
// into that match synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}
