package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"reflect"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tantawi65/khofogame/internal/game/cards"
	"github.com/Tantawi65/khofogame/internal/game/rules"
	"github.com/Tantawi65/khofogame/internal/game/zones"
)

// Seat is a player handed over by the room layer at match start.
type Seat struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Options are the per-match timing and rule switches.
type Options struct {
	ReactionWindow      time.Duration
	ArrangeTimeout      time.Duration
	FollowUpTimeout     time.Duration
	ChooseMummyPosition bool
}

// DefaultOptions returns the reference timings.
func DefaultOptions() Options {
	return Options{
		ReactionWindow:  5 * time.Second,
		ArrangeTimeout:  15 * time.Second,
		FollowUpTimeout: 30 * time.Second,
	}
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. Matches never block on timers; a firing
// only enqueues an event for the match goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Result summarizes a finished match.
type Result struct {
	MatchID    string
	WinnerID   string
	WinnerName string
	Players    []Seat
	StartedAt  time.Time
	FinishedAt time.Time
	Aborted    bool
}

// MatchConfig wires a match to its collaborators. Only Seats is required.
type MatchConfig struct {
	ID        string
	Seats     []Seat
	Options   Options
	Logger    *zap.Logger
	Scheduler Scheduler
	Rand      *rand.Rand
	Publish   func(rules.Event)
	OnFinish  func(Result)
}

type envelope struct {
	run   func() error
	reply chan error
}

// Match is one running game. Every command, timer firing and query is an
// envelope on a single queue drained by one goroutine, so match state needs
// no locking.
type Match struct {
	id       string
	seats    []Seat
	names    map[string]string
	opts     Options
	logger   *zap.Logger
	sched    Scheduler
	publish  func(rules.Event)
	onFinish func(Result)

	inbox     chan envelope
	done      chan struct{}
	stopped   chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	// Owned by the match goroutine.
	deck       *zones.Deck
	hands      map[string]*zones.Hand
	discard    *zones.Discard
	seq        *rules.Sequencer
	pending    pendingAction
	generation uint64
	total      int
	startedAt  time.Time
	announced  int
	finished   bool
	aborted    bool
	lastHands  map[string]string
	lastState  *PublicState
	now        func() time.Time
}

// NewMatch validates the roster, deals the opening hands and returns a match
// that is ready to Start.
func NewMatch(cfg MatchConfig) (*Match, error) {
	if len(cfg.Seats) < zones.MinPlayers || len(cfg.Seats) > zones.MaxPlayers {
		return nil, fmt.Errorf("match needs %d to %d players, got %d", zones.MinPlayers, zones.MaxPlayers, len(cfg.Seats))
	}
	names := make(map[string]string, len(cfg.Seats))
	ids := make([]string, 0, len(cfg.Seats))
	for _, s := range cfg.Seats {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return nil, fmt.Errorf("seat with empty player id")
		}
		if _, dup := names[id]; dup {
			return nil, fmt.Errorf("player %s seated twice", id)
		}
		names[id] = s.Name
		ids = append(ids, id)
	}

	if cfg.ID == "" {
		return nil, fmt.Errorf("match id is required")
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sched := cfg.Scheduler
	if sched == nil {
		sched = wallClock{}
	}
	publish := cfg.Publish
	if publish == nil {
		publish = func(rules.Event) {}
	}
	opts := cfg.Options
	defaults := DefaultOptions()
	if opts.ReactionWindow <= 0 {
		opts.ReactionWindow = defaults.ReactionWindow
	}
	if opts.ArrangeTimeout <= 0 {
		opts.ArrangeTimeout = defaults.ArrangeTimeout
	}
	if opts.FollowUpTimeout <= 0 {
		opts.FollowUpTimeout = defaults.FollowUpTimeout
	}

	deck, dealt, err := zones.Deal(len(ids), rng)
	if err != nil {
		return nil, fmt.Errorf("failed to deal: %w", err)
	}
	hands := make(map[string]*zones.Hand, len(ids))
	for i, id := range ids {
		hands[id] = dealt[i]
	}

	seats := make([]Seat, len(ids))
	for i, id := range ids {
		seats[i] = Seat{ID: id, Name: names[id]}
	}

	return &Match{
		id:        cfg.ID,
		seats:     seats,
		names:     names,
		opts:      opts,
		logger:    logger.With(zap.String("match_id", cfg.ID)),
		sched:     sched,
		publish:   publish,
		onFinish:  cfg.OnFinish,
		inbox:     make(chan envelope),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		deck:      deck,
		hands:     hands,
		discard:   zones.NewDiscard(),
		seq:       rules.NewSequencer(ids),
		total:     cards.TotalInstances(len(ids)),
		lastHands: make(map[string]string, len(ids)),
		now:       time.Now,
	}, nil
}

// ID returns the match id.
func (m *Match) ID() string {
	return m.id
}

// Seats returns the roster in seating order.
func (m *Match) Seats() []Seat {
	out := make([]Seat, len(m.seats))
	copy(out, m.seats)
	return out
}

// Start launches the match goroutine and begins the first turn.
func (m *Match) Start() error {
	started := false
	m.startOnce.Do(func() {
		started = true
		go m.loop()
	})
	if !started {
		return fmt.Errorf("match %s already started", m.id)
	}
	return m.call(context.Background(), func() error {
		if err := m.seq.Start(); err != nil {
			return err
		}
		m.startedAt = m.now()
		m.broadcast(rules.EventGameStarted, GameStartedData{Players: m.Seats()})
		m.logger.Info("match started", zap.Int("players", len(m.seats)))
		return nil
	})
}

// Close stops the match goroutine and cancels any pending timer. Commands
// submitted afterwards fail with ErrMatchClosed.
func (m *Match) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	m.startOnce.Do(func() {
		close(m.stopped)
	})
	<-m.stopped
}

// Done is closed once the match goroutine has exited.
func (m *Match) Done() <-chan struct{} {
	return m.stopped
}

// Submit queues cmd and waits for it to be processed. A rejected command
// returns a *CommandError and leaves the match unchanged.
func (m *Match) Submit(ctx context.Context, cmd Command) error {
	if cmd == nil {
		return reject(KindInvalidReference, "nil command")
	}
	return m.call(ctx, func() error {
		return m.apply(cmd)
	})
}

// State returns the public snapshot.
func (m *Match) State(ctx context.Context) (PublicState, error) {
	var st PublicState
	err := m.call(ctx, func() error {
		st = m.publicState()
		return nil
	})
	return st, err
}

// Hand returns playerID's private hand.
func (m *Match) Hand(ctx context.Context, playerID string) ([]zones.Instance, error) {
	var out []zones.Instance
	err := m.call(ctx, func() error {
		h, ok := m.hands[playerID]
		if !ok {
			return reject(KindInvalidReference, "player %s is not seated", playerID)
		}
		out = h.Cards()
		return nil
	})
	return out, err
}

func (m *Match) call(ctx context.Context, fn func() error) error {
	env := envelope{run: fn, reply: make(chan error, 1)}
	select {
	case m.inbox <- env:
	case <-m.done:
		return ErrMatchClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-env.reply:
		return err
	case <-m.stopped:
		return ErrMatchClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Match) loop() {
	defer close(m.stopped)
	for {
		select {
		case <-m.done:
			if m.pending != nil {
				m.pending.stop()
			}
			return
		case env := <-m.inbox:
			err := env.run()
			m.flush()
			env.reply <- err
		}
	}
}

// schedule arms a timer for the pending action with generation gen. The
// callback only runs if that action is still the pending one when the
// timer event reaches the front of the queue.
func (m *Match) schedule(d time.Duration, gen uint64, fire func()) Timer {
	return m.sched.AfterFunc(d, func() {
		_ = m.call(context.Background(), func() error {
			if m.seq.Phase() != rules.PhasePlaying || m.pending == nil || m.pending.gen() != gen {
				m.logger.Debug("dropping stale timer", zap.Uint64("generation", gen))
				return nil
			}
			fire()
			return nil
		})
	})
}

func (m *Match) nextGeneration() uint64 {
	m.generation++
	return m.generation
}

func (m *Match) apply(cmd Command) error {
	if m.seq.Phase() != rules.PhasePlaying {
		return reject(KindIllegalTurn, "match is not in progress")
	}
	player := cmd.Player()
	if !m.seq.Seated(player) {
		return reject(KindInvalidReference, "player %s is not seated", player)
	}
	if !m.seq.Alive(player) {
		if _, ok := cmd.(Leave); ok {
			return nil
		}
		return reject(KindIllegalTurn, "player %s has been eliminated", player)
	}

	switch c := cmd.(type) {
	case PlayCard:
		return m.playCard(c)
	case DrawCard:
		return m.drawCard(c)
	case RespondReaction:
		return m.respond(c)
	case SelectBlindSteal:
		return m.selectBlindSteal(c)
	case SubmitHandOrder:
		return m.submitHandOrder(c)
	case SubmitDeckTopOrder:
		return m.submitDeckTopOrder(c)
	case BurnCard:
		return m.burnCard(c)
	case NameCard:
		return m.nameCard(c)
	case ChooseInsertion:
		return m.chooseInsertion(c)
	case Leave:
		m.logger.Info("player left", zap.String("player_id", player))
		m.eliminate(player, EliminatedLeft)
		return nil
	default:
		return reject(KindInvalidReference, "unsupported command %T", cmd)
	}
}

func (m *Match) drawCard(c DrawCard) error {
	if !m.seq.IsTurnOf(c.PlayerID) {
		return reject(KindIllegalTurn, "not your turn")
	}
	if m.pending != nil {
		return reject(KindActionInProgress, "wait for the pending action to finish")
	}
	if m.deck.Len() == 0 {
		return reject(KindInsufficientResource, "deck is empty")
	}
	m.draw(c.PlayerID, true)
	return nil
}

func (m *Match) clearPending() {
	if m.pending != nil {
		m.pending.stop()
		m.pending = nil
	}
}

// eliminate removes playerID from the match, discarding their whole hand.
// Any pending action that cannot continue without them is wound down first.
func (m *Match) eliminate(playerID string, reason EliminationReason) {
	if !m.seq.Alive(playerID) {
		return
	}
	m.releasePending(playerID)
	m.discard.Push(m.hands[playerID].TakeAll()...)
	m.seq.Eliminate(playerID)
	m.broadcast(rules.EventPlayerEliminated, EliminatedData{PlayerID: playerID, Reason: reason})
	m.logger.Info("player eliminated",
		zap.String("player_id", playerID),
		zap.String("reason", string(reason)),
	)
}

// flush runs after every envelope: invariants first, then the snapshots and
// boundary events that changed.
func (m *Match) flush() {
	if m.seq.Phase() == rules.PhaseWaiting {
		return
	}
	if !m.finished {
		if err := m.checkConservation(); err != nil {
			m.logger.Error("aborting match", zap.Error(err))
			m.clearPending()
			m.seq.Abort()
			m.aborted = true
		}
	}

	for _, s := range m.seats {
		h := m.hands[s.ID]
		sig := strings.Join(zones.IDs(h.Cards()), ",")
		if last, ok := m.lastHands[s.ID]; ok && last == sig {
			continue
		}
		m.lastHands[s.ID] = sig
		m.tell(rules.EventHand, HandSnapshot{PlayerID: s.ID, Cards: h.Cards()}, s.ID)
	}

	st := m.publicState()
	if m.lastState == nil || !reflect.DeepEqual(*m.lastState, st) {
		m.lastState = &st
		m.broadcast(rules.EventState, st)
	}

	switch m.seq.Phase() {
	case rules.PhasePlaying:
		if turn := m.seq.Turn(); turn != m.announced {
			m.announced = turn
			m.broadcast(rules.EventTurnStarted, TurnStartedData{
				PlayerID:       m.seq.Current(),
				TurnsRemaining: m.seq.TurnsRemaining(),
			})
		}
	case rules.PhaseGameOver:
		if !m.finished {
			m.finish()
		}
	}
}

func (m *Match) finish() {
	m.finished = true
	m.clearPending()
	winner := m.seq.Winner()
	m.broadcast(rules.EventGameOver, GameOverData{WinnerID: winner, WinnerName: m.names[winner]})
	m.logger.Info("match finished",
		zap.String("winner_id", winner),
		zap.Bool("aborted", m.aborted),
	)
	if m.onFinish != nil {
		m.onFinish(Result{
			MatchID:    m.id,
			WinnerID:   winner,
			WinnerName: m.names[winner],
			Players:    m.Seats(),
			StartedAt:  m.startedAt,
			FinishedAt: m.now(),
			Aborted:    m.aborted,
		})
	}
}

// checkConservation verifies that no card instance was created or lost.
func (m *Match) checkConservation() error {
	count := m.deck.Len() + m.discard.Len()
	for _, h := range m.hands {
		count += h.Len()
	}
	if m.pending != nil {
		count += len(m.pending.held())
	}
	if count != m.total {
		return fmt.Errorf("%w: have %d instances, want %d", ErrConservation, count, m.total)
	}
	return nil
}

func (m *Match) broadcast(t rules.EventType, data any) {
	m.publish(rules.NewEvent(t, m.id, data))
}

func (m *Match) tell(t rules.EventType, data any, recipients ...string) {
	m.publish(rules.NewPrivateEvent(t, m.id, data, recipients...))
}

func (m *Match) fail(playerID string, card cards.Type, reason string) {
	m.tell(rules.EventActionFailed, ActionFailedData{Card: card, Reason: reason}, playerID)
	m.logger.Debug("action failed",
		zap.String("player_id", playerID),
		zap.String("card", card.String()),
		zap.String("reason", reason),
	)
}

func (m *Match) name(playerID string) string {
	if n, ok := m.names[playerID]; ok && n != "" {
		return n
	}
	return playerID
}
