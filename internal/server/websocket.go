package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tantawi65/khofogame/internal/config"
	"github.com/Tantawi65/khofogame/internal/game"
	"github.com/Tantawi65/khofogame/internal/game/rules"
	"github.com/Tantawi65/khofogame/internal/game/zones"
)

const maxMessageSize = 8 << 10

// Client is one player connection.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	playerID string
	name     string

	// dropped is set by Run when it evicts the client for falling behind.
	dropped bool
}

// unregistration reports through current whether the client was still the
// live connection for its player.
type unregistration struct {
	client  *Client
	current chan bool
}

type delivery struct {
	recipients []string
	payload    []byte
}

// Hub connects websocket clients to the match manager. Match events arrive
// on the bus and are routed to the players allowed to see them.
type Hub struct {
	cfg      config.WebSocketConfig
	manager  *game.Manager
	logger   *zap.Logger
	upgrader websocket.Upgrader

	// Owned by run.
	clients map[string]*Client

	register   chan *Client
	unregister chan unregistration
	deliver    chan delivery
	done       chan struct{}
	stopOnce   sync.Once
	subscribed int

	seatsMu sync.Mutex
	seats   map[string][]string
}

// NewHub creates a hub and subscribes it to the manager's bus.
func NewHub(cfg config.WebSocketConfig, manager *game.Manager, logger *zap.Logger) *Hub {
	h := &Hub{
		cfg:     cfg,
		manager: manager,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// Identity and origin checks belong to the session layer in front.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan unregistration),
		deliver:    make(chan delivery, 1024),
		done:       make(chan struct{}),
		seats:      make(map[string][]string),
	}
	h.subscribed = manager.Bus().Subscribe(h.onEvent)
	return h
}

// Run delivers messages until ctx is cancelled or Stop is called.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for id, c := range h.clients {
			close(c.send)
			delete(h.clients, id)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			h.Stop()
			return
		case <-h.done:
			return
		case c := <-h.register:
			if old, ok := h.clients[c.playerID]; ok {
				close(old.send)
			}
			h.clients[c.playerID] = c
			h.logger.Debug("client registered", zap.String("player_id", c.playerID))
		case u := <-h.unregister:
			c := u.client
			cur, ok := h.clients[c.playerID]
			if ok && cur == c {
				delete(h.clients, c.playerID)
				close(c.send)
				h.logger.Debug("client unregistered", zap.String("player_id", c.playerID))
			}
			// An evicted client still owns the seat until someone reconnects.
			u.current <- (ok && cur == c) || (!ok && c.dropped)
		case d := <-h.deliver:
			for _, id := range d.recipients {
				c, ok := h.clients[id]
				if !ok {
					continue
				}
				select {
				case c.send <- d.payload:
				default:
					h.logger.Warn("dropping slow client", zap.String("player_id", id))
					c.dropped = true
					close(c.send)
					delete(h.clients, id)
				}
			}
		}
	}
}

// Stop ends Run and detaches from the bus.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.manager.Bus().Unsubscribe(h.subscribed)
		close(h.done)
	})
}

// onEvent runs on the publishing match goroutine and must not block on it.
func (h *Hub) onEvent(e rules.Event) {
	recipients := e.Recipients
	if e.Broadcast() {
		recipients = h.seatsOf(e.MatchID)
	}
	if e.Type == rules.EventGameOver {
		h.forget(e.MatchID)
	}
	if len(recipients) == 0 {
		return
	}
	payload, err := json.Marshal(outbound{Type: string(e.Type), MatchID: e.MatchID, Data: e.Data})
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("type", string(e.Type)), zap.Error(err))
		return
	}
	h.push(delivery{recipients: recipients, payload: payload})
}

func (h *Hub) push(d delivery) {
	select {
	case h.deliver <- d:
	case <-h.done:
	}
}

// seatsOf caches the roster of matchID. The first event of a match is
// published while the match is registered, so the lookup succeeds then.
func (h *Hub) seatsOf(matchID string) []string {
	h.seatsMu.Lock()
	defer h.seatsMu.Unlock()
	if ids, ok := h.seats[matchID]; ok {
		return ids
	}
	match, err := h.manager.Get(matchID)
	if err != nil {
		return nil
	}
	seats := match.Seats()
	ids := make([]string, len(seats))
	for i, s := range seats {
		ids[i] = s.ID
	}
	h.seats[matchID] = ids
	return ids
}

func (h *Hub) forget(matchID string) {
	h.seatsMu.Lock()
	defer h.seatsMu.Unlock()
	delete(h.seats, matchID)
}

// sendTo queues a direct reply for one player.
func (h *Hub) sendTo(playerID string, msg outbound) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode reply", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	h.push(delivery{recipients: []string{playerID}, payload: payload})
}

// ServeHTTP upgrades the request. The player id comes from the player_id
// query parameter; a random one is assigned when it is missing.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID := strings.TrimSpace(r.URL.Query().Get("player_id"))
	if playerID == "" {
		playerID = uuid.New().String()
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = playerID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &Client{
		conn:     conn,
		send:     make(chan []byte, h.cfg.SendQueue),
		playerID: playerID,
		name:     name,
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	h.logger.Info("player connected", zap.String("player_id", playerID), zap.String("remote", r.RemoteAddr))

	go h.writePump(c)
	h.sendTo(playerID, outbound{Type: msgWelcome, PlayerID: playerID})
	go h.readPump(c)
}

func (h *Hub) readPump(c *Client) {
	defer func() {
		c.conn.Close()
		u := unregistration{client: c, current: make(chan bool, 1)}
		select {
		case h.unregister <- u:
		case <-h.done:
			return
		}
		// A newer connection for the same player keeps the seat.
		if !<-u.current {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.WriteTimeout)
		defer cancel()
		if err := h.manager.Disconnect(ctx, c.playerID); err != nil && !errors.Is(err, game.ErrMatchClosed) {
			h.logger.Warn("failed to release player", zap.String("player_id", c.playerID), zap.Error(err))
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	pongWait := h.pongWait()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.String("player_id", c.playerID), zap.Error(err))
			}
			return
		}
		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.sendTo(c.playerID, errorMessage("", err))
			continue
		}
		h.handleMessage(c, msg)
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) pongWait() time.Duration {
	return h.cfg.PingInterval * 2
}

func (h *Hub) handleMessage(c *Client, msg WSMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.WriteTimeout)
	defer cancel()

	switch msg.Type {
	case msgStartMatch:
		h.startMatch(c, msg)
		return
	case msgGetState:
		h.sendState(ctx, c)
		return
	}

	cmd, err := decodeCommand(c.playerID, msg)
	if err != nil {
		h.sendTo(c.playerID, errorMessage(msg.MatchID, err))
		return
	}
	match, err := h.manager.MatchOf(c.playerID)
	if err != nil {
		h.sendTo(c.playerID, errorMessage(msg.MatchID, err))
		return
	}
	if err := match.Submit(ctx, cmd); err != nil {
		h.logger.Debug("command rejected",
			zap.String("player_id", c.playerID),
			zap.String("type", msg.Type),
			zap.Error(err),
		)
		h.sendTo(c.playerID, errorMessage(match.ID(), err))
	}
}

// startMatch is the hand-off point for the room layer: the roster arrives
// complete and the match starts at once.
func (h *Hub) startMatch(c *Client, msg WSMessage) {
	var d startMatchData
	if err := decodeData(msg, &d); err != nil {
		h.sendTo(c.playerID, errorMessage("", err))
		return
	}
	match, err := h.manager.Create(d.Players)
	if err != nil {
		h.sendTo(c.playerID, errorMessage("", err))
		return
	}
	for _, s := range match.Seats() {
		h.sendTo(s.ID, outbound{Type: msgMatchCreated, MatchID: match.ID(), PlayerID: s.ID, Data: match.Seats()})
	}
}

type snapshotData struct {
	State game.PublicState `json:"state"`
	Hand  []zones.Instance `json:"hand"`
}

func (h *Hub) sendState(ctx context.Context, c *Client) {
	match, err := h.manager.MatchOf(c.playerID)
	if err != nil {
		h.sendTo(c.playerID, errorMessage("", err))
		return
	}
	st, err := match.State(ctx)
	if err != nil {
		h.sendTo(c.playerID, errorMessage(match.ID(), err))
		return
	}
	hand, err := match.Hand(ctx, c.playerID)
	if err != nil {
		h.sendTo(c.playerID, errorMessage(match.ID(), err))
		return
	}
	h.sendTo(c.playerID, outbound{
		Type:    msgSnapshot,
		MatchID: match.ID(),
		Data:    snapshotData{State: st, Hand: hand},
	})
}
