package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tantawi65/khofogame/internal/config"
	"github.com/Tantawi65/khofogame/internal/game"
)

type testServer struct {
	manager *game.Manager
	hub     *Hub
	url     string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	manager := game.NewManager(logger, nil, game.WithRand(7))
	hub := NewHub(config.WebSocketConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		WriteTimeout:    2 * time.Second,
		PingInterval:    time.Minute,
		SendQueue:       64,
	}, manager, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		manager.Close()
	})

	return &testServer{
		manager: manager,
		hub:     hub,
		url:     "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

// connect dials as playerID and waits for the welcome, after which the hub
// has the client registered.
func (s *testServer) connect(t *testing.T, playerID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.url+"?player_id="+playerID+"&name="+playerID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msg := readUntil(t, conn, msgWelcome)
	require.Equal(t, playerID, msg.PlayerID)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	msg := WSMessage{Type: msgType}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		msg.Data = raw
	}
	require.NoError(t, conn.WriteJSON(msg))
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", msgType)
		if msg.Type == msgType {
			return msg
		}
	}
}

// readAll reads until every type in types has arrived, in any order.
func readAll(t *testing.T, conn *websocket.Conn, types ...string) map[string]WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	seen := make(map[string]WSMessage, len(types))
	for len(seen) < len(types) {
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %v", types)
		for _, typ := range types {
			if msg.Type == typ {
				seen[typ] = msg
			}
		}
	}
	return seen
}

func startMatch(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	send(t, conn, msgStartMatch, startMatchData{Players: []game.Seat{
		{ID: "p1", Name: "Alice"},
		{ID: "p2", Name: "Bob"},
	}})
}

func TestHubStartsMatchForEverySeat(t *testing.T) {
	s := newTestServer(t)
	p1 := s.connect(t, "p1")
	p2 := s.connect(t, "p2")

	startMatch(t, p1)

	for _, conn := range []*websocket.Conn{p1, p2} {
		got := readAll(t, conn, msgMatchCreated, "game_started")
		created, started := got[msgMatchCreated], got["game_started"]
		assert.NotEmpty(t, created.MatchID)
		assert.Equal(t, created.MatchID, started.MatchID)

		var data game.GameStartedData
		require.NoError(t, json.Unmarshal(started.Data, &data))
		assert.Len(t, data.Players, 2)
	}

	match, err := s.manager.MatchOf("p1")
	require.NoError(t, err)
	assert.Equal(t, []string{match.ID()}, s.manager.List())
}

func TestHubDeliversHandsPrivately(t *testing.T) {
	s := newTestServer(t)
	p1 := s.connect(t, "p1")
	p2 := s.connect(t, "p2")

	startMatch(t, p1)

	for id, conn := range map[string]*websocket.Conn{"p1": p1, "p2": p2} {
		msg := readUntil(t, conn, "hand")
		var hand game.HandSnapshot
		require.NoError(t, json.Unmarshal(msg.Data, &hand))
		assert.Equal(t, id, hand.PlayerID)
		assert.NotEmpty(t, hand.Cards)
	}
}

func TestHubRejectsOutOfTurnDraw(t *testing.T) {
	s := newTestServer(t)
	p1 := s.connect(t, "p1")
	p2 := s.connect(t, "p2")

	startMatch(t, p1)
	readUntil(t, p2, "game_started")

	send(t, p2, msgDrawCard, nil)
	msg := readUntil(t, p2, msgError)

	var data errorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, string(game.KindIllegalTurn), data.Kind)
	assert.NotEmpty(t, msg.MatchID)
}

func TestHubSnapshot(t *testing.T) {
	s := newTestServer(t)
	p1 := s.connect(t, "p1")
	s.connect(t, "p2")

	startMatch(t, p1)
	readUntil(t, p1, "game_started")

	send(t, p1, msgGetState, nil)
	msg := readUntil(t, p1, msgSnapshot)

	var data snapshotData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "p1", data.State.CurrentPlayerID)
	assert.Len(t, data.State.Players, 2)
	assert.Len(t, data.Hand, data.State.Players[0].HandSize)
}

func TestHubSnapshotWithoutMatch(t *testing.T) {
	s := newTestServer(t)
	p1 := s.connect(t, "p1")

	send(t, p1, msgGetState, nil)
	msg := readUntil(t, p1, msgError)

	var data errorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Contains(t, data.Message, game.ErrMatchNotFound.Error())
}

func TestHubUnknownMessage(t *testing.T) {
	s := newTestServer(t)
	p1 := s.connect(t, "p1")

	send(t, p1, "teleport", nil)
	msg := readUntil(t, p1, msgError)

	var data errorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Contains(t, data.Message, "teleport")
}

func TestHubDisconnectLeavesMatch(t *testing.T) {
	s := newTestServer(t)
	p1 := s.connect(t, "p1")
	p2 := s.connect(t, "p2")

	startMatch(t, p1)
	readUntil(t, p2, "game_started")

	require.NoError(t, p2.Close())

	msg := readUntil(t, p1, "game_over")
	var data game.GameOverData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "p1", data.WinnerID)
}

// newBareHub runs a hub with no listener. deliver is unbuffered so every
// send below is handled by Run before the next one is received.
func newBareHub(t *testing.T) *Hub {
	t.Helper()
	logger := zaptest.NewLogger(t)
	manager := game.NewManager(logger, nil)
	hub := NewHub(config.WebSocketConfig{
		WriteTimeout: time.Second,
		PingInterval: time.Minute,
		SendQueue:    1,
	}, manager, logger)
	hub.deliver = make(chan delivery)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		manager.Close()
	})
	return hub
}

func unregister(t *testing.T, hub *Hub, c *Client) bool {
	t.Helper()
	u := unregistration{client: c, current: make(chan bool, 1)}
	hub.unregister <- u
	select {
	case current := <-u.current:
		return current
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not answer the unregistration")
		return false
	}
}

func TestHubSlowClientKeepsSeatForLeave(t *testing.T) {
	t.Run("dropped client still owns its seat", func(t *testing.T) {
		hub := newBareHub(t)
		c := &Client{send: make(chan []byte, 1), playerID: "p1"}
		hub.register <- c

		hub.deliver <- delivery{recipients: []string{"p1"}, payload: []byte("first")}
		hub.deliver <- delivery{recipients: []string{"p1"}, payload: []byte("second")}

		assert.True(t, unregister(t, hub, c))
		assert.Equal(t, []byte("first"), <-c.send)
		_, open := <-c.send
		assert.False(t, open, "slow client's queue should be closed")
	})

	t.Run("reconnect after drop takes the seat", func(t *testing.T) {
		hub := newBareHub(t)
		stale := &Client{send: make(chan []byte, 1), playerID: "p1"}
		hub.register <- stale
		hub.deliver <- delivery{recipients: []string{"p1"}, payload: []byte("first")}
		hub.deliver <- delivery{recipients: []string{"p1"}, payload: []byte("second")}

		fresh := &Client{send: make(chan []byte, 1), playerID: "p1"}
		hub.register <- fresh

		assert.False(t, unregister(t, hub, stale))
		assert.True(t, unregister(t, hub, fresh))
	})

	t.Run("replaced client does not own the seat", func(t *testing.T) {
		hub := newBareHub(t)
		old := &Client{send: make(chan []byte, 1), playerID: "p1"}
		hub.register <- old
		hub.register <- &Client{send: make(chan []byte, 1), playerID: "p1"}

		assert.False(t, unregister(t, hub, old))
	})
}
