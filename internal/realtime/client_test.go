package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opschat/internal/events"
)

// wsTestServer accepts websocket connections and records inbound frames. A
// send on dropConn force-closes the current connection, simulating a server
// side drop.
type wsTestServer struct {
	server *httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	inbound  chan events.Frame
	dropConn chan struct{}
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()
	s := &wsTestServer{
		inbound:  make(chan events.Frame, 16),
		dropConn: make(chan struct{}, 1),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				_, raw, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var frame events.Frame
				if json.Unmarshal(raw, &frame) == nil {
					s.inbound <- frame
				}
			}
		}()

		select {
		case <-s.dropConn:
			conn.Close()
		case <-done:
		}
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *wsTestServer) endpoint() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *wsTestServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *wsTestServer) push(t *testing.T, event events.EventType, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(events.Frame{Event: string(event), Data: data})
	require.NoError(t, err)

	s.mu.Lock()
	conn := s.conns[len(s.conns)-1]
	s.mu.Unlock()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func newTestConn(endpoint string) *Conn {
	c := NewConn(endpoint, nil)
	c.backoffBase = 10 * time.Millisecond
	c.backoffMax = 20 * time.Millisecond
	return c
}

func TestConnConnectsAndJoins(t *testing.T) {
	server := newWSTestServer(t)
	conn := newTestConn(server.endpoint())
	defer conn.Close()

	conn.Init("token-1")
	require.NoError(t, conn.WaitForConnection(context.Background()))
	assert.Equal(t, StateConnected, conn.State())

	conversationID := uuid.New()
	require.NoError(t, conn.JoinConversation(context.Background(), conversationID))

	select {
	case frame := <-server.inbound:
		assert.Equal(t, "join_conversation", frame.Event)
	case <-time.After(time.Second):
		t.Fatal("server never received the join frame")
	}
}

func TestConnDispatchesServerEvents(t *testing.T) {
	server := newWSTestServer(t)
	conn := newTestConn(server.endpoint())
	defer conn.Close()

	conn.Init("token-1")
	require.NoError(t, conn.WaitForConnection(context.Background()))

	received := make(chan json.RawMessage, 1)
	id := conn.On(events.EventNewMessage, func(data json.RawMessage) {
		received <- data
	})

	server.push(t, events.EventNewMessage, map[string]string{"content": "hi"})
	select {
	case data := <-received:
		assert.Contains(t, string(data), "hi")
	case <-time.After(time.Second):
		t.Fatal("handler never fired")
	}

	conn.Off(events.EventNewMessage, id)
	server.push(t, events.EventNewMessage, map[string]string{"content": "again"})
	select {
	case <-received:
		t.Fatal("handler fired after Off")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnReconnectsAfterServerDrop(t *testing.T) {
	server := newWSTestServer(t)
	conn := newTestConn(server.endpoint())
	defer conn.Close()

	conn.Init("token-1")
	require.NoError(t, conn.WaitForConnection(context.Background()))
	require.NoError(t, conn.JoinConversation(context.Background(), uuid.New()))
	<-server.inbound // drain the initial join

	server.dropConn <- struct{}{}

	require.Eventually(t, func() bool {
		return server.connCount() == 2 && conn.State() == StateConnected
	}, 2*time.Second, 20*time.Millisecond)

	// The room subscription survives the reconnect.
	select {
	case frame := <-server.inbound:
		assert.Equal(t, "join_conversation", frame.Event)
	case <-time.After(time.Second):
		t.Fatal("conversation was not rejoined after reconnect")
	}
}

func TestConnCloseStaysDown(t *testing.T) {
	server := newWSTestServer(t)
	conn := newTestConn(server.endpoint())

	conn.Init("token-1")
	require.NoError(t, conn.WaitForConnection(context.Background()))

	conn.Close()
	assert.Equal(t, StateDisconnected, conn.State())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, server.connCount())
	assert.Equal(t, StateDisconnected, conn.State())
}

func TestConnEntersErrorStateAfterExhaustedAttempts(t *testing.T) {
	conn := newTestConn("ws://127.0.0.1:1/ws")
	conn.maxAttempts = 2

	conn.Init("token-1")
	require.Eventually(t, func() bool {
		return conn.State() == StateError
	}, 2*time.Second, 20*time.Millisecond)

	assert.ErrorIs(t, conn.WaitForConnection(context.Background()), ErrNotConnected)
}

func TestWaitForConnectionFailsFastWhenIdle(t *testing.T) {
	conn := newTestConn("ws://127.0.0.1:1/ws")
	assert.ErrorIs(t, conn.WaitForConnection(context.Background()), ErrNotConnected)
}

func TestLeaveConversationIsNoOpWhenDisconnected(t *testing.T) {
	conn := newTestConn("ws://127.0.0.1:1/ws")
	assert.NoError(t, conn.LeaveConversation(uuid.New()))
}
