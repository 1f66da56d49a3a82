package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"opschat/internal/events"
	"opschat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State is the connection lifecycle of a Conn.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	}
	return "unknown"
}

const (
	initialBackoff = time.Second
	maxBackoff     = 5 * time.Second
	maxAttempts    = 5
	connectTimeout = 10 * time.Second
)

var (
	ErrNotConnected   = errors.New("realtime: not connected")
	ErrConnectTimeout = errors.New("realtime: connection wait timed out")
)

// EventHandler receives the data half of a server frame.
type EventHandler func(data json.RawMessage)

// OutgoingMessage is the payload of a message:send frame.
type OutgoingMessage struct {
	ConversationID   uuid.UUID     `json:"conversation_id"`
	Content          string        `json:"content"`
	MessageType      string        `json:"message_type,omitempty"`
	ReplyToMessageID uuid.NullUUID `json:"reply_to_message_id,omitempty"`
}

// Conn is a reconnecting websocket client. Init starts a dial loop with
// exponential backoff; an unexpected server drop re-enters the loop with a
// fresh attempt budget, while Close is the only clean way out.
type Conn struct {
	endpoint string
	dialer   *websocket.Dialer
	log      *logger.Logger

	backoffBase time.Duration
	backoffMax  time.Duration
	maxAttempts int

	mu        sync.Mutex
	state     State
	ws        *websocket.Conn
	token     string
	gen       int
	connected chan struct{}
	failed    chan struct{}
	closing   bool
	joined    map[uuid.UUID]struct{}

	writeMu sync.Mutex

	handlerMu sync.RWMutex
	handlers  map[string]map[int]EventHandler
	nextID    int
}

// NewConn prepares a client for the given ws endpoint, e.g.
// "ws://host:8080/ws". No connection is made until Init.
func NewConn(endpoint string, log *logger.Logger) *Conn {
	return &Conn{
		endpoint:    endpoint,
		dialer:      websocket.DefaultDialer,
		log:         log,
		backoffBase: initialBackoff,
		backoffMax:  maxBackoff,
		maxAttempts: maxAttempts,
		state:       StateDisconnected,
		connected:   make(chan struct{}),
		failed:      make(chan struct{}),
		joined:      make(map[uuid.UUID]struct{}),
		handlers:    make(map[string]map[int]EventHandler),
	}
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Init starts connecting with the given token. A live or in-flight connection
// is torn down first and replaced, so Init with a fresh token always wins.
func (c *Conn) Init(token string) {
	c.mu.Lock()
	old := c.ws
	c.ws = nil
	if c.state == StateConnected {
		c.connected = make(chan struct{})
	}
	c.token = token
	c.closing = false
	c.state = StateConnecting
	c.failed = make(chan struct{})
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	go c.connectLoop(gen)
}

func (c *Conn) connectLoop(gen int) {
	backoff := c.backoffBase
	for attempt := 1; ; attempt++ {
		c.mu.Lock()
		if c.gen != gen || c.closing {
			c.mu.Unlock()
			return
		}
		target := c.dialURL()
		c.mu.Unlock()

		ws, resp, err := c.dialer.Dial(target, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err == nil {
			c.mu.Lock()
			if c.gen != gen || c.closing {
				c.mu.Unlock()
				ws.Close()
				return
			}
			c.ws = ws
			c.state = StateConnected
			close(c.connected)
			rejoin := make([]uuid.UUID, 0, len(c.joined))
			for id := range c.joined {
				rejoin = append(rejoin, id)
			}
			c.mu.Unlock()

			go c.readLoop(ws, gen)
			for _, id := range rejoin {
				_ = c.writeFrame(ws, "join_conversation", map[string]uuid.UUID{"conversation_id": id})
			}
			return
		}

		if c.log != nil {
			c.log.Errorf("realtime dial attempt %d: %v", attempt, err)
		}
		if attempt >= c.maxAttempts {
			c.mu.Lock()
			if c.gen == gen && !c.closing {
				c.state = StateError
				close(c.failed)
			}
			c.mu.Unlock()
			return
		}

		time.Sleep(backoff)
		backoff *= 2
		if backoff > c.backoffMax {
			backoff = c.backoffMax
		}
	}
}

func (c *Conn) readLoop(ws *websocket.Conn, gen int) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			break
		}
		frame, err := events.DecodeFrame(raw)
		if err != nil {
			continue
		}
		c.dispatch(frame)
	}

	_ = ws.Close()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.connected = make(chan struct{})
	if c.closing {
		c.state = StateDisconnected
		c.mu.Unlock()
		return
	}

	// Server-initiated drop: reconnect right away with a fresh attempt budget.
	c.state = StateConnecting
	c.failed = make(chan struct{})
	c.gen++
	gen = c.gen
	c.mu.Unlock()

	c.connectLoop(gen)
}

// WaitForConnection blocks until the connection is established, the dial loop
// gives up, the context is cancelled, or the wait times out. It fails fast
// when no connection attempt is in flight.
func (c *Conn) WaitForConnection(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateDisconnected, StateError:
		c.mu.Unlock()
		return ErrNotConnected
	}
	ok := c.connected
	failed := c.failed
	c.mu.Unlock()

	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()
	select {
	case <-ok:
		return nil
	case <-failed:
		return ErrNotConnected
	case <-timer.C:
		return ErrConnectTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// JoinConversation subscribes to a conversation's events, waiting for the
// connection first. The subscription survives reconnects.
func (c *Conn) JoinConversation(ctx context.Context, conversationID uuid.UUID) error {
	if err := c.WaitForConnection(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.joined[conversationID] = struct{}{}
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}
	return c.writeFrame(ws, "join_conversation", map[string]uuid.UUID{"conversation_id": conversationID})
}

// LeaveConversation drops the subscription. A no-op when disconnected; the
// server forgets the room on disconnect anyway.
func (c *Conn) LeaveConversation(conversationID uuid.UUID) error {
	c.mu.Lock()
	delete(c.joined, conversationID)
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return nil
	}
	return c.writeFrame(ws, "leave_conversation", map[string]uuid.UUID{"conversation_id": conversationID})
}

// SendMessage emits a message:send frame on the established connection.
func (c *Conn) SendMessage(ctx context.Context, msg OutgoingMessage) error {
	if err := c.WaitForConnection(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}
	return c.writeFrame(ws, "message:send", msg)
}

// On registers a handler for a server event and returns a subscription id
// for Off.
func (c *Conn) On(event events.EventType, handler EventHandler) int {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.nextID++
	id := c.nextID
	key := string(event)
	if c.handlers[key] == nil {
		c.handlers[key] = make(map[int]EventHandler)
	}
	c.handlers[key][id] = handler
	return id
}

func (c *Conn) Off(event events.EventType, id int) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	key := string(event)
	delete(c.handlers[key], id)
	if len(c.handlers[key]) == 0 {
		delete(c.handlers, key)
	}
}

// Close tears the connection down and resets all reconnect state. Unlike a
// server drop, a closed Conn stays down until the next Init.
func (c *Conn) Close() {
	c.mu.Lock()
	c.closing = true
	c.gen++
	ws := c.ws
	c.ws = nil
	c.joined = make(map[uuid.UUID]struct{})
	if c.state == StateConnected {
		c.connected = make(chan struct{})
	}
	if c.state == StateConnecting {
		close(c.failed) // release waiters
		c.failed = make(chan struct{})
	}
	c.state = StateDisconnected
	c.mu.Unlock()

	if ws != nil {
		_ = ws.Close()
	}
}

func (c *Conn) dispatch(frame events.Frame) {
	c.handlerMu.RLock()
	registered := c.handlers[frame.Event]
	handlers := make([]EventHandler, 0, len(registered))
	for _, h := range registered {
		handlers = append(handlers, h)
	}
	c.handlerMu.RUnlock()

	for _, h := range handlers {
		h(frame.Data)
	}
}

func (c *Conn) writeFrame(ws *websocket.Conn, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(events.Frame{Event: event, Data: data})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return ws.WriteMessage(websocket.TextMessage, raw)
}

func (c *Conn) dialURL() string {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return c.endpoint
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()
	return u.String()
}
