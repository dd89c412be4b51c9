// Package stream broadcasts sink calls to browser canvases over websockets
// and forwards their commands back to the host.
package stream

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/msalah0e/ripple/internal/effects"
	"github.com/msalah0e/ripple/internal/energy"
)

// Message types sent to clients.
const (
	TypeVisual        = "visual"
	TypeConnection    = "connection"
	TypeIgnition      = "ignition"
	TypeIgnitionEnded = "ignition-ended"
)

// Message is one event pushed to clients.
type Message struct {
	Seq        uint64          `json:"seq"`
	Type       string          `json:"type"`
	Node       string          `json:"node,omitempty"`
	Connection string          `json:"connection,omitempty"`
	Class      string          `json:"class,omitempty"`
	EnergyType string          `json:"energy_type,omitempty"`
	Active     bool            `json:"active,omitempty"`
	Visual     *effects.Visual `json:"visual,omitempty"`
}

// Command is what a client may send: "trigger", "move" or "drop".
// Coordinates are optional; an absent one is nil, not zero.
type Command struct {
	Type string   `json:"type"`
	Node string   `json:"node,omitempty"`
	X    *float64 `json:"x,omitempty"`
	Y    *float64 `json:"y,omitempty"`
}

// At builds a command that carries a position.
func At(typ, node string, x, y float64) Command {
	return Command{Type: typ, Node: node, X: &x, Y: &y}
}

// Position returns the command's coordinates. ok is false unless both are set.
func (c Command) Position() (x, y float64, ok bool) {
	if c.X == nil || c.Y == nil {
		return 0, 0, false
	}
	return *c.X, *c.Y, true
}

const clientBuffer = 256

type client struct {
	conn *websocket.Conn
	out  chan []byte
	once sync.Once
	gone atomic.Bool
}

// close stops delivery. The writer then closes the connection, which ends
// the read loop too.
func (c *client) close() {
	c.once.Do(func() {
		c.gone.Store(true)
		close(c.out)
	})
}

// Hub is an effects.Sink that fans every call out to connected clients.
// New clients first receive the latest state of every node and connection.
type Hub struct {
	upgrader  websocket.Upgrader
	log       *slog.Logger
	onCommand func(Command)

	mu      sync.Mutex
	seq     uint64
	clients map[*client]struct{}
	state   map[string]Message
}

// NewHub creates a hub. onCommand, if non-nil, is called from connection
// goroutines; hosts should post it onto their loop.
func NewHub(logger *slog.Logger, onCommand func(Command)) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		log:       logger,
		onCommand: onCommand,
		clients:   make(map[*client]struct{}),
		state:     make(map[string]Message),
	}
}

func (h *Hub) publish(key string, m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	m.Seq = h.seq
	if key != "" {
		h.state[key] = m
	}
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	for c := range h.clients {
		select {
		case c.out <- b:
		default:
			// Slow client: drop it rather than stall the loop.
			h.log.Warn("dropping slow stream client", "remote", c.conn.RemoteAddr().String())
			delete(h.clients, c)
			c.close()
		}
	}
}

func (h *Hub) ApplyVisual(id energy.NodeID, v effects.Visual) {
	h.publish("node/"+string(id), Message{Type: TypeVisual, Node: string(id), Visual: &v})
}

func (h *Hub) ApplyConnectionClass(id energy.ConnectionID, class string, et energy.EnergyType, active bool) {
	h.publish("link/"+string(id)+"/"+string(et), Message{
		Type:       TypeConnection,
		Connection: string(id),
		Class:      class,
		EnergyType: string(et),
		Active:     active,
	})
}

func (h *Hub) TriggerIgnitionAnimation(id energy.NodeID) {
	h.publish("", Message{Type: TypeIgnition, Node: string(id)})
}

func (h *Hub) EndIgnitionAnimation(id energy.NodeID) {
	h.publish("", Message{Type: TypeIgnitionEnded, Node: string(id)})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) join(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	keys := make([]string, 0, len(h.state))
	for k := range h.state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b, err := json.Marshal(h.state[k])
		if err != nil {
			continue
		}
		select {
		case c.out <- b:
		default:
		}
	}
	h.clients[c] = struct{}{}
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// ServeHTTP upgrades the request and serves one client until it leaves.
func (h *Hub) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &client{conn: conn, out: make(chan []byte, clientBuffer)}
	h.join(c)
	defer h.leave(c)
	h.log.Debug("stream client joined", "remote", r.RemoteAddr)

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		defer conn.Close()
		for b := range c.out {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if c.gone.Load() {
			break
		}
		var cmd Command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			continue
		}
		if h.onCommand != nil {
			h.onCommand(cmd)
		}
	}

	h.leave(c)
	select {
	case <-writeDone:
	case <-time.After(500 * time.Millisecond):
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
