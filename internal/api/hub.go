package api

import (
	"encoding/json"
	"sync"

	"github.com/christian-armstrong25/Connect-4-Bot/internal/selfplay"
)

// Hub fans solver progress out to websocket clients. It implements
// selfplay.Listener so it can be attached to any run.
type Hub struct {
	mu        sync.Mutex
	clients   map[*Client]struct{}
	broadcast chan []byte
	quit      chan struct{}
	quitOnce  sync.Once
}

// Client is one websocket subscriber. Messages that do not fit in send are
// dropped for that client only.
type Client struct {
	hub  *Hub
	send chan []byte
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		broadcast: make(chan []byte, 64),
		quit:      make(chan struct{}),
	}
}

// Run delivers broadcasts until done is closed. Connected writers are then
// told to close their sockets.
func (h *Hub) Run(done <-chan struct{}) {
	defer h.quitOnce.Do(func() { close(h.quit) })
	for {
		select {
		case <-done:
			return
		case data := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				c.deliver(data)
			}
			h.mu.Unlock()
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.quit
}

func (h *Hub) subscribe() *Client {
	c := &Client{hub: h, send: make(chan []byte, 16)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) HasClients() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients) > 0
}

// publish never blocks the solver; events are dropped when the queue is
// full.
func (h *Hub) publish(kind string, payload any) {
	data, ok := encodeMessage(kind, payload)
	if !ok {
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

func (h *Hub) OnGameFinished(ev selfplay.GameEvent) {
	h.publish("game", ev)
}

func (h *Hub) OnThresholdRaised(ev selfplay.ThresholdEvent) {
	h.publish("threshold", ev)
}

func (h *Hub) OnFinished(st selfplay.Status) {
	h.publish("finished", st)
}

func (c *Client) deliver(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func encodeMessage(kind string, payload any) ([]byte, bool) {
	msg := wsMessage{Type: kind}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, false
		}
		msg.Payload = raw
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, false
	}
	return data, true
}
