// Package chat relays chat messages between every connected websocket
// client.  Messages are stamped by the server and never stored.
package chat

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/prode-predictions/internal/config"
)

// Message is what every client receives.
type Message struct {
	ID   string `json:"id"`
	User string `json:"user"`
	Text string `json:"text"`
	Time string `json:"time"`
}

// inbound is what a client sends.
type inbound struct {
	Text string `json:"text"`
}

// Hub fans messages out in arrival order.  All client bookkeeping happens
// on the Run goroutine.
type Hub struct {
	cfg        config.ChatConfig
	log        *zap.Logger
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	clients    map[*Client]struct{}
	done       chan struct{}
	online     atomic.Int32
	now        func() time.Time
}

func NewHub(cfg config.ChatConfig, log *zap.Logger) *Hub {
	return &Hub{
		cfg:        cfg,
		log:        log.Named("chat"),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 64),
		clients:    make(map[*Client]struct{}),
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

// Run serves the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.online.Store(int32(len(h.clients)))
			h.log.Debug("client joined", zap.String("user", c.user), zap.Int("online", len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.log.Debug("client left", zap.String("user", c.user), zap.Int("online", len(h.clients)))
			}
		case msg := <-h.broadcast:
			payload, err := sonic.Marshal(msg)
			if err != nil {
				h.log.Warn("encode message failed", zap.Error(err))
				continue
			}
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					// send buffer full: the client cannot keep up
					h.drop(c)
					h.log.Info("dropped slow client", zap.String("user", c.user))
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.online.Store(int32(len(h.clients)))
}

// Online is the number of connected clients.
func (h *Hub) Online() int { return int(h.online.Load()) }

// Publish stamps text from user and queues it for every client.  Blank
// messages, and anything sent after the hub stopped, are ignored.
func (h *Hub) Publish(user, text string) (Message, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, false
	}
	msg := Message{
		ID:   uuid.NewString(),
		User: user,
		Text: text,
		Time: h.now().UTC().Format(time.RFC3339),
	}
	select {
	case h.broadcast <- msg:
		return msg, true
	case <-h.done:
		return Message{}, false
	}
}

// decodeInbound accepts {"text": "..."} or a bare string.
func decodeInbound(raw []byte) string {
	var in inbound
	if err := sonic.Unmarshal(raw, &in); err == nil {
		return in.Text
	}
	return string(raw)
}
