package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/nova/internal/command"
	"github.com/ayusman/nova/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	clientBuffer   = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the browser UI is served from another origin
	},
}

// FeedMessage is one websocket frame of the command feed.
type FeedMessage struct {
	Type  string        `json:"type"` // "committed" or "consumed"
	Event command.Event `json:"event"`
}

// Feed fans committed and consumed events out to websocket clients.
// It implements arbiter.Observer. Clients whose queue fills up are dropped.
type Feed struct {
	clients    map[*feedClient]bool
	broadcast  chan []byte
	register   chan *feedClient
	unregister chan *feedClient

	mu    sync.RWMutex
	count int
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewFeed creates a feed. Call Run to start delivering.
func NewFeed() *Feed {
	return &Feed{
		clients:    make(map[*feedClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
	}
}

// Run delivers messages until ctx is done, then disconnects every client.
func (f *Feed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range f.clients {
				f.remove(c)
			}
			return

		case c := <-f.register:
			f.clients[c] = true
			f.setCount()
			logging.Debugw("feed client connected", "clients", len(f.clients))

		case c := <-f.unregister:
			if f.clients[c] {
				f.remove(c)
				logging.Debugw("feed client disconnected", "clients", len(f.clients))
			}

		case msg := <-f.broadcast:
			for c := range f.clients {
				select {
				case c.send <- msg:
				default:
					f.remove(c)
					logging.Warnw("feed dropped slow client", "clients", len(f.clients))
				}
			}
		}
	}
}

func (f *Feed) remove(c *feedClient) {
	delete(f.clients, c)
	close(c.send)
	f.setCount()
}

func (f *Feed) setCount() {
	f.mu.Lock()
	f.count = len(f.clients)
	f.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (f *Feed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// Committed implements arbiter.Observer.
func (f *Feed) Committed(ev command.Event) { f.publish("committed", ev) }

// Consumed implements arbiter.Observer.
func (f *Feed) Consumed(ev command.Event) { f.publish("consumed", ev) }

func (f *Feed) publish(kind string, ev command.Event) {
	data, err := json.Marshal(FeedMessage{Type: kind, Event: ev})
	if err != nil {
		logging.Errorw("feed encode", "err", err)
		return
	}
	select {
	case f.broadcast <- data:
	default:
		logging.Warnw("feed broadcast queue full, dropping message", "type", kind, "seq", ev.Seq)
	}
}

// ServeHTTP upgrades the request and streams feed messages to the client.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnw("websocket upgrade", "err", err)
		return
	}

	c := &feedClient{conn: conn, send: make(chan []byte, clientBuffer)}
	select {
	case f.register <- c:
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump(f)
}

// readPump drains the connection so pongs and close frames are seen.
func (c *feedClient) readPump(f *Feed) {
	defer func() {
		select {
		case f.unregister <- c:
		case <-time.After(writeWait):
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on the connection.
func (c *feedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
