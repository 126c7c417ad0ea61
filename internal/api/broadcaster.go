package api

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mkarlsen/stagehand/pkg/trace"
)

// EventMessage is the wire shape of one broadcast trace event.
type EventMessage struct {
	Type      string      `json:"type"`
	TraceID   string      `json:"trace_id"`
	Event     trace.Event `json:"event"`
	Timestamp int64       `json:"timestamp"`
	Seq       int64       `json:"seq"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Broadcaster fans trace events out to connected websocket clients.
// Slow or broken clients are dropped, never waited on.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	seq     uint64
	logger  zerolog.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		clients: make(map[*wsClient]struct{}),
		logger:  logger.With().Str("component", "broadcaster").Logger(),
	}
}

func (b *Broadcaster) add(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	b.mu.Lock()
	b.clients[client] = struct{}{}
	count := len(b.clients)
	b.mu.Unlock()
	b.logger.Debug().Int("clients", count).Msg("trace feed client connected")
	return client
}

func (b *Broadcaster) remove(client *wsClient) {
	b.mu.Lock()
	delete(b.clients, client)
	b.mu.Unlock()
	client.conn.Close()
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// BroadcastTraceEvent sends one trace event to every connected client.
// Safe to install as a tracer notifier; it never blocks the tracer.
func (b *Broadcaster) BroadcastTraceEvent(traceID string, ev trace.Event) {
	b.mu.Lock()
	if len(b.clients) == 0 {
		b.mu.Unlock()
		return
	}
	clients := make([]*wsClient, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	msg := EventMessage{
		Type:      "trace_event",
		TraceID:   traceID,
		Event:     ev,
		Timestamp: time.Now().UnixMilli(),
		Seq:       int64(atomic.AddUint64(&b.seq, 1)),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to marshal trace event")
		return
	}

	for _, client := range clients {
		if err := client.write(data); err != nil {
			b.logger.Warn().Err(err).Msg("dropping trace feed client")
			b.remove(client)
		}
	}
}
