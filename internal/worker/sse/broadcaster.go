// Package sse streams assistant events to connected dashboard and CLI
// subscribers over Server-Sent Events.
package sse

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// WriteTimeout is how long a client may stall before it is dropped.
const WriteTimeout = 2 * time.Second

// sendBuffer is the per-client frame backlog. A client that cannot drain
// this many frames within WriteTimeout is considered dead.
const sendBuffer = 16

// Client is one connected subscriber. Frames are delivered by a dedicated
// writer goroutine so a stalled connection never blocks a broadcast.
type Client struct {
	ID   string
	Done chan struct{}

	send chan []byte
	once sync.Once
}

// close releases the client exactly once.
func (c *Client) close() {
	c.once.Do(func() { close(c.Done) })
}

// pump writes queued frames to the connection until the client is removed
// or a write fails.
func (c *Client) pump(b *Broadcaster, w http.ResponseWriter, flusher http.Flusher) {
	for {
		select {
		case <-c.Done:
			return
		case frame := <-c.send:
			if _, err := w.Write(frame); err != nil {
				log.Debug().Str("client", c.ID).Err(err).Msg("SSE write failed")
				b.drop(c.ID)
				return
			}
			flusher.Flush()
		}
	}
}

// Broadcaster fans events out to all connected SSE clients.
type Broadcaster struct {
	clients map[string]*Client
	mu      sync.RWMutex
	nextID  int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*Client),
	}
}

// AddClient registers the connection and starts its writer. The writer owns
// w from here on; callers must not write to it directly.
func (b *Broadcaster) AddClient(w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}

	client := &Client{
		Done: make(chan struct{}),
		send: make(chan []byte, sendBuffer),
	}

	b.mu.Lock()
	b.nextID++
	client.ID = fmt.Sprintf("client-%d", b.nextID)
	b.clients[client.ID] = client
	count := len(b.clients)
	b.mu.Unlock()

	go client.pump(b, w, flusher)

	log.Debug().
		Str("client", client.ID).
		Int("clients", count).
		Msg("SSE subscriber attached")

	return client, nil
}

// RemoveClient unregisters the client and stops its writer.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.mu.Lock()
	delete(b.clients, client.ID)
	count := len(b.clients)
	b.mu.Unlock()

	client.close()

	log.Debug().
		Str("client", client.ID).
		Int("clients", count).
		Msg("SSE subscriber detached")
}

// drop removes a client the writer or a stalled enqueue found dead.
func (b *Broadcaster) drop(id string) {
	b.mu.Lock()
	client, ok := b.clients[id]
	if ok {
		delete(b.clients, id)
	}
	count := len(b.clients)
	b.mu.Unlock()

	if !ok {
		return
	}
	client.close()

	log.Debug().
		Str("client", id).
		Int("clients", count).
		Msg("Dropped dead SSE subscriber")
}

// Broadcast queues one event for every connected client. It never blocks the
// caller: the frame is marshalled once and handed to each client's writer,
// and a client whose backlog stays full for WriteTimeout is dropped.
func (b *Broadcaster) Broadcast(data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE event")
		return
	}

	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')

	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, client := range b.clients {
		clients = append(clients, client)
	}
	b.mu.RUnlock()

	for _, client := range clients {
		b.enqueue(client, frame)
	}
}

// enqueue hands a frame to one client, spilling to a timed retry when the
// backlog is full.
func (b *Broadcaster) enqueue(client *Client, frame []byte) {
	select {
	case client.send <- frame:
	case <-client.Done:
	default:
		go func() {
			select {
			case client.send <- frame:
			case <-client.Done:
			case <-time.After(WriteTimeout):
				log.Warn().
					Str("client", client.ID).
					Dur("timeout", WriteTimeout).
					Msg("SSE client stalled, dropping")
				b.drop(client.ID)
			}
		}()
	}
}

// ClientCount reports how many subscribers are currently attached.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// HandleSSE upgrades the request to an event stream and blocks until the
// client disconnects.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	client, err := b.AddClient(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(client)

	hello := fmt.Sprintf("data: {\"type\":\"connected\",\"client_id\":%q}\n\n", client.ID)
	b.enqueue(client, []byte(hello))

	<-r.Context().Done()
}
