// Package bridge implements the observer ("bridge") WebSocket server: a
// read-only endpoint that replays the current activity snapshot to every
// newly connected observer, then streams subsequent bus events.
package bridge

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/stepherg/drpcd/internal/events"
	"github.com/stepherg/drpcd/internal/registry"
)

// DefaultPort is the bridge's default listen port.
const DefaultPort = 1337

const observerBuffer = 256

// message is the wire shape delivered to every observer: one per socket.
type message struct {
	SocketID string          `json:"socketId"`
	Activity json.RawMessage `json:"activity"`
}

// Bridge mirrors the authoritative registry independently by subscribing
// to the bus itself, and fans out every update to its connected observers.
type Bridge struct {
	mu        sync.RWMutex
	mirror    *registry.Registry
	observers map[int]chan []byte
	nextID    int
	upgrader  websocket.Upgrader
}

// New constructs a Bridge and starts consuming bus events in the
// background. The returned Bridge is ready to be mounted as an
// http.Handler.
func New(bus *events.Bus) *Bridge {
	b := &Bridge{
		mirror:    registry.New(),
		observers: make(map[int]chan []byte),
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
	ch, _ := bus.Subscribe()
	go b.consume(ch)
	return b
}

// Bind listens on 127.0.0.1:port, or an ephemeral port when port is 0.
func Bind(port int) (net.Listener, error) {
	return net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
}

func (b *Bridge) consume(ch <-chan events.Event) {
	for e := range ch {
		switch e.Kind {
		case events.ActivityUpdate:
			payload := marshalPayload(e.Payload)
			b.mirror.Set(e.SocketID, payload)
			b.broadcast(e.SocketID, payload)
		case events.Clear:
			b.mirror.Clear(e.SocketID)
			b.broadcast(e.SocketID, json.RawMessage("null"))
		case events.PrivacyRefresh:
			// no observer-visible effect
		}
	}
}

func marshalPayload(v any) json.RawMessage {
	if v == nil {
		return json.RawMessage("null")
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}

func (b *Bridge) broadcast(socketID string, activity json.RawMessage) {
	data, err := json.Marshal(message{SocketID: socketID, Activity: activity})
	if err != nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.observers {
		select {
		case ch <- data:
		default:
		}
	}
}

func (b *Bridge) register() (int, chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan []byte, observerBuffer)
	b.observers[id] = ch
	return id, ch
}

func (b *Bridge) unregister(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.observers[id]; ok {
		delete(b.observers, id)
		close(ch)
	}
}

// ServeHTTP upgrades any request to a read-only observer WebSocket.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("bridge: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, ch := b.register()
	defer b.unregister(id)

	for socketID, activity := range b.mirror.NonNull() {
		data, err := json.Marshal(message{SocketID: socketID, Activity: activity})
		if err != nil {
			continue
		}
		if conn.WriteMessage(websocket.TextMessage, data) != nil {
			return
		}
	}

	// An observer never sends anything meaningful; this read loop only
	// exists to notice when the peer closes the connection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data, ok := <-ch:
			if !ok {
				return
			}
			if conn.WriteMessage(websocket.TextMessage, data) != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
