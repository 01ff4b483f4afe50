// Package ws implements the WebSocket RPC transport: the producer-facing
// endpoint that negotiates JSON or binary term encoding and drives the
// same command loop as the stream-IPC transport.
package ws

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/stepherg/drpcd/internal/etf"
	"github.com/stepherg/drpcd/internal/events"
	"github.com/stepherg/drpcd/internal/identity"
	"github.com/stepherg/drpcd/internal/metrics"
	"github.com/stepherg/drpcd/internal/rpc"
)

const (
	portRangeStart  = 6463
	portRangeEnd    = 6472
	maxMessageBytes = 64 * 1024
)

var allowedOrigins = map[string]bool{
	"https://discord.com":        true,
	"https://ptb.discord.com":    true,
	"https://canary.discord.com": true,
}

// Listener is the bound WebSocket RPC server.
type Listener struct {
	Dispatcher rpc.Dispatcher
	Bus        *events.Bus
	upgrader   websocket.Upgrader
}

// NewListener constructs a Listener whose dispatcher publishes onto bus.
func NewListener(bus *events.Bus) *Listener {
	return &Listener{
		Dispatcher: rpc.NewCommandDispatcher(bus),
		Bus:        bus,
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Bind probes TCP ports 6463 through 6472 for the first free port,
// falling back to an OS-assigned ephemeral port for testability.
func Bind() (net.Listener, error) {
	for p := portRangeStart; p <= portRangeEnd; p++ {
		ln, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(p))
		if err == nil {
			return ln, nil
		}
	}
	return net.Listen("tcp", "127.0.0.1:0")
}

// Serve runs an HTTP server over ln, upgrading every request on "/" to a
// WebSocket connection.
func (l *Listener) Serve(ln net.Listener) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handleUpgrade)
	return http.Serve(ln, mux)
}

func debugEnabled() bool {
	return os.Getenv("DRPC_DEBUG") == "1"
}

func (l *Listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" && !debugEnabled() && !allowedOrigins[origin] {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	q := r.URL.Query()
	if v := q.Get("v"); v != "" && v != "1" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	encoding := strings.ToLower(q.Get("encoding"))
	if encoding == "" {
		encoding = "json"
	}
	if encoding != "json" && encoding != "etf" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if q.Get("client_id") == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}
	go l.handleConn(conn, encoding == "etf")
}

func (l *Listener) handleConn(conn *websocket.Conn, useETF bool) {
	defer conn.Close()

	socketID := uuid.NewString()
	metrics.ActiveConnections.Add(1)
	defer metrics.ActiveConnections.Add(^uint64(0))
	defer l.Bus.Publish(events.NewClear(socketID))

	readyOut := struct {
		Cmd  string                `json:"cmd"`
		Evt  string                `json:"evt"`
		Data identity.ReadyPayload `json:"data"`
	}{Cmd: "DISPATCH", Evt: "READY", Data: identity.Ready()}
	if !l.send(conn, readyOut, useETF) {
		return
	}

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if len(data) > maxMessageBytes {
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseMessageTooBig, ""))
			return
		}

		var in rpc.IncomingFrame
		switch mt {
		case websocket.TextMessage:
			if err := json.Unmarshal(data, &in); err != nil {
				continue
			}
		case websocket.BinaryMessage:
			decoded, err := etf.Decode(data)
			if err != nil {
				log.Printf("ws: connection %s: etf decode failed, closing: %v", socketID, err)
				return
			}
			reencoded, err := json.Marshal(decoded)
			if err != nil {
				continue
			}
			if err := json.Unmarshal(reencoded, &in); err != nil {
				continue
			}
		default:
			continue
		}

		out := l.Dispatcher.Handle(socketID, &in)
		if out == nil {
			continue
		}
		if !l.send(conn, out, useETF) {
			return
		}
	}
}

// send encodes v per the negotiated encoding, falling back to JSON text
// if binary term encoding fails.
func (l *Listener) send(conn *websocket.Conn, v any, useETF bool) bool {
	if useETF {
		if payload, err := json.Marshal(v); err == nil {
			if encoded, encErr := etf.EncodeJSON(payload); encErr == nil {
				return conn.WriteMessage(websocket.BinaryMessage, encoded) == nil
			} else {
				log.Printf("ws: etf encode failed, falling back to json: %v", encErr)
			}
		}
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return conn.WriteMessage(websocket.TextMessage, payload) == nil
}
