// Package ipc implements the stream-socket transport: a local named pipe
// or unix domain socket speaking the length-prefixed binary frame
// protocol, impersonating the target chat application's IPC path.
package ipc

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"

	"github.com/google/uuid"

	"github.com/stepherg/drpcd/internal/events"
	"github.com/stepherg/drpcd/internal/frame"
	"github.com/stepherg/drpcd/internal/identity"
	"github.com/stepherg/drpcd/internal/metrics"
	"github.com/stepherg/drpcd/internal/rpc"
)

const maxPayloadBytes = 64 * 1024

// Server drives the accept loop over a bound listener (unix socket on
// unix-like systems, named pipe on Windows).
type Server struct {
	Dispatcher rpc.Dispatcher
	Bus        *events.Bus
}

// NewServer constructs a Server backed by a CommandDispatcher over bus.
func NewServer(bus *events.Bus) *Server {
	return &Server{Dispatcher: rpc.NewCommandDispatcher(bus), Bus: bus}
}

// Serve accepts connections from ln until it is closed or returns an
// error. Each connection is handled on its own goroutine; a single
// connection's failure never stops the loop.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	socketID := uuid.NewString()
	metrics.ActiveConnections.Add(1)
	defer metrics.ActiveConnections.Add(^uint64(0)) // -1

	defer s.Bus.Publish(events.NewClear(socketID))

	handshook := false
	for {
		raw, err := frame.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("ipc: connection %s: %v", socketID, err)
			}
			return
		}

		if len(raw.Body) > maxPayloadBytes {
			log.Printf("ipc: connection %s: payload too large, closing", socketID)
			return
		}

		if !handshook {
			if raw.Op != frame.OpHandshake {
				log.Printf("ipc: connection %s: first frame was not a handshake, closing", socketID)
				return
			}
			handshook = true
			if err := writeReady(conn); err != nil {
				log.Printf("ipc: connection %s: write ready: %v", socketID, err)
				return
			}
			continue
		}

		switch raw.Op {
		case frame.OpPing:
			if err := writeFrame(conn, frame.OpPong, struct{}{}); err != nil {
				log.Printf("ipc: connection %s: write pong: %v", socketID, err)
				return
			}
		case frame.OpFrame:
			var in rpc.IncomingFrame
			if err := json.Unmarshal(raw.Body, &in); err != nil {
				log.Printf("ipc: connection %s: malformed command frame, closing", socketID)
				return
			}
			out := s.Dispatcher.Handle(socketID, &in)
			if out == nil {
				continue
			}
			if err := writeFrame(conn, frame.OpFrame, out); err != nil {
				log.Printf("ipc: connection %s: write reply: %v", socketID, err)
				return
			}
		case frame.OpClose:
			return
		default:
			// unrecognized op: ignore per protocol
		}
	}
}

func writeReady(w io.Writer) error {
	readyOut := struct {
		Cmd  string                `json:"cmd"`
		Evt  string                `json:"evt"`
		Data identity.ReadyPayload `json:"data"`
	}{Cmd: "DISPATCH", Evt: "READY", Data: identity.Ready()}
	return writeFrame(w, frame.OpFrame, readyOut)
}

func writeFrame(w io.Writer, op frame.Op, body any) error {
	_, err := w.Write(frame.Encode(op, body))
	return err
}
