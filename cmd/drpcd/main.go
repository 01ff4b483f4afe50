// Command drpcd runs the local Rich Presence broker: a stream-IPC
// listener, a WebSocket RPC listener, and an observer bridge, all wired
// to a single event bus and activity registry.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/stepherg/drpcd/internal/bridge"
	"github.com/stepherg/drpcd/internal/config"
	"github.com/stepherg/drpcd/internal/events"
	"github.com/stepherg/drpcd/internal/ipc"
	"github.com/stepherg/drpcd/internal/registry"
	"github.com/stepherg/drpcd/internal/ws"
)

func main() {
	bridgePort := flag.Int("bridge-port", 0, "observer bridge listen port (0 = use config default)")
	printSocketPath := flag.Bool("print-socket-path", false, "print the bound stream-IPC path to stdout")
	flag.Parse()

	cfg := config.Default().ApplyEnv()
	if *bridgePort != 0 {
		cfg.BridgePort = *bridgePort
	}

	bus := events.NewBus()
	reg := registry.New()

	go mirrorRegistry(bus, reg)

	ipcLn, path, err := ipc.Bind()
	if err != nil {
		log.Printf("ipc: failed to bind: %v", err)
	} else {
		log.Printf("ipc: listening at %s", path)
		if *printSocketPath {
			println(path)
		}
		go func() {
			if err := ipc.NewServer(bus).Serve(ipcLn); err != nil {
				log.Printf("ipc: serve exited: %v", err)
			}
		}()
	}

	wsLn, err := ws.Bind()
	if err != nil {
		log.Printf("ws: failed to bind: %v", err)
	} else {
		log.Printf("ws: listening on %s", wsLn.Addr())
		wsListener := ws.NewListener(bus)
		go func() {
			if err := wsListener.Serve(wsLn); err != nil {
				log.Printf("ws: serve exited: %v", err)
			}
		}()
	}

	br := bridge.New(bus)
	bridgeLn, err := bridge.Bind(cfg.BridgePort)
	if err != nil {
		log.Printf("bridge: failed to bind on port %d: %v", cfg.BridgePort, err)
	} else {
		log.Printf("bridge: listening on %s", bridgeLn.Addr())
		go func() {
			if err := http.Serve(bridgeLn, br); err != nil {
				log.Printf("bridge: serve exited: %v", err)
			}
		}()
	}

	if ipcLn == nil && wsLn == nil && bridgeLn == nil {
		log.Fatal("drpcd: no transport could be started")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Printf("shutdown signal received; broadcasting clear to active sockets")
	for socketID := range reg.NonNull() {
		bus.Publish(events.NewClear(socketID))
	}
	time.Sleep(100 * time.Millisecond)
}

// mirrorRegistry keeps reg in sync with the bus so that shutdown can
// enumerate every socket that still holds a live activity.
func mirrorRegistry(bus *events.Bus, reg *registry.Registry) {
	ch, _ := bus.Subscribe()
	for e := range ch {
		switch e.Kind {
		case events.ActivityUpdate:
			reg.Set(e.SocketID, marshalPayload(e.Payload))
		case events.Clear:
			reg.Clear(e.SocketID)
		case events.PrivacyRefresh:
			// no registry effect
		}
	}
}

func marshalPayload(v any) json.RawMessage {
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
