//go:build windows

package ipc

import (
	"errors"
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

// ErrNoPath is returned when no candidate named pipe in the probe range
// could be created.
var ErrNoPath = errors.New("ipc: no bindable named pipe in probe range")

// Bind creates the first free discord-ipc-<N> named pipe.
func Bind() (net.Listener, string, error) {
	for n := 0; n < 10; n++ {
		name := fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, n)
		ln, err := winio.ListenPipe(name, nil)
		if err == nil {
			return ln, name, nil
		}
	}
	return nil, "", ErrNoPath
}
