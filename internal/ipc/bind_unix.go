//go:build !windows

package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// ErrNoPath is returned when no candidate path in the probe range could be
// bound.
var ErrNoPath = errors.New("ipc: no bindable path in probe range")

func candidateDirs() []string {
	var dirs []string
	for _, key := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if v := os.Getenv(key); v != "" {
			dirs = append(dirs, v)
		}
	}
	return append(dirs, "/tmp")
}

// Bind scans XDG_RUNTIME_DIR, TMPDIR, TMP, TEMP, then /tmp for a usable
// discord-ipc-<N> unix socket path, reclaiming stale sockets left behind
// by a crashed prior process.
func Bind() (net.Listener, string, error) {
	for _, dir := range candidateDirs() {
		for n := 0; n < 10; n++ {
			path := filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", n))
			if _, err := os.Stat(path); err == nil {
				if c, dialErr := net.Dial("unix", path); dialErr == nil {
					c.Close()
					continue // occupied by a live listener
				}
				os.Remove(path) // stale: prior owner died without cleanup
			}
			ln, err := net.Listen("unix", path)
			if err == nil {
				return ln, path, nil
			}
		}
	}
	return nil, "", ErrNoPath
}
