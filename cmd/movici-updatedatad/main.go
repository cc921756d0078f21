// Command movici-updatedatad is the update-data broker's subprocess
// entrypoint. Storage mode is selected by
// MOVICI_STORAGE (api, the default, or disk, which mirrors every PUT to
// MOVICI_STORAGE_DIR via a bounded worker pool).
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/nginfra/movici-simulation-core-sub002/broker"
	"github.com/nginfra/movici-simulation-core-sub002/cmn/nlog"
	"github.com/nginfra/movici-simulation-core-sub002/config"
)

func main() {
	if err := run(); err != nil {
		nlog.Errorf("movici-updatedatad: %v", err)
		os.Exit(1)
	}
}

func run() error {
	env := config.EnvFromOS()
	nlog.SetLevel(env.LogLevel)
	nlog.SetFormat(env.LogFormat)

	var mirror broker.Mirror
	if env.Storage == config.StorageDisk {
		if env.StorageDir == "" {
			return fmt.Errorf("MOVICI_STORAGE=disk requires MOVICI_STORAGE_DIR")
		}
		if err := os.MkdirAll(env.StorageDir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
		mirror = broker.NewDiskMirror(env.StorageDir)
	}

	b := broker.New(mirror)
	srv := broker.NewServer(b)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if err := announceAddr(ln.Addr().String()); err != nil {
		return err
	}
	return http.Serve(ln, srv)
}

func announceAddr(addr string) error {
	f := os.NewFile(3, "announce")
	if f == nil {
		return fmt.Errorf("fd 3 (announce pipe) is not open")
	}
	defer f.Close()
	_, err := fmt.Fprintf(f, "tcp://%s\n", addr)
	return err
}
