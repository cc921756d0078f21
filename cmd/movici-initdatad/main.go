// Command movici-initdatad is the init-data server's subprocess entrypoint:
// It binds an ephemeral port, announces its address on
// fd 3 (the pipe the supervisor gave it), and serves GET requests until
// killed.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/nlog"
	"github.com/nginfra/movici-simulation-core-sub002/initdata"
)

func main() {
	if err := run(); err != nil {
		nlog.Errorf("movici-initdatad: %v", err)
		os.Exit(1)
	}
}

func run() error {
	dataDir := os.Getenv("MOVICI_DATA_DIR")
	if dataDir == "" {
		return fmt.Errorf("MOVICI_DATA_DIR is required")
	}
	nlog.SetLevel(os.Getenv("MOVICI_LOG_LEVEL"))
	nlog.SetFormat(os.Getenv("MOVICI_LOG_FORMAT"))

	srv, err := initdata.New(dataDir)
	if err != nil {
		return err
	}
	defer srv.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	if err := announceAddr(ln.Addr().String()); err != nil {
		return err
	}

	listener := initdata.NewListener(srv)
	return http.Serve(ln, listener)
}

// announceAddr writes this process's bound address to fd 3, the pipe the
// supervisor reads from within its startup timeout.
func announceAddr(addr string) error {
	f := os.NewFile(3, "announce")
	if f == nil {
		return fmt.Errorf("fd 3 (announce pipe) is not open")
	}
	defer f.Close()
	_, err := fmt.Fprintf(f, "tcp://%s\n", addr)
	return err
}
