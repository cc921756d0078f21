package initdata

import (
	"net/http"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/nlog"
	"github.com/nginfra/movici-simulation-core-sub002/wire"
)

// Listener upgrades inbound connections and dispatches GET requests
// against a Server.
type Listener struct {
	s *Server
}

func NewListener(s *Server) *Listener { return &Listener{s: s} }

func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wire.Upgrade(w, r)
	if err != nil {
		nlog.Warningf("initdata: upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	for {
		msg, err := conn.Recv()
		if err != nil {
			return
		}
		var resp wire.Message
		if msg.Tag != wire.TagGet {
			resp, _ = wire.NewJSON(wire.TagError, wire.ErrorBody{Error: "unrecognized tag " + string(msg.Tag)})
		} else {
			req, gerr := msg.Get()
			if gerr != nil {
				resp, _ = wire.NewJSON(wire.TagError, wire.ErrorBody{Error: gerr.Error()})
			} else {
				resp, _ = l.s.HandleGet(req)
			}
		}
		if err := conn.Send(resp); err != nil {
			nlog.Warningf("initdata: send failed: %v", err)
			return
		}
	}
}
