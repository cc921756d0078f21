package broker

import (
	"net/http"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/nlog"
	"github.com/nginfra/movici-simulation-core-sub002/wire"
)

// Server upgrades inbound connections and dispatches GET/PUT/CLEAR
// messages against a Broker, one goroutine per connection -- safe because
// Broker itself serializes access to its map; connections just push
// requests through it concurrently.
type Server struct {
	b *Broker
}

func NewServer(b *Broker) *Server { return &Server{b: b} }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wire.Upgrade(w, r)
	if err != nil {
		nlog.Warningf("broker: upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	for {
		msg, err := conn.Recv()
		if err != nil {
			return
		}
		resp, err := s.handle(msg)
		if err != nil {
			resp, _ = wire.NewJSON(wire.TagError, wire.ErrorBody{Error: err.Error()})
		}
		if err := conn.Send(resp); err != nil {
			nlog.Warningf("broker: send failed: %v", err)
			return
		}
	}
}

func (s *Server) handle(msg wire.Message) (wire.Message, error) {
	switch msg.Tag {
	case wire.TagGet:
		req, err := msg.Get()
		if err != nil {
			return wire.Message{}, err
		}
		return s.b.HandleGet(req)
	case wire.TagPut:
		key, data, err := msg.Put()
		if err != nil {
			return wire.Message{}, err
		}
		return s.b.HandlePut(key, data)
	case wire.TagClear:
		req, err := msg.Clear()
		if err != nil {
			return wire.Message{}, err
		}
		return s.b.HandleClear(req)
	default:
		nlog.Warningf("broker: unrecognized tag %q", msg.Tag)
		return wire.NewJSON(wire.TagError, wire.ErrorBody{Error: "unrecognized tag " + string(msg.Tag)})
	}
}
