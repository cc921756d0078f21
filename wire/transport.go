// transport.go adapts aistore's transport package's connection-oriented,
// long-lived-socket philosophy (transport/sendmsg.go, transport/pdu.go) to
// this protocol's simpler request/reply shape: a *websocket.Conn stands in
// for the reference implementation's ZeroMQ dealer/router socket -- both
// are full-duplex, message-framed, and connection-oriented, which is all
// this protocol needs.
package wire

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/cos"
	"github.com/nginfra/movici-simulation-core-sub002/cmn/debug"
)

// Conn wraps a *websocket.Conn with the Message framing defined in
// message.go. Reads and writes are each independently safe for concurrent
// use by at most one reader and one writer goroutine, matching gorilla's
// own concurrency contract.
type Conn struct {
	ws       *websocket.Conn
	writeMu  sync.Mutex
	identity string // peer identity; NewConn, Upgrade and Dial leave it empty
}

func NewConn(ws *websocket.Conn) *Conn { return &Conn{ws: ws} }

func (c *Conn) Identity() string { return c.identity }

func (c *Conn) Send(m Message) error {
	buf, err := Encode(m)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, buf)
}

func (c *Conn) Recv() (Message, error) {
	kind, buf, err := c.ws.ReadMessage()
	if err != nil {
		return Message{}, err
	}
	debug.Assert(kind == websocket.BinaryMessage, "unexpected websocket message kind")
	return Decode(buf)
}

// Close sends a close frame with a short linger, giving a failing model's
// final ERROR message a chance to flush before the socket goes down.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(lingerTimeout))
	c.writeMu.Unlock()
	return c.ws.Close()
}

const lingerTimeout = time.Second

// upgrader is shared by every router-side listener in this process.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(*http.Request) bool { return true }, // loopback-only, no cross-origin concern here
}

// Upgrade promotes an inbound HTTP request to a framed Conn. Used by every
// service's (orchestrator, broker, init-data) router-side listener.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(ws), nil
}

// Dial connects a dealer-side Conn to a router listening at addr (a
// "tcp://127.0.0.1:<port>" address as produced by the process supervisor;
// converted to a ws:// URL here).
func Dial(addr string) (*Conn, error) {
	url, err := toWSURL(addr)
	if err != nil {
		return nil, err
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(ws), nil
}

func toWSURL(addr string) (string, error) {
	const tcpPrefix = "tcp://"
	if len(addr) > len(tcpPrefix) && addr[:len(tcpPrefix)] == tcpPrefix {
		return "ws://" + addr[len(tcpPrefix):] + "/", nil
	}
	return "", cos.NewErrNotFound("recognizable scheme in address %q", addr)
}
