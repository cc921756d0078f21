// Command movici-orchestratord is the orchestrator's subprocess
// entrypoint. It accepts one connection per model, waits for every
// scenario-declared model to register, then drives the global run loop to
// completion and exits 0 on a clean finish, 1 if any model failed.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/nlog"
	"github.com/nginfra/movici-simulation-core-sub002/config"
	"github.com/nginfra/movici-simulation-core-sub002/mask"
	"github.com/nginfra/movici-simulation-core-sub002/orchestrator"
	"github.com/nginfra/movici-simulation-core-sub002/timeline"
	"github.com/nginfra/movici-simulation-core-sub002/wire"
)

func main() {
	os.Exit(run())
}

func run() int {
	scenarioPath := os.Getenv("MOVICI_SCENARIO_PATH")
	if scenarioPath == "" {
		nlog.Errorf("movici-orchestratord: MOVICI_SCENARIO_PATH is required")
		return 1
	}
	env := config.EnvFromOS()
	nlog.SetLevel(env.LogLevel)
	nlog.SetFormat(env.LogFormat)

	b, err := os.ReadFile(scenarioPath)
	if err != nil {
		nlog.Errorf("movici-orchestratord: read scenario: %v", err)
		return 1
	}
	var sc config.Scenario
	if err := json.Unmarshal(b, &sc); err != nil {
		nlog.Errorf("movici-orchestratord: parse scenario: %v", err)
		return 1
	}

	tl := timeline.New(sc.SimulationInfo.ToTimelineInfo().Start, sc.SimulationInfo.ToTimelineInfo().End)
	orch := orchestrator.New(tl, len(sc.Models))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		nlog.Errorf("movici-orchestratord: listen: %v", err)
		return 1
	}
	srv := &http.Server{Handler: &registrar{orch: orch}}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			nlog.Errorf("movici-orchestratord: serve: %v", err)
		}
	}()

	if err := announceAddr(ln.Addr().String()); err != nil {
		nlog.Errorf("movici-orchestratord: %v", err)
		return 1
	}

	waitUntil(func() bool { return orch.AllRegistered() }, 0)
	nlog.Infof("movici-orchestratord: all %d model(s) registered, entering run loop", len(sc.Models))

	runLoop(orch)

	orch.BeginFinalizing()
	waitUntil(orch.AllDone, 30*time.Second)

	nlog.Infof("movici-orchestratord: %s", orch.Summary())
	_ = srv.Close()
	return orch.ExitCode()
}

// runLoop cycles advance-clock/wait-for-idle until no model has a pending
// next_time -- the NewTime/WaitForResults loopback.
func runLoop(orch *orchestrator.Orchestrator) {
	for {
		res := orch.AdvanceClock()
		if res.Woke == 0 {
			return
		}
		waitUntil(orch.AllIdleOrDone, 0)
	}
}

// waitUntil polls cond every tick until it reports true, optionally giving
// up after timeout (0 means wait forever). There is no event channel here
// because registration/result arrival happens on arbitrary goroutines
// serving separate HTTP connections; a short poll keeps this loop simple
// at the cost of up to one tick of added latency.
const pollTick = 5 * time.Millisecond

func waitUntil(cond func() bool, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for !cond() {
		if timeout > 0 && time.Now().After(deadline) {
			return
		}
		time.Sleep(pollTick)
	}
}

// registrar upgrades each inbound connection, expects a READY as the first
// message, and then forwards every later message to the orchestrator.
type registrar struct {
	orch *orchestrator.Orchestrator
}

func (h *registrar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wire.Upgrade(w, r)
	if err != nil {
		nlog.Warningf("movici-orchestratord: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	first, err := conn.Recv()
	if err != nil {
		return
	}
	if first.Tag != wire.TagReady {
		nlog.Warningf("movici-orchestratord: expected READY, got %q", first.Tag)
		return
	}
	body, err := first.Ready()
	if err != nil {
		nlog.Warningf("movici-orchestratord: malformed READY: %v", err)
		return
	}
	pub, err := mask.TreeFromAny(body.Pub)
	if err != nil {
		nlog.Warningf("movici-orchestratord: %q: malformed pub mask: %v", body.Name, err)
		return
	}
	sub, err := mask.TreeFromAny(body.Sub)
	if err != nil {
		nlog.Warningf("movici-orchestratord: %q: malformed sub mask: %v", body.Name, err)
		return
	}

	idx, err := h.orch.Register(body.Name, mask.DataMask{Pub: pub, Sub: sub}, conn)
	if err != nil {
		nlog.Warningf("movici-orchestratord: register %q: %v", body.Name, err)
		return
	}
	h.orch.HandleReady(idx)

	for {
		msg, err := conn.Recv()
		if err != nil {
			return
		}
		switch msg.Tag {
		case wire.TagAck:
			h.orch.HandleAck(idx)
		case wire.TagResult:
			res, err := msg.Result()
			if err != nil {
				h.orch.HandleError(idx, err)
				continue
			}
			h.orch.HandleResult(idx, res)
		case wire.TagError:
			eb, _ := msg.ErrorBody()
			h.orch.HandleError(idx, fmt.Errorf("%s", eb.Error))
		default:
			h.orch.HandleError(idx, fmt.Errorf("unexpected tag %q", msg.Tag))
		}
	}
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
