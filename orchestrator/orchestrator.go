// Package orchestrator implements the central coordinator: the global FSM,
// the per-model registry, the pub/sub dependency graph, and the run loop
// that drives the timeline and every model's FSM to completion. Adapted
// from aistore's reb (rebalance) xaction: a single long-lived coordinator
// object owns a slice of per-target status records and walks them to
// completion stage by stage (reb/status.go), the same shape this runtime's
// global coordinator needs for driving N independent model FSMs.
package orchestrator

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/cos"
	"github.com/nginfra/movici-simulation-core-sub002/cmn/nlog"
	"github.com/nginfra/movici-simulation-core-sub002/mask"
	"github.com/nginfra/movici-simulation-core-sub002/model"
	"github.com/nginfra/movici-simulation-core-sub002/timeline"
	"github.com/nginfra/movici-simulation-core-sub002/wire"
)

// GlobalState is one of the top-level simulation run states.
type GlobalState int

const (
	StartInitializing GlobalState = iota
	ModelsRegistration
	StartRunning
	NewTime
	WaitForResults
	StartFinalizing
	FinalizingWait
	EndFinalizing
)

func (s GlobalState) String() string {
	switch s {
	case StartInitializing:
		return "StartInitializing"
	case ModelsRegistration:
		return "ModelsRegistration"
	case StartRunning:
		return "StartRunning"
	case NewTime:
		return "NewTime"
	case WaitForResults:
		return "WaitForResults"
	case StartFinalizing:
		return "StartFinalizing"
	case FinalizingWait:
		return "FinalizingWait"
	case EndFinalizing:
		return "EndFinalizing"
	default:
		return "Unknown"
	}
}

// sender is the minimal outbound capability the orchestrator needs per
// registered model; *wire.Conn satisfies it. Kept as an interface so tests
// can substitute a recording fake without a real socket.
type sender interface {
	Send(wire.Message) error
}

// Orchestrator owns the model registry, the pub/sub graph derived from it,
// the global timeline, and the global FSM state.
type Orchestrator struct {
	mu sync.Mutex

	// RunID identifies this orchestrator instance in log lines; distinct
	// runs of the same scenario never share one, even when run back to
	// back in the same process tree.
	RunID string

	tl     *timeline.Timeline
	models []*model.ConnectedModel
	conns  []sender
	byName map[string]int

	state GlobalState
	errs  cos.Errs

	expectedModels int  // from the scenario's "models" list; 0 means unknown
	dupPubWarned   bool // latches true after the first duplicate-publish warning
}

func New(tl *timeline.Timeline, expectedModels int) *Orchestrator {
	return &Orchestrator{
		RunID:          uuid.NewString(),
		tl:             tl,
		byName:         make(map[string]int),
		state:          StartInitializing,
		expectedModels: expectedModels,
	}
}

func (o *Orchestrator) State() GlobalState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Register adds a newly-connected model to the registry, places it at the
// start of the timeline, and recomputes the pub/sub graph against every
// already-registered model.
func (o *Orchestrator) Register(name string, m mask.DataMask, conn sender) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, dup := o.byName[name]; dup {
		return -1, fmt.Errorf("orchestrator: model %q already registered", name)
	}
	if o.state != StartInitializing && o.state != ModelsRegistration {
		return -1, fmt.Errorf("orchestrator: registration closed (state=%s)", o.state)
	}
	o.state = ModelsRegistration

	idx := len(o.models)
	cm := model.New(name, m)
	o.models = append(o.models, cm)
	o.conns = append(o.conns, conn)
	o.byName[name] = idx

	o.wireEdges(idx)
	o.tl.SetModelToStart(cm)

	nlog.Infof("orchestrator[%s]: registered model %q (idx=%d, corr=%s, pub=%v, sub=%v)",
		o.RunID[:8], name, idx, cm.CorrelationID, m.Pub != nil, m.Sub != nil)
	return idx, nil
}

// wireEdges computes the directed publishes_to/subscribed_to edges between
// the newly-added model at idx and every other registered model, per
// the masks_overlap(A.pub, B.sub) predicate. It also checks the new
// model's publish footprint against every already-registered publisher:
// the first time two distinct models claim the same leaf path, that's
// logged as a warning (both still publish; the broker is last-writer-wins).
func (o *Orchestrator) wireEdges(idx int) {
	a := o.models[idx]
	for j, b := range o.models {
		if j == idx {
			continue
		}
		if mask.MasksOverlap(&a.Mask, &b.Mask) {
			a.PublishesTo = append(a.PublishesTo, j)
			b.SubscribedTo = append(b.SubscribedTo, idx)
		}
		if mask.MasksOverlap(&b.Mask, &a.Mask) {
			b.PublishesTo = append(b.PublishesTo, idx)
			a.SubscribedTo = append(a.SubscribedTo, j)
		}
		if !o.dupPubWarned {
			if path, dup := mask.OverlapPath(a.Mask.Pub, b.Mask.Pub); dup {
				nlog.Warningf("orchestrator: models %q and %q both publish %q; last PUT wins at the broker", a.Name, b.Name, path)
				o.dupPubWarned = true
			}
		}
	}
}

// AllRegistered reports whether every model named in the scenario has
// connected and sent READY. If expectedModels is 0 (unknown ahead of time)
// this never fires and the caller must close registration explicitly.
func (o *Orchestrator) AllRegistered() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.expectedModels == 0 {
		return false
	}
	return len(o.models) >= o.expectedModels
}

func (o *Orchestrator) ModelByName(name string) (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	idx, ok := o.byName[name]
	return idx, ok
}

func (o *Orchestrator) NumModels() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.models)
}

// anySubscribedToBusy is model.SubscriberBusyFunc bound to idx: the
// cascade-gate check consulted while draining a PendingMoreUpdates model.
func (o *Orchestrator) anySubscribedToBusy(idx int) model.SubscriberBusyFunc {
	return func() bool {
		for _, k := range o.models[idx].SubscribedTo {
			if o.models[k].Busy() {
				return true
			}
		}
		return false
	}
}

// FailedModelNames returns the names of every model currently marked
// failed, for the EndFinalizing summary.
func (o *Orchestrator) FailedModelNames() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var names []string
	for _, m := range o.models {
		if m.Failed() {
			names = append(names, m.Name)
		}
	}
	return names
}

// Errors returns the accumulated per-model failure reasons.
func (o *Orchestrator) Errors() *cos.Errs { return &o.errs }

// ExitCode is 0 if every model finished cleanly, 1 if any model failed.
func (o *Orchestrator) ExitCode() int {
	if len(o.FailedModelNames()) > 0 {
		return 1
	}
	return 0
}

// Summary renders the EndFinalizing log line.
func (o *Orchestrator) Summary() string {
	failed := o.FailedModelNames()
	if len(failed) == 0 {
		return fmt.Sprintf("run %s: simulation successfully finished", o.RunID)
	}
	return fmt.Sprintf("run %s: simulation unexpectedly ended due to a failure of model(s) %v", o.RunID, failed)
}
