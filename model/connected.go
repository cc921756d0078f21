package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/mono"
	"github.com/nginfra/movici-simulation-core-sub002/mask"
	"github.com/nginfra/movici-simulation-core-sub002/wire"
)

// ConnectedModel is the per-registered-model record the orchestrator keeps
// live for the duration of a run. Edges (publishes_to/subscribed_to) are
// stored as indices into the orchestrator's model slice rather than
// pointers, so the graph never needs a cycle-aware traversal or GC-visible
// reference loop.
type ConnectedModel struct {
	Name string
	Mask mask.DataMask

	// CorrelationID tags every log line concerning this model so a
	// multi-model run's interleaved output can be split back out per model.
	CorrelationID string

	PublishesTo  []int // indices into the owning orchestrator's model slice
	SubscribedTo []int

	nextTime *int64
	busy     bool
	failed   bool
	quitPend bool

	pendingUpdates []wire.UpdateBody

	state State

	timerStart int64 // mono.NanoTime() when the in-flight command was sent
}

func New(name string, m mask.DataMask) *ConnectedModel {
	return &ConnectedModel{
		Name:          name,
		Mask:          m,
		state:         StateRegistration,
		CorrelationID: uuid.NewString()[:8],
	}
}

func (c *ConnectedModel) State() State  { return c.state }
func (c *ConnectedModel) Busy() bool    { return c.busy }
func (c *ConnectedModel) Failed() bool  { return c.failed }
func (c *ConnectedModel) QuitPending() bool { return c.quitPend }
func (c *ConnectedModel) PendingUpdates() []wire.UpdateBody { return c.pendingUpdates }

func (c *ConnectedModel) NextTime() *int64 { return c.nextTime }

func (c *ConnectedModel) SetNextTime(t *int64) {
	if t == nil {
		c.nextTime = nil
		return
	}
	v := *t
	c.nextTime = &v
}

// EnqueueUpdate appends an update while the model is busy (invariant #2):
// it is drained atomically into a single send when the model frees up.
func (c *ConnectedModel) EnqueueUpdate(u wire.UpdateBody) {
	c.pendingUpdates = append(c.pendingUpdates, u)
}

// DrainPendingUpdates empties and returns the queued batch.
func (c *ConnectedModel) DrainPendingUpdates() []wire.UpdateBody {
	out := c.pendingUpdates
	c.pendingUpdates = nil
	return out
}

func (c *ConnectedModel) RequestQuit() { c.quitPend = true }

// MarkBusy/MarkFree track invariant #1: busy iff exactly one command is
// in flight.
func (c *ConnectedModel) MarkBusy() {
	c.busy = true
	c.timerStart = mono.NanoTime()
}

func (c *ConnectedModel) MarkFree() { c.busy = false }

func (c *ConnectedModel) ElapsedSinceCommand() time.Duration {
	if c.timerStart == 0 {
		return 0
	}
	return time.Duration(mono.NanoTime() - c.timerStart)
}

// MarkFailed implements invariant #4: once failed, no further outgoing
// commands, and pending work is cleared.
func (c *ConnectedModel) MarkFailed() {
	c.failed = true
	c.busy = false
	c.quitPend = false
	c.pendingUpdates = nil
}

// Apply drives the model's FSM with ev, consulting anySubscribedToBusy only
// when relevant, and returns the effects for the orchestrator to carry out.
func (c *ConnectedModel) Apply(ev Event, anySubscribedToBusy SubscriberBusyFunc) []Effect {
	next, effects := Transition(c.state, ev, anySubscribedToBusy)
	c.state = next
	for _, e := range effects {
		if e.Kind == EffMarkFailed {
			c.MarkFailed()
		}
		if e.Kind == EffSendEnd {
			c.RequestQuit()
		}
	}
	return effects
}
