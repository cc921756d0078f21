package orchestrator

import (
	"fmt"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/nlog"
	"github.com/nginfra/movici-simulation-core-sub002/model"
	"github.com/nginfra/movici-simulation-core-sub002/timeline"
	"github.com/nginfra/movici-simulation-core-sub002/wire"
)

// HandleReady drives a model's FSM on READY, the transition out of
// Registration into Idle (or Done+failed on a malformed registration).
func (o *Orchestrator) HandleReady(idx int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.apply(idx, model.Event{Kind: model.EvReady})
}

// HandleAck drives a model's FSM on ACK -- the response to NEW_TIME or END.
func (o *Orchestrator) HandleAck(idx int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.apply(idx, model.Event{Kind: model.EvRespAck})
}

// HandleResult drives a model's FSM on RESULT, folding the model's
// declared next_time back into the timeline and, when the result carried
// published data, cascading a queued UPDATE to every model downstream of
// it in the pub/sub graph.
func (o *Orchestrator) HandleResult(idx int, res wire.ResultBody) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cm := o.models[idx]
	o.tl.SetNextTime(cm, res.NextTime)
	o.apply(idx, model.Event{Kind: model.EvRespResult, Result: &res})
	o.cascade(idx, res)
}

// cascade forwards a producing model's key/address to every model it
// publishes to, so the next time each drains its pending updates it picks
// up the new data. A RESULT with no key/address (nothing produced this
// tick) cascades nothing. Must be called with o.mu held.
func (o *Orchestrator) cascade(idx int, res wire.ResultBody) {
	if res.Key == nil || res.Address == nil {
		return
	}
	cm := o.models[idx]
	var ts int64
	if t := o.tl.Current(); t != nil {
		ts = *t
	}
	origin := cm.Name
	u := wire.UpdateBody{Timestamp: ts, Key: res.Key, Address: res.Address, Origin: &origin}
	for _, down := range cm.PublishesTo {
		o.enqueueUpdateLocked(down, u)
	}
}

// HandleError drives a model's FSM on an ERROR response, marking it failed.
func (o *Orchestrator) HandleError(idx int, reason error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.apply(idx, model.Event{Kind: model.EvRespError, Err: reason})
}

// apply drives model idx's FSM with ev and carries out the resulting
// effects by sending on its connection. Must be called with o.mu held.
func (o *Orchestrator) apply(idx int, ev model.Event) {
	cm := o.models[idx]
	conn := o.conns[idx]
	switch ev.Kind {
	case model.EvRespAck, model.EvRespResult, model.EvRespError:
		// the in-flight command this response answers is no longer
		// outstanding; free the model before re-evaluating its FSM so a
		// freshly-idle subscriber can be dispatched to immediately.
		cm.MarkFree()
	}
	effects := cm.Apply(ev, o.anySubscribedToBusy(idx))
	for _, e := range effects {
		switch e.Kind {
		case model.EffSendNewTime:
			o.send(idx, conn, cm)
		case model.EffSendUpdateOrSeries:
			o.sendUpdate(idx, conn, cm)
		case model.EffSendEnd:
			msg, _ := wire.NewJSON(wire.TagEnd, wire.EndBody{})
			if err := conn.Send(msg); err != nil {
				nlog.Warningf("orchestrator: send END to %q: %v", cm.Name, err)
			}
			cm.MarkBusy()
		case model.EffMarkFailed:
			reason := ev.Err
			if reason == nil {
				reason = fmt.Errorf("protocol violation")
			}
			o.errs.Add(fmt.Errorf("model %q: %w", cm.Name, reason))
		}
	}
	if !cm.Busy() && cm.State() == model.StateIdle && len(cm.PendingUpdates()) > 0 {
		// updates queued while the model was busy go out now as one batch
		o.apply(idx, model.Event{Kind: model.EvCmdUpdate})
		return
	}
	if !cm.Busy() {
		o.drainIfPossible(idx)
	}
}

func (o *Orchestrator) send(idx int, conn sender, cm *model.ConnectedModel) {
	t := o.tl.Current()
	if t == nil {
		return
	}
	msg, _ := wire.NewJSON(wire.TagNewTime, wire.NewTimeBody{Timestamp: *t})
	if err := conn.Send(msg); err != nil {
		nlog.Warningf("orchestrator: send NEW_TIME to %q: %v", cm.Name, err)
	}
	cm.MarkBusy()
}

// sendUpdate drains whatever updates are queued for cm (one or many) and
// sends either a plain UPDATE or an UPDATE_SERIES.
func (o *Orchestrator) sendUpdate(idx int, conn sender, cm *model.ConnectedModel) {
	batch := cm.DrainPendingUpdates()
	var (
		msg wire.Message
		err error
	)
	switch len(batch) {
	case 0:
		nlog.Warningf("orchestrator: sendUpdate for %q with no queued updates", cm.Name)
		return
	case 1:
		msg, err = wire.NewJSON(wire.TagUpdate, batch[0])
	default:
		msg, err = wire.NewUpdateSeries(batch)
	}
	if err != nil {
		nlog.Warningf("orchestrator: encode update for %q: %v", cm.Name, err)
		return
	}
	if err := conn.Send(msg); err != nil {
		nlog.Warningf("orchestrator: send update to %q: %v", cm.Name, err)
	}
	cm.MarkBusy()
}

// EnqueueUpdate queues an update for model idx (invariant #2: a busy model
// accumulates updates rather than receiving them immediately), then
// re-evaluates whether it can dispatch now.
func (o *Orchestrator) EnqueueUpdate(idx int, u wire.UpdateBody) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enqueueUpdateLocked(idx, u)
}

// enqueueUpdateLocked is EnqueueUpdate's body, for callers that already
// hold o.mu (the RESULT cascade fires from inside HandleResult).
func (o *Orchestrator) enqueueUpdateLocked(idx int, u wire.UpdateBody) {
	o.models[idx].EnqueueUpdate(u)
	if !o.models[idx].Busy() {
		o.apply(idx, model.Event{Kind: model.EvCmdUpdate, Update: &u})
	}
}

// drainIfPossible re-checks every model waiting in PendingMoreUpdates,
// since a free model may have unblocked one of its subscribers' cascade
// gates.
func (o *Orchestrator) drainIfPossible(justFreed int) {
	for _, k := range o.models[justFreed].PublishesTo {
		if o.models[k].State() == model.StatePendingMoreUpdates {
			o.apply(k, model.Event{Kind: model.EvAnySubscribedToBusyResolved})
		}
	}
}

// AdvanceClock runs one round of queue_for_next_time and sends
// NEW_TIME/UPDATE commands to every model the result names.
func (o *Orchestrator) AdvanceClock() ClockResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	res := o.tl.QueueForNextTime(toNextTimeSetters(o.models))
	if res.Advanced {
		nlog.Infof("orchestrator: advancing clock to %d", res.Time)
	}
	for _, idx := range res.WakeIdx {
		cm := o.models[idx]
		if cm.Failed() {
			continue
		}
		u := wire.UpdateBody{Timestamp: res.Time}
		cm.EnqueueUpdate(u)
		if !cm.Busy() {
			o.apply(idx, model.Event{Kind: model.EvCmdUpdate, Update: &u})
		}
	}
	return ClockResult{Advanced: res.Advanced, Time: res.Time, Woke: len(res.WakeIdx)}
}

// ClockResult summarizes one AdvanceClock round for callers (the run loop,
// tests) that need to know whether the clock moved and how many models
// were woken.
type ClockResult struct {
	Advanced bool
	Time     int64
	Woke     int
}

func toNextTimeSetters(models []*model.ConnectedModel) []timeline.NextTimeSetter {
	out := make([]timeline.NextTimeSetter, len(models))
	for i, m := range models {
		out[i] = m
	}
	return out
}

// AllIdleOrDone reports whether no model has outstanding work -- the
// WaitForResults -> NewTime loopback condition.
func (o *Orchestrator) AllIdleOrDone() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, m := range o.models {
		if m.Busy() {
			return false
		}
	}
	return true
}

// BeginFinalizing sends END to every model that hasn't already failed or
// finished, entering the finalizing wait state.
func (o *Orchestrator) BeginFinalizing() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = StartFinalizing
	for i, cm := range o.models {
		if cm.Failed() || cm.State() == model.StateDone {
			continue
		}
		o.apply(i, model.Event{Kind: model.EvCmdEnd})
	}
	o.state = FinalizingWait
}

// AllDone reports whether every registered model has reached StateDone.
func (o *Orchestrator) AllDone() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, m := range o.models {
		if m.State() != model.StateDone {
			return false
		}
	}
	return true
}

func (o *Orchestrator) SetState(s GlobalState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}
