// Package adapter implements the model-side adapter that runs inside each
// model subprocess. It translates incoming wire messages into calls
// against a Model implementation and turns the model's return values back
// into wire replies, so model authors never see the wire protocol
// directly -- the same separation aistore draws between its xaction
// Run() loops and the raw transport streams they consume (transport/recv.go
// feeding xact/xs/*.go).
package adapter

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/nlog"
	"github.com/nginfra/movici-simulation-core-sub002/mask"
	"github.com/nginfra/movici-simulation-core-sub002/wire"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotReady is an explicit sentinel a Model's Initialize can return to
// mean "try again on the next update" instead of raising an exception.
var ErrNotReady = errors.New("adapter: model is not ready to initialize")

// Model is implemented by a simulation model; the adapter drives it
// through its registration/initialize/update/shutdown lifecycle.
type Model interface {
	Name() string
	Mask() mask.DataMask

	// NewTime is called on every NEW_TIME(t) command, before any update
	// is dispatched for that tick.
	NewTime(t int64) error

	// Initialize is retried on every update until it stops returning
	// ErrNotReady. Any other error is fatal.
	Initialize() error

	// Update computes the model's state at t and optionally requests a
	// next_time for its next invocation.
	Update(t int64) (nextTime *int64, err error)

	// MergeSubscriptionData folds payload retrieved from the update
	// broker into the model's local state.
	MergeSubscriptionData(data map[string]any)

	// CollectPublishData returns locally-produced data to PUT to the
	// broker, or ok=false if nothing was produced this tick.
	CollectPublishData() (data map[string]any, ok bool)

	Shutdown() error
}

// conn is the minimal wire capability the adapter needs; *wire.Conn
// satisfies it for both the orchestrator connection and the broker
// connection, and a fake can substitute in tests.
type conn interface {
	Send(wire.Message) error
	Recv() (wire.Message, error)
}

// Adapter drives a Model through the wire protocol: control messages
// arrive on orchestrator, subscription reads and publish writes go through
// broker.
type Adapter struct {
	orchestrator conn
	broker       conn
	model        Model

	initialized    bool
	readyForUpdate bool
}

func New(orchestrator, broker conn, model Model) *Adapter {
	return &Adapter{orchestrator: orchestrator, broker: broker, model: model}
}

// FatalError wraps a protocol or model failure that must end the process.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Run is the single-threaded stream-processing loop: every iteration
// suspends only in a socket recv/send. It returns nil on a clean END, or
// *FatalError on an unrecoverable failure.
func (a *Adapter) Run() error {
	for {
		msg, err := a.orchestrator.Recv()
		if err != nil {
			return &FatalError{Err: fmt.Errorf("adapter: recv: %w", err)}
		}
		switch msg.Tag {
		case wire.TagNewTime:
			if err := a.handleNewTime(msg); err != nil {
				return a.fail(err)
			}
		case wire.TagUpdate:
			body, derr := msg.Update()
			if derr != nil {
				return a.fail(derr)
			}
			if err := a.handleUpdates([]wire.UpdateBody{body}); err != nil {
				return a.fail(err)
			}
		case wire.TagUpdateSeries:
			batch, derr := msg.UpdateSeries()
			if derr != nil {
				return a.fail(derr)
			}
			if err := a.handleUpdates(batch); err != nil {
				return a.fail(err)
			}
		case wire.TagEnd:
			return a.handleEnd()
		default:
			return a.fail(fmt.Errorf("adapter: unexpected tag %q", msg.Tag))
		}
	}
}

func (a *Adapter) fail(err error) error {
	em, _ := wire.NewJSON(wire.TagError, wire.ErrorBody{Error: err.Error()})
	_ = a.orchestrator.Send(em)
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe
	}
	return &FatalError{Err: err}
}

// handleNewTime implements the NEW_TIME handler. It clears the model's own
// prefix from the update broker first, so a delivery queued against the
// previous tick can never be read as if it belonged to this one.
func (a *Adapter) handleNewTime(msg wire.Message) error {
	body, err := msg.NewTimeBody()
	if err != nil {
		return err
	}
	if err := a.clearOwnPrefix(); err != nil {
		return fmt.Errorf("adapter: %s CLEAR(%s): %w", a.model.Name(), a.model.Name(), err)
	}
	if err := a.model.NewTime(body.Timestamp); err != nil {
		return fmt.Errorf("adapter: %s.new_time(%d): %w", a.model.Name(), body.Timestamp, err)
	}
	if !a.readyForUpdate && body.Timestamp > 0 {
		return fmt.Errorf("adapter: %s received NEW_TIME(%d) before any required input arrived", a.model.Name(), body.Timestamp)
	}
	ack, _ := wire.NewJSON(wire.TagAck, wire.AckBody{})
	return a.orchestrator.Send(ack)
}

// handleUpdates implements the UPDATE/UPDATE_SERIES handler:
// should-calculate is the OR of "this entry carried data" across the
// batch.
func (a *Adapter) handleUpdates(batch []wire.UpdateBody) error {
	var (
		shouldCalculate bool
		lastTime        int64
	)
	for _, u := range batch {
		lastTime = u.Timestamp
		if u.Key == nil || u.Address == nil {
			continue // a bare "wake" call: no payload to fetch
		}
		data, err := a.fetch(*u.Key)
		if err != nil {
			return fmt.Errorf("adapter: GET %q: %w", *u.Key, err)
		}
		a.model.MergeSubscriptionData(data)
		a.readyForUpdate = true
		shouldCalculate = true
	}

	if !a.initialized {
		if err := a.model.Initialize(); err != nil {
			if errors.Is(err, ErrNotReady) {
				nlog.Infof("adapter: %s not ready to initialize, retrying next update", a.model.Name())
			} else {
				return fmt.Errorf("adapter: %s.initialize(): %w", a.model.Name(), err)
			}
		} else {
			a.initialized = true
		}
	}

	var result wire.ResultBody
	if a.initialized && shouldCalculate {
		next, err := a.model.Update(lastTime)
		if err != nil {
			return fmt.Errorf("adapter: %s.update(%d): %w", a.model.Name(), lastTime, err)
		}
		result.NextTime = next
		if data, ok := a.model.CollectPublishData(); ok {
			if err := a.publish(&result, data); err != nil {
				return fmt.Errorf("adapter: PUT publish data: %w", err)
			}
		}
	}
	origin := a.model.Name()
	result.Origin = &origin

	msg, err := wire.NewJSON(wire.TagResult, result)
	if err != nil {
		return err
	}
	return a.orchestrator.Send(msg)
}

func (a *Adapter) handleEnd() error {
	err := a.model.Shutdown()
	ack, _ := wire.NewJSON(wire.TagAck, wire.AckBody{})
	_ = a.orchestrator.Send(ack)
	if err != nil {
		return &FatalError{Err: fmt.Errorf("adapter: %s.shutdown(): %w", a.model.Name(), err)}
	}
	return nil
}

// clearOwnPrefix sends CLEAR{prefix: model name} to the broker, discarding
// whatever this model put there on a prior tick.
func (a *Adapter) clearOwnPrefix() error {
	req, _ := wire.NewJSON(wire.TagClear, wire.ClearBody{Prefix: a.model.Name()})
	if err := a.broker.Send(req); err != nil {
		return err
	}
	resp, err := a.broker.Recv()
	if err != nil {
		return err
	}
	if resp.Tag == wire.TagError {
		eb, _ := resp.ErrorBody()
		return errors.New(eb.Error)
	}
	return nil
}

// fetch GETs key from the broker using the model's own subscription mask
// and decodes the returned payload.
func (a *Adapter) fetch(key string) (map[string]any, error) {
	req, _ := wire.NewJSON(wire.TagGet, wire.GetBody{Key: key, Mask: a.model.Mask().Sub})
	if err := a.broker.Send(req); err != nil {
		return nil, err
	}
	resp, err := a.broker.Recv()
	if err != nil {
		return nil, err
	}
	if resp.Tag == wire.TagError {
		eb, _ := resp.ErrorBody()
		return nil, errors.New(eb.Error)
	}
	db, err := resp.Data()
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if len(db) > 0 {
		if err := json.Unmarshal(db, &data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// publish PUTs the model's produced data to the broker and fills in the
// result's key/address pair; a key is synthesized from the model's name
// since key assignment is left entirely to the caller.
func (a *Adapter) publish(result *wire.ResultBody, data map[string]any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	key := a.model.Name()
	msg := wire.NewPut(key, b)
	if err := a.broker.Send(msg); err != nil {
		return err
	}
	resp, err := a.broker.Recv()
	if err != nil {
		return err
	}
	if resp.Tag == wire.TagError {
		eb, _ := resp.ErrorBody()
		return errors.New(eb.Error)
	}
	addr := "broker"
	result.Key = &key
	result.Address = &addr
	return nil
}
