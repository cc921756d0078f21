// Package broker implements the update-data broker: a request/reply service
// over a single in-memory map, guarded by one mutex since, unlike
// aistore's multi-daemon cluster, a single broker process serves all
// models over a shared listener and goroutine-per-connection handlers.
package broker

import (
	"strings"
	"sync"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/nlog"
	"github.com/nginfra/movici-simulation-core-sub002/mask"
	"github.com/nginfra/movici-simulation-core-sub002/wire"
)

// Broker holds the update-broker's key -> bytes store.
type Broker struct {
	mu    sync.Mutex
	store map[string][]byte

	mirror Mirror // optional: MOVICI_STORAGE=disk artifact mirror
}

// Mirror receives a copy of every stored payload for optional disk
// persistence; nil disables it.
type Mirror interface {
	Save(key string, data []byte)
}

func New(mirror Mirror) *Broker {
	return &Broker{store: make(map[string][]byte), mirror: mirror}
}

// Put stores data under key, overwriting any previous value -- the owning
// model's latest write always wins. parse-validity is the caller's
// (handler's) responsibility via ValidatePayload.
func (b *Broker) Put(key string, data []byte) {
	b.mu.Lock()
	b.store[key] = data
	b.mu.Unlock()
	if b.mirror != nil {
		b.mirror.Save(key, data)
	}
}

// Get returns the raw bytes stored under key, or ok=false if absent.
func (b *Broker) Get(key string) (data []byte, ok bool) {
	b.mu.Lock()
	data, ok = b.store[key]
	b.mu.Unlock()
	return
}

// Clear deletes every key with the given prefix. Idempotent: a second
// CLEAR with the same prefix is a no-op.
func (b *Broker) Clear(prefix string) {
	b.mu.Lock()
	for k := range b.store {
		if strings.HasPrefix(k, prefix) {
			delete(b.store, k)
		}
	}
	b.mu.Unlock()
}

// ErrInvalidData is returned by ValidatePayload when the top-level decoded
// value is not a JSON object, the broker's one payload-shape requirement.
type ErrInvalidData struct{ reason string }

func (e *ErrInvalidData) Error() string { return "Invalid data: " + e.reason }

// ValidatePayload decodes data as a nested update-dict and rejects anything
// whose top level isn't a JSON object.
func ValidatePayload(data []byte) (map[string]any, error) {
	var v map[string]any
	if err := unmarshalJSON(data, &v); err != nil {
		return nil, &ErrInvalidData{reason: err.Error()}
	}
	if v == nil {
		return nil, &ErrInvalidData{reason: "top-level value is not an object"}
	}
	return v, nil
}

// HandleGet implements the GET{key, mask} handler.
func (b *Broker) HandleGet(req wire.GetBody) (wire.Message, error) {
	data, ok := b.Get(req.Key)
	if !ok {
		nlog.Warningf("broker: GET miss for key %q", req.Key)
		return wire.NewJSON(wire.TagError, wire.ErrorBody{Error: "Key not found"})
	}
	m, err := toMaskTree(req.Mask)
	if err != nil {
		return wire.NewJSON(wire.TagError, wire.ErrorBody{Error: err.Error()})
	}
	if m == nil {
		return wire.NewData(data), nil
	}
	decoded, err := ValidatePayload(data)
	if err != nil {
		return wire.NewJSON(wire.TagError, wire.ErrorBody{Error: err.Error()})
	}
	filtered := mask.Filter(decoded, m)
	return wire.NewData(mustMarshalJSON(filtered)), nil
}

// HandlePut implements the PUT{key, data} handler.
func (b *Broker) HandlePut(key string, data []byte) (wire.Message, error) {
	if _, err := ValidatePayload(data); err != nil {
		return wire.NewJSON(wire.TagError, wire.ErrorBody{Error: err.Error()})
	}
	b.Put(key, data)
	return wire.NewJSON(wire.TagAck, wire.AckBody{})
}

// HandleClear implements the CLEAR{prefix} handler.
func (b *Broker) HandleClear(req wire.ClearBody) (wire.Message, error) {
	b.Clear(req.Prefix)
	return wire.NewJSON(wire.TagAck, wire.AckBody{})
}

func toMaskTree(raw any) (mask.Tree, error) {
	if raw == nil {
		return nil, nil
	}
	b, err := marshalJSON(raw)
	if err != nil {
		return nil, err
	}
	var t mask.Tree
	if err := unmarshalJSON(b, &t); err != nil {
		return nil, err
	}
	return t, nil
}
