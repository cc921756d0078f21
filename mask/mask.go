// Package mask implements the nested dataset -> entity-group -> (component?
// ->)* attribute mask trees that drive pub/sub graph computation and
// update-broker payload filtering.
package mask

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Tree is a nested mapping from path segment to child tree. A nil value at
// a key means "this node in full" -- matches any subtree rooted there.
type Tree map[string]Tree

// DataMask is a model's declared publish/subscribe footprint. Either half
// may be nil, meaning "no constraint" on that side.
type DataMask struct {
	Pub Tree `json:"pub,omitempty"`
	Sub Tree `json:"sub,omitempty"`
}

// Overlap reports whether two masks share at least one leaf path, where a
// nil subtree on either side matches the other side's entire subtree.
func Overlap(a, b Tree) bool {
	if a == nil || b == nil {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			continue
		}
		if av == nil || bv == nil {
			return true // "full" on either side matches anything below
		}
		if Overlap(av, bv) {
			return true
		}
	}
	return false
}

// OverlapPath is Overlap with a witness: it returns the dot-joined path to
// one leaf both trees share, or ok=false if they don't overlap at all.
func OverlapPath(a, b Tree) (path string, ok bool) {
	if a == nil || b == nil {
		return "", false
	}
	for k, av := range a {
		bv, present := b[k]
		if !present {
			continue
		}
		if av == nil || bv == nil {
			return k, true
		}
		if sub, ok := OverlapPath(av, bv); ok {
			return k + "." + sub, true
		}
	}
	return "", false
}

// TreeFromAny converts a decoded JSON value (as produced by a READY or GET
// message's untyped mask field) into a Tree, or returns nil for a nil or
// JSON-null input meaning "no constraint". An empty map yields an empty,
// non-nil Tree.
func TreeFromAny(raw any) (Tree, error) {
	if raw == nil {
		return nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var t Tree
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, err
	}
	return t, nil
}

// MasksOverlap reports whether pub's publish footprint overlaps sub's
// subscribe footprint -- the predicate that wires a publishes_to/
// subscribed_to edge between two registered models.
func MasksOverlap(pub, sub *DataMask) bool {
	if pub == nil || sub == nil {
		return false
	}
	return Overlap(pub.Pub, sub.Sub)
}

// Filter retains only the leaves of data that are present in mask, treating
// a nil mask subtree as "keep everything below here". data is a nested
// map[string]any as produced by decoding a JSON update payload; Filter
// returns a new map and never mutates data.
func Filter(data map[string]any, m Tree) map[string]any {
	if m == nil {
		return data
	}
	out := make(map[string]any, len(m))
	for k, sub := range m {
		v, ok := data[k]
		if !ok {
			continue
		}
		if sub == nil {
			out[k] = v
			continue
		}
		nested, ok := v.(map[string]any)
		if !ok {
			// mask asks for a subtree but the value isn't a map: nothing to
			// retain under this key.
			continue
		}
		filtered := Filter(nested, sub)
		if len(filtered) > 0 {
			out[k] = filtered
		}
	}
	return out
}
