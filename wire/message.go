// Package wire implements the control-plane wire format: a tagged, framed,
// multipart message encoded as one binary message on a connection-oriented
// socket. Adapted from aistore's transport/pdu.go framing discipline (a
// fixed-size protocol header ahead of a variable-length payload), with a
// tagged-variant sum type (Message) standing in for dispatch on message
// type -- match on the tag rather than single-dispatch per type.
package wire

import (
	"encoding/binary"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Tag identifies the kind of a control message; always the first frame.
type Tag string

const (
	TagReady        Tag = "READY"
	TagNewTime      Tag = "NEW_TIME"
	TagUpdate       Tag = "UPDATE"
	TagUpdateSeries Tag = "UPDATE_SERIES"
	TagResult       Tag = "RESULT"
	TagAck          Tag = "ACK"
	TagEnd          Tag = "END"
	TagGet          Tag = "GET"
	TagPut          Tag = "PUT"
	TagClear        Tag = "CLEAR"
	TagData         Tag = "DATA"
	TagPath         Tag = "PATH"
	TagError        Tag = "ERROR"
)

type (
	// ReadyBody is the READY registration payload.
	ReadyBody struct {
		Name string         `json:"name"`
		Pub  map[string]any `json:"pub,omitempty"`
		Sub  map[string]any `json:"sub,omitempty"`
	}
	NewTimeBody struct {
		Timestamp int64 `json:"timestamp"`
	}
	// UpdateBody is the UPDATE payload; Key/Address are either both set or
	// both omitted (a "wake" call carries neither).
	UpdateBody struct {
		Timestamp int64   `json:"timestamp"`
		Key       *string `json:"key,omitempty"`
		Address   *string `json:"address,omitempty"`
		Origin    *string `json:"origin,omitempty"`
	}
	ResultBody struct {
		Key      *string `json:"key,omitempty"`
		Address  *string `json:"address,omitempty"`
		NextTime *int64  `json:"next_time,omitempty"`
		Origin   *string `json:"origin,omitempty"`
	}
	AckBody  struct{}
	EndBody  struct{}
	GetBody  struct {
		Key  string `json:"key"`
		Mask any    `json:"mask,omitempty"`
	}
	ClearBody struct {
		Prefix string `json:"prefix"`
	}
	PathBody struct {
		Path *string `json:"path,omitempty"`
	}
	ErrorBody struct {
		Error string `json:"error,omitempty"`
	}
)

// Message is the tagged union of every frame sequence this protocol moves.
// Frames holds raw (still-encoded) payload frames: JSON frames for most
// tags, opaque bytes for PUT/DATA's data frame. Decode helpers below parse
// a specific tag's frames into its typed body.
type Message struct {
	Tag    Tag
	Frames [][]byte
}

func NewJSON(tag Tag, body any) (Message, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return Message{}, fmt.Errorf("wire: marshal %s body: %w", tag, err)
	}
	return Message{Tag: tag, Frames: [][]byte{b}}, nil
}

func NewUpdateSeries(bodies []UpdateBody) (Message, error) {
	frames := make([][]byte, 0, len(bodies))
	for i := range bodies {
		b, err := json.Marshal(bodies[i])
		if err != nil {
			return Message{}, fmt.Errorf("wire: marshal update series entry %d: %w", i, err)
		}
		frames = append(frames, b)
	}
	return Message{Tag: TagUpdateSeries, Frames: frames}, nil
}

func NewPut(key string, data []byte) Message {
	return Message{Tag: TagPut, Frames: [][]byte{[]byte(key), data}}
}

func NewData(data []byte) Message {
	return Message{Tag: TagData, Frames: [][]byte{data}}
}

func (m Message) Ready() (ReadyBody, error) {
	var b ReadyBody
	return b, m.decodeOne(TagReady, &b)
}

func (m Message) NewTimeBody() (NewTimeBody, error) {
	var b NewTimeBody
	return b, m.decodeOne(TagNewTime, &b)
}

func (m Message) Update() (UpdateBody, error) {
	var b UpdateBody
	return b, m.decodeOne(TagUpdate, &b)
}

func (m Message) UpdateSeries() ([]UpdateBody, error) {
	if m.Tag != TagUpdateSeries {
		return nil, fmt.Errorf("wire: expected %s, got %s", TagUpdateSeries, m.Tag)
	}
	out := make([]UpdateBody, len(m.Frames))
	for i, f := range m.Frames {
		if err := json.Unmarshal(f, &out[i]); err != nil {
			return nil, fmt.Errorf("wire: unmarshal update series entry %d: %w", i, err)
		}
	}
	return out, nil
}

func (m Message) Result() (ResultBody, error) {
	var b ResultBody
	return b, m.decodeOne(TagResult, &b)
}

func (m Message) Get() (GetBody, error) {
	var b GetBody
	return b, m.decodeOne(TagGet, &b)
}

func (m Message) Clear() (ClearBody, error) {
	var b ClearBody
	return b, m.decodeOne(TagClear, &b)
}

func (m Message) Path() (PathBody, error) {
	var b PathBody
	return b, m.decodeOne(TagPath, &b)
}

func (m Message) ErrorBody() (ErrorBody, error) {
	var b ErrorBody
	return b, m.decodeOne(TagError, &b)
}

// Put returns the (key, data) frames of a PUT message.
func (m Message) Put() (key string, data []byte, err error) {
	if m.Tag != TagPut {
		return "", nil, fmt.Errorf("wire: expected %s, got %s", TagPut, m.Tag)
	}
	if len(m.Frames) != 2 {
		return "", nil, fmt.Errorf("wire: PUT requires 2 frames, got %d", len(m.Frames))
	}
	return string(m.Frames[0]), m.Frames[1], nil
}

func (m Message) Data() ([]byte, error) {
	if m.Tag != TagData {
		return nil, fmt.Errorf("wire: expected %s, got %s", TagData, m.Tag)
	}
	if len(m.Frames) != 1 {
		return nil, fmt.Errorf("wire: DATA requires 1 frame, got %d", len(m.Frames))
	}
	return m.Frames[0], nil
}

func (m Message) decodeOne(want Tag, v any) error {
	if m.Tag != want {
		return fmt.Errorf("wire: expected %s, got %s", want, m.Tag)
	}
	if len(m.Frames) != 1 {
		return fmt.Errorf("wire: %s requires 1 frame, got %d", want, len(m.Frames))
	}
	return json.Unmarshal(m.Frames[0], v)
}

//
// encode/decode to/from a single websocket binary message
//
// layout: tag(16 bytes, zero-padded) | frameCount(uint32) |
//         [frameLen(uint32) frameBytes]...

const tagFieldLen = 16

func Encode(m Message) ([]byte, error) {
	if len(m.Tag) == 0 || len(m.Tag) > tagFieldLen {
		return nil, fmt.Errorf("wire: invalid tag %q", m.Tag)
	}
	size := tagFieldLen + 4
	for _, f := range m.Frames {
		size += 4 + len(f)
	}
	buf := make([]byte, size)
	copy(buf, m.Tag)
	off := tagFieldLen
	binary.BigEndian.PutUint32(buf[off:], uint32(len(m.Frames)))
	off += 4
	for _, f := range m.Frames {
		binary.BigEndian.PutUint32(buf[off:], uint32(len(f)))
		off += 4
		copy(buf[off:], f)
		off += len(f)
	}
	return buf, nil
}

func Decode(buf []byte) (Message, error) {
	if len(buf) < tagFieldLen+4 {
		return Message{}, fmt.Errorf("wire: truncated header (%d bytes)", len(buf))
	}
	tag := Tag(trimTag(buf[:tagFieldLen]))
	off := tagFieldLen
	n := binary.BigEndian.Uint32(buf[off:])
	off += 4
	frames := make([][]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		if off+4 > len(buf) {
			return Message{}, fmt.Errorf("wire: truncated frame %d length", i)
		}
		flen := int(binary.BigEndian.Uint32(buf[off:]))
		off += 4
		if off+flen > len(buf) {
			return Message{}, fmt.Errorf("wire: truncated frame %d body", i)
		}
		frames = append(frames, buf[off:off+flen])
		off += flen
	}
	return Message{Tag: tag, Frames: frames}, nil
}

func trimTag(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return b[:i]
}
