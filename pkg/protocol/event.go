package protocol

import (
	"fmt"

	"github.com/vango-dev/flix/pkg/node"
)

// EventKind is the type of a widget event.
type EventKind uint8

const (
	EventSelect EventKind = 0x01 // Row tapped
	EventDelete EventKind = 0x02 // Row delete gesture
	EventAction EventKind = 0x03 // Row edit action chosen
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventSelect:
		return "select"
	case EventDelete:
		return "delete"
	case EventAction:
		return "action"
	default:
		return "unknown"
	}
}

// Event is a user interaction reported by a remote widget.
type Event struct {
	Seq    uint64 // Client event sequence number
	Kind   EventKind
	Path   node.IndexPath
	Action int // EventAction only
}

// EncodeEvent encodes an event payload.
func EncodeEvent(ev *Event) []byte {
	e := NewEncoder()
	e.WriteUvarint(ev.Seq)
	e.WriteByte(byte(ev.Kind))
	encodePath(e, ev.Path)
	if ev.Kind == EventAction {
		e.WriteUvarint(uint64(ev.Action))
	}
	return e.Bytes()
}

// DecodeEvent decodes an event payload.
func DecodeEvent(data []byte) (*Event, error) {
	d := NewDecoder(data)
	ev := &Event{}
	var err error
	if ev.Seq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	kind, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	ev.Kind = EventKind(kind)
	if ev.Kind < EventSelect || ev.Kind > EventAction {
		return nil, fmt.Errorf("protocol: unknown event kind %d", kind)
	}
	if ev.Path, err = decodePath(d); err != nil {
		return nil, err
	}
	if ev.Kind == EventAction {
		n, err := d.ReadCount()
		if err != nil {
			return nil, err
		}
		ev.Action = n
	}
	return ev, nil
}

// EncodeResync encodes a replay request for every batch after lastSeq.
func EncodeResync(lastSeq uint64) []byte {
	e := NewEncoder()
	e.WriteUvarint(lastSeq)
	return e.Bytes()
}

// DecodeResync decodes a replay request.
func DecodeResync(data []byte) (uint64, error) {
	return NewDecoder(data).ReadUvarint()
}
