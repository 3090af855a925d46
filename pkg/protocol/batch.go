package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vango-dev/flix/pkg/diff"
	"github.com/vango-dev/flix/pkg/node"
	"github.com/vango-dev/flix/pkg/widget"
)

// Batch is one edit script sent to a remote widget.
type Batch struct {
	Seq        uint64
	Generation uint64
	Reset      bool // Client clears its list before applying Ops
	Animation  widget.AnimationConfig
	Ops        []diff.Op
}

// FromUpdate converts a widget update to a batch.
func FromUpdate(u *widget.Update) *Batch {
	b := &Batch{
		Seq:        u.Seq,
		Generation: u.Generation,
		Animation:  u.Animation,
	}
	if u.Script != nil {
		b.Ops = u.Script.Ops
	}
	return b
}

// Script returns the batch operations as a script.
func (b *Batch) Script() *diff.Script {
	return &diff.Script{Ops: b.Ops}
}

// EncodeBatch encodes a batch payload. It fails when a node value cannot be
// marshaled to JSON.
func EncodeBatch(b *Batch) ([]byte, error) {
	e := NewEncoder()
	if err := EncodeBatchTo(e, b); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// EncodeBatchTo encodes a batch payload using the provided encoder.
func EncodeBatchTo(e *Encoder, b *Batch) error {
	e.WriteUvarint(b.Seq)
	e.WriteUvarint(b.Generation)
	e.WriteBool(b.Reset)
	e.WriteByte(byte(b.Animation.Insert))
	e.WriteByte(byte(b.Animation.Reload))
	e.WriteByte(byte(b.Animation.Delete))

	e.WriteUvarint(uint64(len(b.Ops)))
	for i, op := range b.Ops {
		if err := encodeOp(e, op); err != nil {
			return fmt.Errorf("protocol: op %d (%s): %w", i, op, err)
		}
	}
	return nil
}

// DecodeBatch decodes a batch payload. Node values decode as generic JSON
// values (string, float64, bool, nil, []any, map[string]any).
func DecodeBatch(data []byte) (*Batch, error) {
	d := NewDecoder(data)
	b := &Batch{}
	var err error

	if b.Seq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if b.Generation, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if b.Reset, err = d.ReadBool(); err != nil {
		return nil, err
	}
	var anim [3]byte
	for i := range anim {
		if anim[i], err = d.ReadByte(); err != nil {
			return nil, err
		}
	}
	b.Animation = widget.AnimationConfig{
		Insert: widget.Animation(anim[0]),
		Reload: widget.Animation(anim[1]),
		Delete: widget.Animation(anim[2]),
	}

	count, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	b.Ops = make([]diff.Op, count)
	for i := range b.Ops {
		if b.Ops[i], err = decodeOp(d); err != nil {
			return nil, fmt.Errorf("protocol: op %d: %w", i, err)
		}
	}
	return b, nil
}

func encodeOp(e *Encoder, op diff.Op) error {
	e.WriteByte(byte(op.Kind))
	encodePath(e, op.From)
	encodePath(e, op.To)
	e.WriteByte(byte(op.Part))

	e.WriteBool(op.Node != nil)
	if op.Node != nil {
		if err := encodeNode(e, *op.Node); err != nil {
			return err
		}
	}
	e.WriteBool(op.Section != nil)
	if op.Section != nil {
		return encodeSection(e, *op.Section)
	}
	return nil
}

func decodeOp(d *Decoder) (diff.Op, error) {
	var op diff.Op
	kind, err := d.ReadByte()
	if err != nil {
		return op, err
	}
	op.Kind = diff.Kind(kind)
	if op.Kind < diff.DeleteSection || op.Kind > diff.ReloadRow {
		return op, fmt.Errorf("unknown op kind %d", kind)
	}
	if op.From, err = decodePath(d); err != nil {
		return op, err
	}
	if op.To, err = decodePath(d); err != nil {
		return op, err
	}
	part, err := d.ReadByte()
	if err != nil {
		return op, err
	}
	op.Part = node.Part(part)

	hasNode, err := d.ReadBool()
	if err != nil {
		return op, err
	}
	if hasNode {
		n, err := decodeNode(d)
		if err != nil {
			return op, err
		}
		op.Node = &n
	}
	hasSection, err := d.ReadBool()
	if err != nil {
		return op, err
	}
	if hasSection {
		s, err := decodeSection(d)
		if err != nil {
			return op, err
		}
		op.Section = &s
	}
	return op, nil
}

func encodePath(e *Encoder, p node.IndexPath) {
	e.WriteVarint(int64(p.Section))
	e.WriteVarint(int64(p.Row))
}

func decodePath(d *Decoder) (node.IndexPath, error) {
	s, err := d.ReadVarint()
	if err != nil {
		return node.IndexPath{}, err
	}
	r, err := d.ReadVarint()
	if err != nil {
		return node.IndexPath{}, err
	}
	return node.IndexPath{Section: int(s), Row: int(r)}, nil
}

func encodeNode(e *Encoder, n node.Node) error {
	value, err := json.Marshal(n.Value)
	if err != nil {
		return fmt.Errorf("marshal value of %s: %w", n.ID(), err)
	}
	e.WriteString(n.Provider)
	e.WriteString(n.Key)
	e.WriteLenBytes(value)
	return nil
}

func decodeNode(d *Decoder) (node.Node, error) {
	var n node.Node
	var err error
	if n.Provider, err = d.ReadString(); err != nil {
		return n, err
	}
	if n.Key, err = d.ReadString(); err != nil {
		return n, err
	}
	raw, err := d.ReadLenBytes()
	if err != nil {
		return n, err
	}
	if err := json.Unmarshal(raw, &n.Value); err != nil {
		return n, fmt.Errorf("unmarshal value of %s: %w", n.ID(), err)
	}
	return n, nil
}

func encodeOptionalNode(e *Encoder, n *node.Node) error {
	e.WriteBool(n != nil)
	if n == nil {
		return nil
	}
	return encodeNode(e, *n)
}

func decodeOptionalNode(d *Decoder) (*node.Node, error) {
	present, err := d.ReadBool()
	if err != nil || !present {
		return nil, err
	}
	n, err := decodeNode(d)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func encodeSection(e *Encoder, s node.Section) error {
	if err := encodeNode(e, s.Node); err != nil {
		return err
	}
	if err := encodeOptionalNode(e, s.Header); err != nil {
		return err
	}
	if err := encodeOptionalNode(e, s.Footer); err != nil {
		return err
	}
	e.WriteUvarint(uint64(len(s.Rows)))
	for _, r := range s.Rows {
		if err := encodeNode(e, r); err != nil {
			return err
		}
	}
	return nil
}

func decodeSection(d *Decoder) (node.Section, error) {
	var s node.Section
	var err error
	if s.Node, err = decodeNode(d); err != nil {
		return s, err
	}
	if s.Header, err = decodeOptionalNode(d); err != nil {
		return s, err
	}
	if s.Footer, err = decodeOptionalNode(d); err != nil {
		return s, err
	}
	count, err := d.ReadCount()
	if err != nil {
		return s, err
	}
	s.Rows = make([]node.Node, count)
	for i := range s.Rows {
		if s.Rows[i], err = decodeNode(d); err != nil {
			return s, err
		}
	}
	return s, nil
}
