package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

// Limits applied when decoding untrusted input.
const (
	MaxAllocation      = 4 << 20 // bytes in one length-prefixed value
	MaxCollectionCount = 100_000 // ops, rows or sections in one batch
)

var (
	ErrVarintOverflow     = errors.New("protocol: varint overflow")
	ErrAllocationTooLarge = errors.New("protocol: allocation size exceeds limit")
	ErrCollectionTooLarge = errors.New("protocol: collection count exceeds limit")
)

// Encoder builds a payload. Integers use the encoding/binary varint forms.
type Encoder struct {
	buf []byte
}

// NewEncoder creates an encoder.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 256)}
}

// Bytes returns the payload built so far.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

func (e *Encoder) WriteByte(b byte) {
	e.buf = append(e.buf, b)
}

func (e *Encoder) WriteBool(b bool) {
	var v byte
	if b {
		v = 1
	}
	e.buf = append(e.buf, v)
}

func (e *Encoder) WriteUvarint(v uint64) {
	e.buf = binary.AppendUvarint(e.buf, v)
}

// WriteVarint writes a zig-zag signed varint, so NoRow (-1) takes one byte.
func (e *Encoder) WriteVarint(v int64) {
	e.buf = binary.AppendVarint(e.buf, v)
}

func (e *Encoder) WriteString(s string) {
	e.buf = binary.AppendUvarint(e.buf, uint64(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *Encoder) WriteLenBytes(b []byte) {
	e.buf = binary.AppendUvarint(e.buf, uint64(len(b)))
	e.buf = append(e.buf, b...)
}

// Decoder reads a payload. Reads past the end fail with io.ErrUnexpectedEOF.
type Decoder struct {
	buf []byte
}

// NewDecoder creates a decoder over buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf)
}

func (d *Decoder) ReadByte() (byte, error) {
	if len(d.buf) == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.buf[0]
	d.buf = d.buf[1:]
	return b, nil
}

// ReadBool reads a boolean. Any non-zero byte is true.
func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadByte()
	return b != 0, err
}

func (d *Decoder) ReadUvarint() (uint64, error) {
	v, n := binary.Uvarint(d.buf)
	if err := varintErr(n); err != nil {
		return 0, err
	}
	d.buf = d.buf[n:]
	return v, nil
}

func (d *Decoder) ReadVarint() (int64, error) {
	v, n := binary.Varint(d.buf)
	if err := varintErr(n); err != nil {
		return 0, err
	}
	d.buf = d.buf[n:]
	return v, nil
}

func (d *Decoder) ReadString() (string, error) {
	b, err := d.next()
	return string(b), err
}

// ReadLenBytes reads length-prefixed bytes into a new slice.
func (d *Decoder) ReadLenBytes() ([]byte, error) {
	b, err := d.next()
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// ReadCount reads a collection length bounded by MaxCollectionCount.
func (d *Decoder) ReadCount() (int, error) {
	n, err := d.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if n > MaxCollectionCount {
		return 0, ErrCollectionTooLarge
	}
	return int(n), nil
}

// next returns the length-prefixed value at the read position without
// copying it.
func (d *Decoder) next() ([]byte, error) {
	n, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if n > MaxAllocation {
		return nil, ErrAllocationTooLarge
	}
	if n > uint64(len(d.buf)) {
		return nil, io.ErrUnexpectedEOF
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b, nil
}

func varintErr(n int) error {
	switch {
	case n == 0:
		return io.ErrUnexpectedEOF
	case n < 0:
		return ErrVarintOverflow
	}
	return nil
}
