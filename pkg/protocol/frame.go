package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxPayloadSize is the largest accepted frame payload.
const MaxPayloadSize = MaxAllocation

// FrameType identifies the type of frame.
type FrameType uint8

const (
	FrameBatch  FrameType = 0x01 // Server → Client edit script
	FrameEvent  FrameType = 0x02 // Client → Server widget event
	FrameResync FrameType = 0x03 // Client → Server replay request
	FrameError  FrameType = 0x04 // Error message
)

// String returns the string representation of the frame type.
func (ft FrameType) String() string {
	switch ft {
	case FrameBatch:
		return "Batch"
	case FrameEvent:
		return "Event"
	case FrameResync:
		return "Resync"
	case FrameError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Frame errors.
var (
	ErrFrameTooLarge    = errors.New("protocol: frame payload too large")
	ErrInvalidFrameType = errors.New("protocol: invalid frame type")
)

// Frame is a typed, length-prefixed payload.
type Frame struct {
	Type    FrameType
	Payload []byte
}

// NewFrame creates a frame.
func NewFrame(ft FrameType, payload []byte) *Frame {
	return &Frame{Type: ft, Payload: payload}
}

// Encode encodes the frame including its header.
func (f *Frame) Encode() []byte {
	buf := make([]byte, 0, 1+binary.MaxVarintLen64+len(f.Payload))
	buf = append(buf, byte(f.Type))
	buf = binary.AppendUvarint(buf, uint64(len(f.Payload)))
	return append(buf, f.Payload...)
}

// DecodeFrame decodes one complete frame. Trailing bytes are an error.
func DecodeFrame(data []byte) (*Frame, error) {
	d := NewDecoder(data)
	ft, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	if !validFrameType(FrameType(ft)) {
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidFrameType, ft)
	}
	payload, err := d.ReadLenBytes()
	if err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, fmt.Errorf("protocol: %d trailing bytes after frame", d.Remaining())
	}
	return &Frame{Type: FrameType(ft), Payload: payload}, nil
}

type byteReader interface {
	io.Reader
	io.ByteReader
}

// ReadFrame reads one frame from a stream. Readers that do not implement
// io.ByteReader are buffered, so pass the same buffered reader to
// successive calls.
func ReadFrame(r io.Reader) (*Frame, error) {
	br, ok := r.(byteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	ft, err := br.ReadByte()
	if err != nil {
		return nil, err
	}
	if !validFrameType(FrameType(ft)) {
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidFrameType, ft)
	}
	length, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, err
	}
	if length > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(br, payload); err != nil {
		return nil, err
	}
	return &Frame{Type: FrameType(ft), Payload: payload}, nil
}

// WriteFrame writes one frame to a stream.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > MaxPayloadSize {
		return ErrFrameTooLarge
	}
	_, err := w.Write(f.Encode())
	return err
}

func validFrameType(ft FrameType) bool {
	return ft >= FrameBatch && ft <= FrameError
}
