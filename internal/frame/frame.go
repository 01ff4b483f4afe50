// Package frame implements the length-prefixed binary framing protocol used
// by the stream-IPC transport: a 4-byte little-endian op code, a 4-byte
// little-endian body length, then that many bytes of UTF-8 JSON.
package frame

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Op is the IPC op code. Values outside 0..4 are not valid frames.
type Op int32

const (
	OpHandshake Op = 0
	OpFrame     Op = 1
	OpClose     Op = 2
	OpPing      Op = 3
	OpPong      Op = 4
)

const headerSize = 8

// ErrTooSmall is returned when a buffer is shorter than the declared header
// or body length.
var ErrTooSmall = errors.New("frame: buffer too small")

// InvalidOpError is returned when the decoded op code is outside 0..4.
type InvalidOpError struct {
	Op int32
}

func (e *InvalidOpError) Error() string {
	return fmt.Sprintf("frame: invalid op code %d", e.Op)
}

// Raw is a decoded frame: an op code paired with its raw JSON body.
type Raw struct {
	Op   Op
	Body json.RawMessage
}

// Encode produces the 8-byte header followed by the UTF-8 JSON encoding of
// body. Marshaling failure is treated as a programmer error, matching the
// protocol's invariant that serialization of a well-formed value always
// succeeds.
func Encode(op Op, body any) []byte {
	payload, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("frame: encode body: %v", err))
	}
	out := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(out[0:4], uint32(op))
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(payload)))
	copy(out[headerSize:], payload)
	return out
}

// Decode parses a single frame from buf. The declared body length is read
// exactly; bytes beyond it are not consumed.
func Decode(buf []byte) (Raw, error) {
	if len(buf) < headerSize {
		return Raw{}, ErrTooSmall
	}
	opVal := int32(binary.LittleEndian.Uint32(buf[0:4]))
	if opVal < int32(OpHandshake) || opVal > int32(OpPong) {
		return Raw{}, &InvalidOpError{Op: opVal}
	}
	length := binary.LittleEndian.Uint32(buf[4:8])
	body := buf[headerSize:]
	if uint32(len(body)) < length {
		return Raw{}, ErrTooSmall
	}
	body = body[:length]
	var v json.RawMessage
	if err := json.Unmarshal(body, &v); err != nil {
		return Raw{}, fmt.Errorf("frame: %w", err)
	}
	return Raw{Op: Op(opVal), Body: v}, nil
}

// ReadFrame reads exactly one frame from r: the fixed 8-byte header, then
// the declared number of body bytes.
func ReadFrame(r io.Reader) (Raw, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Raw{}, err
	}
	opVal := int32(binary.LittleEndian.Uint32(header[0:4]))
	if opVal < int32(OpHandshake) || opVal > int32(OpPong) {
		return Raw{}, &InvalidOpError{Op: opVal}
	}
	length := binary.LittleEndian.Uint32(header[4:8])
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Raw{}, err
	}
	var v json.RawMessage
	if err := json.Unmarshal(body, &v); err != nil {
		return Raw{}, fmt.Errorf("frame: %w", err)
	}
	return Raw{Op: Op(opVal), Body: v}, nil
}
