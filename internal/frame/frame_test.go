package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	body := map[string]any{"a": float64(1)}
	buf := Encode(OpPing, body)
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Op != OpPing {
		t.Fatalf("op = %v, want %v", got.Op, OpPing)
	}
	var decoded map[string]any
	if err := json.Unmarshal(got.Body, &decoded); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if decoded["a"] != float64(1) {
		t.Fatalf("body = %v, want %v", decoded, body)
	}
}

func TestDecodeInvalidOp(t *testing.T) {
	buf := Encode(OpPong, map[string]any{})
	buf[0] = 99 // corrupt op to 99 (low byte; high bytes already zero)
	_, err := Decode(buf)
	var invOp *InvalidOpError
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.As(err, &invOp) {
		t.Fatalf("expected InvalidOpError, got %T: %v", err, err)
	}
	if invOp.Op != 99 {
		t.Fatalf("op = %d, want 99", invOp.Op)
	}
}

func TestDecodeTruncated(t *testing.T) {
	buf := Encode(OpFrame, map[string]any{"k": true})
	buf = buf[:len(buf)-1]
	_, err := Decode(buf)
	if err != ErrTooSmall {
		t.Fatalf("err = %v, want ErrTooSmall", err)
	}
}

func TestDecodeTooSmallHeader(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	if err != ErrTooSmall {
		t.Fatalf("err = %v, want ErrTooSmall", err)
	}
}

func TestReadFrame(t *testing.T) {
	buf := Encode(OpHandshake, map[string]any{"v": float64(1)})
	r, err := ReadFrame(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if r.Op != OpHandshake {
		t.Fatalf("op = %v, want %v", r.Op, OpHandshake)
	}
}

// TestRoundTripProperty verifies the quantified invariant from the
// specification, sampled over every valid op and generated single-key
// objects with an integer value: decode(encode(op, v)) reproduces (op, v).
func TestRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	validOps := []Op{OpHandshake, OpFrame, OpClose, OpPing, OpPong}

	properties.Property("decode(encode(op, v)) == (op, v)", prop.ForAll(
		func(opIdx int, key string, val int) bool {
			op := validOps[opIdx%len(validOps)]
			body := map[string]any{key: float64(val)}
			buf := Encode(op, body)
			got, err := Decode(buf)
			if err != nil {
				return false
			}
			if got.Op != op {
				return false
			}
			var decoded map[string]any
			if err := json.Unmarshal(got.Body, &decoded); err != nil {
				return false
			}
			return decoded[key] == float64(val)
		},
		gen.IntRange(0, 4),
		gen.AlphaString(),
		gen.Int(),
	))

	properties.TestingRun(t)
}

func TestAnyByteSliceShorterThan8IsTooSmall(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("len(b) < 8 => TooSmall", prop.ForAll(
		func(n int) bool {
			b := make([]byte, n%headerSize)
			_, err := Decode(b)
			return err == ErrTooSmall
		},
		gen.IntRange(0, headerSize-1),
	))

	properties.TestingRun(t)
}
