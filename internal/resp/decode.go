package resp

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// ErrIncomplete is returned by Decode when buf does not yet hold a
// complete frame. Callers must read more bytes and retry; no bytes are
// consumed on this path.
var ErrIncomplete = errors.New("resp: incomplete frame")

// Decode parses exactly one value starting at buf[0]. On success it
// returns the value and the number of bytes consumed, which callers
// use both to advance their read cursor and to capture the exact raw
// frame bytes for the replication log. On incomplete input it returns
// ErrIncomplete and n == 0 without having interpreted anything past
// what was needed to tell the difference.
func Decode(buf []byte) (Value, int, error) {
	if len(buf) == 0 {
		return Value{}, 0, ErrIncomplete
	}

	switch buf[0] {
	case '+':
		return decodeLine(buf, SimpleString)
	case '-':
		return decodeLine(buf, Error)
	case ':':
		return decodeInteger(buf)
	case '$':
		return decodeBulk(buf)
	case '*':
		return decodeArray(buf)
	default:
		return Value{}, 0, fmt.Errorf("resp: unknown type tag %q", buf[0])
	}
}

func findCRLF(buf []byte) int {
	return bytes.Index(buf, []byte{'\r', '\n'})
}

func decodeLine(buf []byte, kind Kind) (Value, int, error) {
	idx := findCRLF(buf)
	if idx == -1 {
		return Value{}, 0, ErrIncomplete
	}
	return Value{Kind: kind, Str: string(buf[1:idx])}, idx + 2, nil
}

func decodeInteger(buf []byte) (Value, int, error) {
	idx := findCRLF(buf)
	if idx == -1 {
		return Value{}, 0, ErrIncomplete
	}
	n, err := strconv.ParseInt(string(buf[1:idx]), 10, 64)
	if err != nil {
		return Value{}, 0, fmt.Errorf("resp: invalid integer: %w", err)
	}
	return Value{Kind: Integer, Int: n}, idx + 2, nil
}

func decodeBulk(buf []byte) (Value, int, error) {
	idx := findCRLF(buf)
	if idx == -1 {
		return Value{}, 0, ErrIncomplete
	}
	length, err := strconv.Atoi(string(buf[1:idx]))
	if err != nil {
		return Value{}, 0, fmt.Errorf("resp: invalid bulk length: %w", err)
	}
	if length < 0 {
		return NullBulk(), idx + 2, nil
	}
	start := idx + 2
	end := start + length
	if len(buf) < end+2 {
		return Value{}, 0, ErrIncomplete
	}
	data := make([]byte, length)
	copy(data, buf[start:end])
	return Bulk(data), end + 2, nil
}

func decodeArray(buf []byte) (Value, int, error) {
	idx := findCRLF(buf)
	if idx == -1 {
		return Value{}, 0, ErrIncomplete
	}
	count, err := strconv.Atoi(string(buf[1:idx]))
	if err != nil {
		return Value{}, 0, fmt.Errorf("resp: invalid array length: %w", err)
	}
	pos := idx + 2
	if count < 0 {
		return NullArray(), pos, nil
	}
	elems := make([]Value, 0, count)
	for i := 0; i < count; i++ {
		if pos >= len(buf) {
			return Value{}, 0, ErrIncomplete
		}
		v, n, err := Decode(buf[pos:])
		if err != nil {
			return Value{}, 0, err
		}
		elems = append(elems, v)
		pos += n
	}
	return Value{Kind: Array, Array: elems}, pos, nil
}

// DecodeRawBulk parses the "$<len>\r\n<bytes>" shape used exactly once
// per connection for the replication snapshot handoff: unlike a normal
// bulk string it has NO trailing CRLF after the payload. Callers must
// only invoke this when they are expecting a snapshot (immediately
// after a FULLRESYNC reply), never for ordinary command/reply framing.
func DecodeRawBulk(buf []byte) ([]byte, int, error) {
	idx := findCRLF(buf)
	if idx == -1 {
		return nil, 0, ErrIncomplete
	}
	if len(buf) == 0 || buf[0] != '$' {
		return nil, 0, fmt.Errorf("resp: expected bulk marker for raw transfer")
	}
	length, err := strconv.Atoi(string(buf[1:idx]))
	if err != nil {
		return nil, 0, fmt.Errorf("resp: invalid raw bulk length: %w", err)
	}
	if length < 0 {
		return nil, idx + 2, nil
	}
	start := idx + 2
	end := start + length
	if len(buf) < end {
		return nil, 0, ErrIncomplete
	}
	data := make([]byte, length)
	copy(data, buf[start:end])
	return data, end, nil
}
