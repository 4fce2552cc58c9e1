package resp

import (
	"strconv"
)

// Encode serializes v to its wire form.
func Encode(v Value) []byte {
	buf := make([]byte, 0, 64)
	return appendValue(buf, v)
}

func appendValue(buf []byte, v Value) []byte {
	switch v.Kind {
	case SimpleString:
		buf = append(buf, '+')
		buf = append(buf, v.Str...)
		return append(buf, '\r', '\n')

	case Error:
		buf = append(buf, '-')
		buf = append(buf, v.Str...)
		return append(buf, '\r', '\n')

	case Integer:
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, v.Int, 10)
		return append(buf, '\r', '\n')

	case BulkString:
		if v.Null {
			return append(buf, '$', '-', '1', '\r', '\n')
		}
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(v.Bulk)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, v.Bulk...)
		return append(buf, '\r', '\n')

	case Array:
		if v.Null {
			return append(buf, '*', '-', '1', '\r', '\n')
		}
		buf = append(buf, '*')
		buf = strconv.AppendInt(buf, int64(len(v.Array)), 10)
		buf = append(buf, '\r', '\n')
		for _, elem := range v.Array {
			buf = appendValue(buf, elem)
		}
		return buf

	default:
		return append(buf, '-', 'E', 'R', 'R', ' ', 'i', 'n', 't', 'e', 'r', 'n', 'a', 'l', ' ',
			'e', 'n', 'c', 'o', 'd', 'e', ' ', 'e', 'r', 'r', 'o', 'r', '\r', '\n')
	}
}

// EncodeRawBulk encodes b as a bulk string WITHOUT the trailing CRLF,
// the wire shape used for the one-shot snapshot handoff during
// replication (see the decoder's DecodeRawBulk counterpart).
func EncodeRawBulk(b []byte) []byte {
	buf := make([]byte, 0, len(b)+16)
	buf = append(buf, '$')
	buf = strconv.AppendInt(buf, int64(len(b)), 10)
	buf = append(buf, '\r', '\n')
	buf = append(buf, b...)
	return buf
}

// EncodeCommand encodes a command name and its arguments as a RESP
// array of bulk strings, the shape used for client requests and for
// replication fan-out.
func EncodeCommand(args ...string) []byte {
	vs := make([]Value, len(args))
	for i, a := range args {
		vs[i] = BulkStr(a)
	}
	return Encode(Arr(vs...))
}
