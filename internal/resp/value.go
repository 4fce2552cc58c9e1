// Package resp implements the RESP wire codec: framing typed protocol
// values on a byte stream and back, while preserving the exact bytes
// consumed for each frame (needed by the replication log).
package resp

import "fmt"

// Kind identifies which of the five RESP variants a Value holds.
type Kind int

const (
	SimpleString Kind = iota
	Error
	Integer
	BulkString
	Array
)

// Value is a tagged protocol value. Only the fields relevant to Kind
// are meaningful; the zero Value is an empty simple string.
type Value struct {
	Kind  Kind
	Str   string  // SimpleString, Error
	Int   int64   // Integer
	Bulk  []byte  // BulkString payload; nil iff Null
	Null  bool    // BulkString absent sentinel ($-1), distinct from empty ($0)
	Array []Value // Array elements
}

func Str(s string) Value       { return Value{Kind: SimpleString, Str: s} }
func Err(s string) Value       { return Value{Kind: Error, Str: s} }
func Errf(format string, a ...interface{}) Value {
	return Value{Kind: Error, Str: fmt.Sprintf(format, a...)}
}
func Int(i int64) Value { return Value{Kind: Integer, Int: i} }
func Bulk(b []byte) Value {
	if b == nil {
		return Value{Kind: BulkString, Null: true}
	}
	return Value{Kind: BulkString, Bulk: b}
}
func BulkStr(s string) Value  { return Bulk([]byte(s)) }
func NullBulk() Value         { return Value{Kind: BulkString, Null: true} }
func Arr(vs ...Value) Value   { return Value{Kind: Array, Array: vs} }
func NullArray() Value        { return Value{Kind: Array, Array: nil, Null: true} }

// IsNullArray reports whether v is the nil-array sentinel (*-1\r\n),
// used by blocking commands to signal a timeout.
func (v Value) IsNullArray() bool { return v.Kind == Array && v.Null }

// BulkStrings extracts a []string from an Array of bulk strings,
// as used when a decoded command frame is handed to the parser.
func (v Value) BulkStrings() ([]string, error) {
	if v.Kind != Array {
		return nil, fmt.Errorf("expected array, got kind %d", v.Kind)
	}
	out := make([]string, 0, len(v.Array))
	for _, elem := range v.Array {
		switch elem.Kind {
		case BulkString:
			if elem.Null {
				out = append(out, "")
				continue
			}
			out = append(out, string(elem.Bulk))
		case SimpleString:
			out = append(out, elem.Str)
		default:
			return nil, fmt.Errorf("expected bulk or simple string element, got kind %d", elem.Kind)
		}
	}
	return out, nil
}
