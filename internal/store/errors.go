package store

import "errors"

var (
	// ErrWrongType is returned whenever a command touches a key whose
	// stored value is not of the type the command expects.
	ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

	// ErrNotInteger is returned by INCR when the current string value
	// cannot be parsed as a signed decimal integer.
	ErrNotInteger = errors.New("ERR value is not an integer or out of range")

	// ErrNoSuchKey is returned by LSET, which must distinguish "key
	// absent" from "index out of range".
	ErrNoSuchKey = errors.New("ERR no such key")

	// ErrIndexOutOfRange is returned by LSET when the index has no
	// corresponding element.
	ErrIndexOutOfRange = errors.New("ERR index out of range")

	// ErrInvalidStreamID is returned when the resolved XADD id is 0-0.
	ErrInvalidStreamID = errors.New("ERR The ID specified in XADD must be greater than 0-0")

	// ErrStreamIDTooSmall is returned when an explicit XADD id is not
	// strictly greater than the stream's current top entry.
	ErrStreamIDTooSmall = errors.New("ERR The ID specified in XADD is equal or smaller than the target stream top item")
)
