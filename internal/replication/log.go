// Package replication implements the primary/replica relationship: an
// append-only command log on the primary, per-replica outbound queues
// decoupling fan-out from client-facing latency, WAIT's ack-counting
// poll, and the replica-side handshake and replay loop.
package replication

import "sync"

// Log is the writer-serialized length of the append-only command
// stream, which is the replication offset: the sum of the byte lengths
// of every mutating frame applied, in apply order.
type Log struct {
	mu  sync.Mutex
	len int64
}

// Append records that n more bytes of command stream were applied and
// returns the new offset. The log does not retain the bytes themselves
// (per-replica sinks already have them via fan-out); it only tracks
// length, which is all WAIT and the ack protocol need.
func (l *Log) Append(n int) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.len += int64(n)
	return l.len
}

func (l *Log) Offset() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.len
}
