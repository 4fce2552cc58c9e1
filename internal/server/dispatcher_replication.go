package server

import (
	"strings"

	"redisd/internal/command"
	"redisd/internal/resp"
	"redisd/internal/session"
)

// replconf handles REPLCONF arriving over a normal (not yet promoted)
// connection: listening-port and capa negotiation, both acknowledged
// with OK. GETACK/ACK only ever appear on an already-promoted replica
// socket, which bypasses the normal session loop entirely (see
// ReplicationHub.readReplicaAcks), so they never reach here.
func (d *Dispatcher) replconf(cmd command.Command, sess *session.Session) (resp.Value, bool) {
	if len(cmd.Vals) >= 2 && cmd.Vals[0] == "listening-port" {
		d.repl.recordListeningPort(sess, cmd.Vals[1])
	}
	return resp.Str("OK"), false
}

// replicaOf implements REPLICAOF/SLAVEOF: "NO ONE" promotes this
// instance back to primary; any other host/port starts replicating
// from that primary.
func (d *Dispatcher) replicaOf(cmd command.Command) (resp.Value, bool) {
	if strings.EqualFold(cmd.Host, "NO") && strings.EqualFold(cmd.Port, "ONE") {
		d.repl.stopReplicaMode()
		d.cfg.ReplicaOfHost, d.cfg.ReplicaOfPort = "", ""
		return resp.Str("OK"), false
	}
	d.cfg.ReplicaOfHost, d.cfg.ReplicaOfPort = cmd.Host, cmd.Port
	d.repl.startReplicaMode(cmd.Host, cmd.Port)
	return resp.Str("OK"), false
}
