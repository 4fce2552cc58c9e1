package server

import (
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"redisd/internal/command"
	"redisd/internal/rdbload"
	"redisd/internal/replication"
	"redisd/internal/resp"
	"redisd/internal/session"
	"redisd/internal/store"
)

// ReplicationHub adapts the replication package to the server's
// session/dispatcher wiring: it tracks each connection's declared
// listening port, promotes a connection to a replica sink on PSYNC,
// and owns the optional replica-side client when this instance itself
// replicates from another primary.
type ReplicationHub struct {
	mgr    *replication.Manager
	store  *store.Store
	myPort string

	mu         sync.Mutex
	listenPort map[*session.Session]string

	replicaClient *replication.Client
	dispatcher    *Dispatcher
}

var _ session.ReplicaPromoter = (*ReplicationHub)(nil)

// newReplicationHub builds a hub for a server listening on myPort — the
// port this instance announces to its own primary via REPLCONF
// listening-port when it itself starts replicating.
func newReplicationHub(st *store.Store, myPort string) *ReplicationHub {
	return &ReplicationHub{
		mgr:        replication.NewManager(),
		store:      st,
		myPort:     myPort,
		listenPort: make(map[*session.Session]string),
	}
}

func (h *ReplicationHub) recordListeningPort(sess *session.Session, port string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listenPort[sess] = port
}

func (h *ReplicationHub) Wait(n int, timeoutMs int64) int {
	getAck := resp.EncodeCommand("REPLCONF", "GETACK", "*")
	return h.mgr.Wait(n, timeoutMs, getAck)
}

func (h *ReplicationHub) InfoSection() string {
	return h.mgr.Info()
}

// Propagate is the write hook sessions call after executing a
// mutating command: append to the log and fan out to replicas.
func (h *ReplicationHub) Propagate(raw []byte) {
	h.mgr.Propagate(raw)
}

// PromoteToReplica implements session.ReplicaPromoter: respond
// FULLRESYNC, send the empty snapshot, register the connection as a
// replica sink, then take over its read half for REPLCONF ACK frames.
func (h *ReplicationHub) PromoteToReplica(conn net.Conn, sess *session.Session, _ string, _ int64) {
	full := resp.Encode(resp.Str("FULLRESYNC " + h.mgr.ReplID() + " 0"))
	if _, err := conn.Write(full); err != nil {
		conn.Close()
		return
	}
	if _, err := conn.Write(resp.EncodeRawBulk(rdbload.EmptySnapshot)); err != nil {
		conn.Close()
		return
	}

	addr := conn.RemoteAddr().String()
	h.mu.Lock()
	if port, ok := h.listenPort[sess]; ok {
		addr = hostOf(addr) + ":" + port
	}
	delete(h.listenPort, sess)
	h.mu.Unlock()

	h.mgr.Register(addr, conn)
	go h.readReplicaAcks(conn, addr)
}

func hostOf(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[:i]
	}
	return addr
}

func (h *ReplicationHub) readReplicaAcks(conn net.Conn, addr string) {
	defer func() {
		h.mgr.Unregister(addr)
		conn.Close()
	}()
	r := resp.NewReader(conn)
	for {
		v, _, err := r.ReadValue()
		if err != nil {
			return
		}
		args, err := v.BulkStrings()
		if err != nil || len(args) < 3 {
			continue
		}
		if strings.EqualFold(args[0], "REPLCONF") && strings.EqualFold(args[1], "ACK") {
			if offset, err := strconv.ParseInt(args[2], 10, 64); err == nil {
				h.mgr.Ack(addr, offset)
			}
		}
	}
}

// replicaApplier lets the replica-side client apply a replayed command
// locally through the same dispatch path client commands use.
type replicaApplier struct {
	dispatcher *Dispatcher
}

func (a *replicaApplier) Apply(args []string) {
	cmd, err := command.Parse(args)
	if err != nil {
		return
	}
	a.dispatcher.execute(cmd, nil)
}

type snapshotLoader struct {
	store *store.Store
}

func (l *snapshotLoader) LoadSnapshot(data []byte) error {
	records, err := rdbload.Load(data)
	if err != nil {
		return err
	}
	return l.applyRecords(records)
}

func (l *snapshotLoader) applyRecords(records []rdbload.Record) error {
	for _, rec := range records {
		var ttl time.Duration
		if rec.ExpiresAt != nil {
			ttl = time.Until(*rec.ExpiresAt)
		}
		l.store.Set(rec.Key, rec.Value, ttl)
	}
	return nil
}

// startReplicaMode launches (or relaunches) the replica-side client
// replicating from host:port.
func (h *ReplicationHub) startReplicaMode(host, port string) {
	h.mgr.SetRole(replication.RoleReplica)
	client := replication.NewClient(host+":"+port, h.myPort, &replicaApplier{dispatcher: h.dispatcher}, &snapshotLoader{store: h.store})
	h.mu.Lock()
	h.replicaClient = client
	h.mu.Unlock()
	go client.Run()
	log.Printf("[REPLICATION] replicating from %s:%s", host, port)
}

func (h *ReplicationHub) stopReplicaMode() {
	h.mgr.SetRole(replication.RolePrimary)
	h.mu.Lock()
	h.replicaClient = nil
	h.mu.Unlock()
}
