// Package session implements the per-connection state machine: Normal,
// Multi (transaction queuing), and Subscribed modes, response ordering,
// and the PSYNC handoff that turns a connection into a replica sink.
package session

import (
	"bufio"
	"net"
	"strings"
	"sync"

	"redisd/internal/command"
	"redisd/internal/resp"
)

type Mode int

const (
	Normal Mode = iota
	Multi
	Subscribed
)

// Dispatcher executes one already-parsed command and reports whether
// it was a mutating command (so the session knows whether to log and
// replicate the raw bytes that produced it).
type Dispatcher interface {
	Execute(cmd command.Command, sess *Session) (resp.Value, bool)
}

// ReplicaPromoter is notified when a connection issues PSYNC, handing
// over the raw net.Conn so it can be registered as a replica sink and
// the normal session loop can exit.
type ReplicaPromoter interface {
	PromoteToReplica(conn net.Conn, sess *Session, replID string, offset int64)
}

type queuedCommand struct {
	cmd command.Command
	raw []byte
}

// Session owns one accepted connection's read/write loop.
type Session struct {
	conn net.Conn
	r    *resp.Reader
	wmu  sync.Mutex
	w    *bufio.Writer

	dispatcher Dispatcher
	promoter   ReplicaPromoter

	mode   Mode
	queue  []queuedCommand
	subbed map[string]bool
	id     string

	onWrite     WriteHook
	subscribeFn subscribeFunc
	unsubscribeFn unsubscribeFunc
}

func New(conn net.Conn, d Dispatcher, p ReplicaPromoter) *Session {
	return &Session{
		conn:       conn,
		r:          resp.NewReader(conn),
		w:          bufio.NewWriter(conn),
		dispatcher: d,
		promoter:   p,
		mode:       Normal,
		subbed:     make(map[string]bool),
		id:         conn.RemoteAddr().String(),
	}
}

// Deliver implements store.Subscriber: it frames and writes a pub/sub
// message directly, independent of the read loop, so a publish from
// another connection's goroutine can land concurrently.
func (s *Session) Deliver(channel, message string) {
	s.writeValue(resp.Arr(resp.BulkStr("message"), resp.BulkStr(channel), resp.BulkStr(message)))
}

// ID identifies this session for subscriber bookkeeping; it is the
// remote address the connection was accepted from.
func (s *Session) ID() string { return s.id }

func (s *Session) writeValue(v resp.Value) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.w.Write(resp.Encode(v))
	s.w.Flush()
}

// Run is the per-connection loop: read one frame, dispatch by mode,
// write the reply, repeat. It returns when the connection closes or
// is handed off to replica mode.
func (s *Session) Run() {
	defer s.conn.Close()
	for {
		v, raw, err := s.r.ReadValue()
		if err != nil {
			return
		}
		args, err := v.BulkStrings()
		if err != nil {
			s.writeValue(resp.Errf("ERR Protocol error: %v", err))
			return
		}
		if len(args) == 0 {
			continue
		}

		cmd, perr := command.Parse(args)
		if perr != nil {
			s.writeValue(resp.Err(perr.Error()))
			continue
		}

		if s.mode == Subscribed {
			if !s.handleSubscribedMode(cmd) {
				return
			}
			continue
		}

		switch cmd.Name {
		case command.Multi:
			if s.mode == Multi {
				s.writeValue(resp.Err("ERR MULTI calls can not be nested"))
				continue
			}
			s.mode = Multi
			s.queue = nil
			s.writeValue(resp.Str("OK"))
			continue

		case command.Discard:
			if s.mode != Multi {
				s.writeValue(resp.Err("ERR DISCARD without MULTI"))
				continue
			}
			s.mode = Normal
			s.queue = nil
			s.writeValue(resp.Str("OK"))
			continue

		case command.Exec:
			if s.mode != Multi {
				s.writeValue(resp.Err("ERR EXEC without MULTI"))
				continue
			}
			s.runExec()
			continue
		}

		if s.mode == Multi {
			s.queue = append(s.queue, queuedCommand{cmd: cmd, raw: raw})
			s.writeValue(resp.Str("QUEUED"))
			continue
		}

		switch cmd.Name {
		case command.Ping:
			if cmd.Value != "" {
				s.writeValue(resp.Str(cmd.Value))
			} else {
				s.writeValue(resp.Str("PONG"))
			}
			continue
		case command.Subscribe:
			s.handleSubscribe(cmd)
			continue
		case command.PSync:
			s.promoter.PromoteToReplica(s.conn, s, cmd.ReplID, cmd.Offset)
			return
		case command.Quit:
			s.writeValue(resp.Str("OK"))
			return
		}

		reply, isWrite := s.dispatcher.Execute(cmd, s)
		s.writeValue(reply)
		if isWrite {
			s.afterWrite(raw)
		}
	}
}

// afterWrite is the hook a Dispatcher-wiring server implementation
// uses to append raw to the replication log and fan it out; left
// unset session never touches replication directly, wired via
// SetWriteHook.
func (s *Session) afterWrite(raw []byte) {
	if s.onWrite != nil {
		s.onWrite(raw)
	}
}

// onWrite, when set, is invoked with the raw frame bytes of every
// mutating command this session executes outside a script.
type WriteHook func(raw []byte)

func (s *Session) SetWriteHook(h WriteHook) { s.onWrite = h }

func (s *Session) runExec() {
	s.mode = Normal
	queued := s.queue
	s.queue = nil

	replies := make([]resp.Value, len(queued))
	for i, qc := range queued {
		reply, isWrite := s.dispatcher.Execute(qc.cmd, s)
		replies[i] = reply
		if isWrite {
			s.afterWrite(qc.raw)
		}
	}
	s.writeValue(resp.Arr(replies...))
}

func (s *Session) handleSubscribe(cmd command.Command) {
	count, err := s.subscribe(cmd.Key)
	if err != nil {
		s.writeValue(resp.Err(err.Error()))
		return
	}
	s.mode = Subscribed
	s.subbed[cmd.Key] = true
	s.writeValue(resp.Arr(resp.BulkStr("subscribe"), resp.BulkStr(cmd.Key), resp.Int(int64(count))))
}

// subscribe is supplied indirectly: Session does not import store
// directly to avoid a cycle with the server package that wires both
// together, so the server sets this function at construction time.
func (s *Session) subscribe(channel string) (int, error) {
	return s.subscribeFn(channel, s)
}

func (s *Session) unsubscribe(channel string) int {
	return s.unsubscribeFn(channel, s.id)
}

type subscribeFunc func(channel string, sub *Session) (int, error)
type unsubscribeFunc func(channel, id string) int

func (s *Session) SetPubSubHooks(sub subscribeFunc, unsub unsubscribeFunc) {
	s.subscribeFn = sub
	s.unsubscribeFn = unsub
}

func (s *Session) handleSubscribedMode(cmd command.Command) bool {
	switch cmd.Name {
	case command.Subscribe:
		count, err := s.subscribe(cmd.Key)
		if err != nil {
			s.writeValue(resp.Err(err.Error()))
			return true
		}
		s.subbed[cmd.Key] = true
		s.writeValue(resp.Arr(resp.BulkStr("subscribe"), resp.BulkStr(cmd.Key), resp.Int(int64(count))))
		return true

	case command.Unsubscribe:
		remaining := s.unsubscribe(cmd.Key)
		delete(s.subbed, cmd.Key)
		s.writeValue(resp.Arr(resp.BulkStr("unsubscribe"), resp.BulkStr(cmd.Key), resp.Int(int64(remaining))))
		return true

	case command.Ping:
		s.writeValue(resp.Arr(resp.BulkStr("pong"), resp.BulkStr("")))
		return true

	case command.Quit:
		s.writeValue(resp.Str("OK"))
		return false

	default:
		s.writeValue(resp.Errf("ERR Can't execute '%s': only (P|S)SUBSCRIBE / (P|S)UNSUBSCRIBE / PING / QUIT are allowed in this context",
			strings.ToLower(string(cmd.Name))))
		return true
	}
}
