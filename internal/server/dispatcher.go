package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"redisd/internal/command"
	"redisd/internal/resp"
	"redisd/internal/script"
	"redisd/internal/session"
	"redisd/internal/store"
)

// Dispatcher wires the typed command set to the keyspace, the
// replication manager, and the Lua engine. It implements
// session.Dispatcher and script.Executor so one object threads all
// three collaborators through to every connection;
// session.ReplicaPromoter is implemented by ReplicationHub.
type Dispatcher struct {
	store   *store.Store
	repl    *ReplicationHub
	cfg     *Config
	scripts *script.Engine
}

func newDispatcher(st *store.Store, repl *ReplicationHub, cfg *Config) *Dispatcher {
	d := &Dispatcher{store: st, repl: repl, cfg: cfg}
	d.scripts = script.NewEngine(d)
	repl.dispatcher = d
	return d
}

func (d *Dispatcher) scriptEngine() *script.Engine { return d.scripts }

// writeCommands is the set of command names that mutate the keyspace
// and must therefore be appended to the replication log and fanned out
// to connected replicas.
var writeCommands = map[command.Name]bool{
	command.Set: true, command.Incr: true, command.Del: true,
	command.Expire: true, command.Pexpire: true,
	command.RPush: true, command.LPush: true, command.LPop: true, command.RPop: true,
	command.LSet: true, command.BLPop: true,
	command.XAdd: true,
	command.ZAdd: true, command.ZRem: true,
	command.Eval: true, command.EvalSha: true,
}

// Execute runs cmd and reports whether it mutated the keyspace.
func (d *Dispatcher) Execute(cmd command.Command, sess *session.Session) (resp.Value, bool) {
	v, wasMutation := d.execute(cmd, sess)
	return v, writeCommands[cmd.Name] && wasMutation
}

func (d *Dispatcher) execute(cmd command.Command, sess *session.Session) (resp.Value, bool) {
	switch cmd.Name {
	case command.Ping:
		if cmd.Value != "" {
			return resp.Str(cmd.Value), false
		}
		return resp.Str("PONG"), false

	case command.Echo:
		return resp.BulkStr(cmd.Value), false

	case command.Get:
		v, ok, err := d.store.Get(cmd.Key)
		if err != nil {
			return resp.Err(err.Error()), false
		}
		if !ok {
			return resp.NullBulk(), false
		}
		return resp.BulkStr(v), false

	case command.Set:
		d.store.Set(cmd.Key, cmd.Value, time.Duration(cmd.PX)*time.Millisecond)
		return resp.Str("OK"), true

	case command.Incr:
		n, err := d.store.Incr(cmd.Key)
		if err != nil {
			return resp.Err(err.Error()), false
		}
		return resp.Int(n), true

	case command.Type:
		return resp.Str(d.store.Type(cmd.Key)), false

	case command.Keys:
		keys := d.store.Keys(cmd.Value)
		vs := make([]resp.Value, len(keys))
		for i, k := range keys {
			vs[i] = resp.BulkStr(k)
		}
		return resp.Arr(vs...), false

	case command.Del:
		n := d.store.Del(cmd.Keys...)
		return resp.Int(n), n > 0

	case command.Exists:
		return resp.Int(d.store.Exists(cmd.Keys...)), false

	case command.Expire:
		ok := d.store.Expire(cmd.Key, time.Duration(cmd.Seconds)*time.Second)
		return resp.Int(boolToInt(ok)), ok

	case command.Pexpire:
		ok := d.store.Expire(cmd.Key, time.Duration(cmd.Millis)*time.Millisecond)
		return resp.Int(boolToInt(ok)), ok

	case command.TTL:
		return resp.Int(d.store.TTL(cmd.Key)), false

	case command.PTTL:
		return resp.Int(d.store.PTTL(cmd.Key)), false

	case command.ConfigGet:
		return d.configGet(cmd.Key), false

	case command.Info:
		return resp.BulkStr(d.assembleInfo()), false

	case command.RPush:
		n, err := d.store.RPush(cmd.Key, cmd.Vals...)
		if err != nil {
			return resp.Err(err.Error()), false
		}
		return resp.Int(n), true

	case command.LPush:
		n, err := d.store.LPush(cmd.Key, cmd.Vals...)
		if err != nil {
			return resp.Err(err.Error()), false
		}
		return resp.Int(n), true

	case command.LPop:
		return d.pop(cmd, true)

	case command.RPop:
		return d.pop(cmd, false)

	case command.LLen:
		n, err := d.store.LLen(cmd.Key)
		if err != nil {
			return resp.Err(err.Error()), false
		}
		return resp.Int(n), false

	case command.LRange:
		return d.lrange(cmd)

	case command.LIndex:
		return d.lindex(cmd)

	case command.LSet:
		idx, err := parseIndex(cmd.Start)
		if err != nil {
			return resp.Err(err.Error()), false
		}
		if err := d.store.LSet(cmd.Key, idx, cmd.Value); err != nil {
			return resp.Err(err.Error()), false
		}
		return resp.Str("OK"), true

	case command.BLPop:
		return d.blpop(cmd)

	case command.XAdd:
		id, err := d.store.XAdd(cmd.Key, cmd.StreamID, cmd.Fields)
		if err != nil {
			return resp.Err(err.Error()), false
		}
		return resp.BulkStr(id.String()), true

	case command.XRange:
		return d.xrange(cmd)

	case command.XRead:
		return d.xread(cmd)

	case command.XLen:
		n, err := d.store.XLen(cmd.Key)
		if err != nil {
			return resp.Err(err.Error()), false
		}
		return resp.Int(n), false

	case command.ZAdd:
		isNew, err := d.store.ZAdd(cmd.Key, cmd.Score, cmd.Member)
		if err != nil {
			return resp.Err(err.Error()), false
		}
		return resp.Int(boolToInt(isNew)), true

	case command.ZRem:
		removed, err := d.store.ZRem(cmd.Key, cmd.Member)
		if err != nil {
			return resp.Err(err.Error()), false
		}
		return resp.Int(boolToInt(removed)), removed

	case command.ZRank:
		rank, ok, err := d.store.ZRank(cmd.Key, cmd.Member)
		if err != nil {
			return resp.Err(err.Error()), false
		}
		if !ok {
			return resp.NullBulk(), false
		}
		return resp.Int(rank), false

	case command.ZScore:
		score, ok, err := d.store.ZScore(cmd.Key, cmd.Member)
		if err != nil {
			return resp.Err(err.Error()), false
		}
		if !ok {
			return resp.NullBulk(), false
		}
		return resp.BulkStr(strconv.FormatFloat(score, 'g', -1, 64)), false

	case command.ZCard:
		n, err := d.store.ZCard(cmd.Key)
		if err != nil {
			return resp.Err(err.Error()), false
		}
		return resp.Int(n), false

	case command.ZRange:
		return d.zrange(cmd)

	case command.Publish:
		n := d.store.Publish(cmd.Key, cmd.Value)
		return resp.Int(n), false

	case command.ReplConf:
		return d.replconf(cmd, sess)

	case command.Wait:
		count := d.repl.Wait(int(cmd.Count), cmd.TimeoutMs)
		return resp.Int(int64(count)), false

	case command.ReplicaOf, command.SlaveOf:
		return d.replicaOf(cmd)

	case command.Eval:
		return d.eval(cmd.Value, cmd.Keys, cmd.Vals)

	case command.EvalSha:
		return d.evalSha(cmd.Value, cmd.Keys, cmd.Vals)

	case command.Script:
		return d.script(cmd), false

	default:
		return resp.Errf("ERR unknown command '%s'", cmd.Name), false
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func parseIndex(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ERR value is not an integer or out of range")
	}
	return n, nil
}

func (d *Dispatcher) pop(cmd command.Command, head bool) (resp.Value, bool) {
	count := cmd.Count
	if !cmd.HasCount {
		count = 1
	}
	var elems []string
	var ok bool
	var err error
	if head {
		elems, ok, err = d.store.LPop(cmd.Key, count)
	} else {
		elems, ok, err = d.store.RPop(cmd.Key, count)
	}
	if err != nil {
		return resp.Err(err.Error()), false
	}
	if !ok {
		if cmd.HasCount {
			return resp.NullArray(), false
		}
		return resp.NullBulk(), false
	}
	if !cmd.HasCount {
		return resp.BulkStr(elems[0]), true
	}
	vs := make([]resp.Value, len(elems))
	for i, e := range elems {
		vs[i] = resp.BulkStr(e)
	}
	return resp.Arr(vs...), true
}

func (d *Dispatcher) lrange(cmd command.Command) (resp.Value, bool) {
	start, err := parseIndex(cmd.Start)
	if err != nil {
		return resp.Err(err.Error()), false
	}
	end, err := parseIndex(cmd.End)
	if err != nil {
		return resp.Err(err.Error()), false
	}
	elems, err := d.store.LRange(cmd.Key, start, end)
	if err != nil {
		return resp.Err(err.Error()), false
	}
	vs := make([]resp.Value, len(elems))
	for i, e := range elems {
		vs[i] = resp.BulkStr(e)
	}
	return resp.Arr(vs...), false
}

func (d *Dispatcher) lindex(cmd command.Command) (resp.Value, bool) {
	idx, err := parseIndex(cmd.Start)
	if err != nil {
		return resp.Err(err.Error()), false
	}
	v, ok, err := d.store.LIndex(cmd.Key, idx)
	if err != nil {
		return resp.Err(err.Error()), false
	}
	if !ok {
		return resp.NullBulk(), false
	}
	return resp.BulkStr(v), false
}

func (d *Dispatcher) blpop(cmd command.Command) (resp.Value, bool) {
	var deadline time.Time
	if cmd.TimeoutMs > 0 {
		deadline = time.Now().Add(time.Duration(cmd.TimeoutMs) * time.Millisecond)
	}
	for {
		// Arm before checking: a push's broadcast can only race this
		// armed channel from the "not yet fired" side, never land in a
		// gap where the check below also misses it. See ArmWaiters.
		chans := d.store.ArmWaiters(cmd.Keys)
		for _, key := range cmd.Keys {
			elems, ok, err := d.store.LPop(key, 1)
			if err != nil {
				return resp.Err(err.Error()), false
			}
			if ok {
				return resp.Arr(resp.BulkStr(key), resp.BulkStr(elems[0])), true
			}
		}
		if !d.store.Wait(chans, deadline) {
			return resp.NullArray(), false
		}
	}
}

func (d *Dispatcher) xrange(cmd command.Command) (resp.Value, bool) {
	entries, err := d.store.XRange(cmd.Key, cmd.Start, cmd.End)
	if err != nil {
		return resp.Err(err.Error()), false
	}
	vs := make([]resp.Value, len(entries))
	for i, e := range entries {
		vs[i] = encodeStreamEntry(e)
	}
	return resp.Arr(vs...), false
}

func encodeStreamEntry(e store.StreamEntry) resp.Value {
	fields := make([]resp.Value, len(e.Fields))
	for i, f := range e.Fields {
		fields[i] = resp.BulkStr(f)
	}
	return resp.Arr(resp.BulkStr(e.ID.String()), resp.Arr(fields...))
}

func (d *Dispatcher) xread(cmd command.Command) (resp.Value, bool) {
	after := make([]store.StreamID, len(cmd.Keys))
	for i, idSpec := range cmd.Vals {
		if idSpec == "$" {
			after[i] = d.store.TopID(cmd.Keys[i])
			continue
		}
		id, err := parseExplicitStreamID(idSpec)
		if err != nil {
			return resp.Err(err.Error()), false
		}
		after[i] = id
	}

	var deadline time.Time
	if cmd.HasBlock && cmd.BlockMs > 0 {
		deadline = time.Now().Add(time.Duration(cmd.BlockMs) * time.Millisecond)
	}

	for {
		// Arm before checking, same reasoning as blpop: grabbing the
		// channel handle after a failed check leaves a window where an
		// XADD's broadcast can fire, and be missed, before the channel
		// is in hand.
		chans := d.store.ArmWaiters(cmd.Keys)
		result, err := d.store.XReadAfter(cmd.Keys, after, cmd.Count)
		if err != nil {
			return resp.Err(err.Error()), false
		}
		if len(result) > 0 {
			return encodeXReadResult(cmd.Keys, result), false
		}
		if !cmd.HasBlock {
			return resp.NullArray(), false
		}
		if !d.store.Wait(chans, deadline) {
			return resp.NullArray(), false
		}
	}
}

func encodeXReadResult(keys []string, result map[string][]store.StreamEntry) resp.Value {
	var streams []resp.Value
	for _, key := range keys {
		entries, ok := result[key]
		if !ok {
			continue
		}
		vs := make([]resp.Value, len(entries))
		for i, e := range entries {
			vs[i] = encodeStreamEntry(e)
		}
		streams = append(streams, resp.Arr(resp.BulkStr(key), resp.Arr(vs...)))
	}
	return resp.Arr(streams...)
}

func parseExplicitStreamID(spec string) (store.StreamID, error) {
	parts := strings.SplitN(spec, "-", 2)
	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return store.StreamID{}, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
	}
	seq := int64(0)
	if len(parts) == 2 {
		seq, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return store.StreamID{}, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
		}
	}
	return store.StreamID{Ms: ms, Seq: seq}, nil
}

func (d *Dispatcher) zrange(cmd command.Command) (resp.Value, bool) {
	start, err := parseIndex(cmd.Start)
	if err != nil {
		return resp.Err(err.Error()), false
	}
	end, err := parseIndex(cmd.End)
	if err != nil {
		return resp.Err(err.Error()), false
	}
	members, err := d.store.ZRange(cmd.Key, start, end)
	if err != nil {
		return resp.Err(err.Error()), false
	}
	vs := make([]resp.Value, len(members))
	for i, m := range members {
		vs[i] = resp.BulkStr(m)
	}
	return resp.Arr(vs...), false
}

func (d *Dispatcher) configGet(key string) resp.Value {
	switch strings.ToLower(key) {
	case "dir":
		return resp.Arr(resp.BulkStr("dir"), resp.BulkStr(d.cfg.Dir))
	case "dbfilename":
		return resp.Arr(resp.BulkStr("dbfilename"), resp.BulkStr(d.cfg.DBFilename))
	default:
		return resp.Arr()
	}
}

func (d *Dispatcher) assembleInfo() string {
	role := "master"
	if d.cfg.IsReplica() {
		role = "slave"
	}
	return fmt.Sprintf("# Replication\r\nrole:%s\r\n%s", role, d.repl.InfoSection())
}
