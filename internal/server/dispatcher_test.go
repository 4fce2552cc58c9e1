package server

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redisd/internal/command"
	"redisd/internal/resp"
	"redisd/internal/store"
)

func newTestDispatcher() *Dispatcher {
	st := store.New()
	cfg := DefaultConfig()
	repl := newReplicationHub(st, strconv.Itoa(cfg.Port))
	return newDispatcher(st, repl, cfg)
}

func exec(t *testing.T, d *Dispatcher, args ...string) (resp.Value, bool) {
	t.Helper()
	cmd, err := command.Parse(args)
	require.NoError(t, err)
	return d.Execute(cmd, nil)
}

func TestSetGetRoundTrip(t *testing.T) {
	d := newTestDispatcher()
	reply, isWrite := exec(t, d, "SET", "k", "v")
	assert.True(t, isWrite)
	assert.Equal(t, "OK", reply.Str)

	reply, isWrite = exec(t, d, "GET", "k")
	assert.False(t, isWrite)
	assert.Equal(t, "v", string(reply.Bulk))
}

func TestIncrOnMissingKeyStartsAtOne(t *testing.T) {
	d := newTestDispatcher()
	reply, isWrite := exec(t, d, "INCR", "counter")
	assert.True(t, isWrite)
	assert.Equal(t, int64(1), reply.Int)
}

func TestDelReportsCountAndMarksWriteOnlyWhenSomethingRemoved(t *testing.T) {
	d := newTestDispatcher()
	_, isWrite := exec(t, d, "DEL", "missing")
	assert.False(t, isWrite)

	exec(t, d, "SET", "k", "v")
	reply, isWrite := exec(t, d, "DEL", "k")
	assert.True(t, isWrite)
	assert.Equal(t, int64(1), reply.Int)
}

func TestListPushAndRange(t *testing.T) {
	d := newTestDispatcher()
	exec(t, d, "RPUSH", "l", "a", "b", "c")
	reply, _ := exec(t, d, "LRANGE", "l", "0", "-1")
	require.Equal(t, resp.Array, reply.Kind)
	require.Len(t, reply.Array, 3)
	assert.Equal(t, "a", string(reply.Array[0].Bulk))
	assert.Equal(t, "c", string(reply.Array[2].Bulk))
}

func TestLPopWithoutCountReturnsNullBulkWhenEmpty(t *testing.T) {
	d := newTestDispatcher()
	reply, isWrite := exec(t, d, "LPOP", "missing")
	assert.False(t, isWrite)
	assert.True(t, reply.Null)
	assert.Equal(t, resp.BulkString, reply.Kind)
}

func TestLPopWithCountReturnsNullArrayWhenEmpty(t *testing.T) {
	d := newTestDispatcher()
	reply, _ := exec(t, d, "LPOP", "missing", "2")
	assert.True(t, reply.IsNullArray())
}

func TestZAddThenZRangeOrdersByScore(t *testing.T) {
	d := newTestDispatcher()
	exec(t, d, "ZADD", "z", "3", "c")
	exec(t, d, "ZADD", "z", "1", "a")
	exec(t, d, "ZADD", "z", "2", "b")

	reply, _ := exec(t, d, "ZRANGE", "z", "0", "-1")
	require.Len(t, reply.Array, 3)
	assert.Equal(t, "a", string(reply.Array[0].Bulk))
	assert.Equal(t, "b", string(reply.Array[1].Bulk))
	assert.Equal(t, "c", string(reply.Array[2].Bulk))
}

func TestXAddAndXRange(t *testing.T) {
	d := newTestDispatcher()
	reply, isWrite := exec(t, d, "XADD", "stream", "*", "field", "value")
	assert.True(t, isWrite)
	assert.NotEmpty(t, string(reply.Bulk))

	rangeReply, _ := exec(t, d, "XRANGE", "stream", "-", "+")
	require.Len(t, rangeReply.Array, 1)
}

func TestConfigGetKnownAndUnknownKeys(t *testing.T) {
	d := newTestDispatcher()
	reply, _ := exec(t, d, "CONFIG", "GET", "dir")
	require.Len(t, reply.Array, 2)
	assert.Equal(t, "dir", string(reply.Array[0].Bulk))

	unknown, _ := exec(t, d, "CONFIG", "GET", "maxmemory")
	assert.Equal(t, resp.Array, unknown.Kind)
	assert.Empty(t, unknown.Array)
}

func TestEvalReturningLiteralValue(t *testing.T) {
	d := newTestDispatcher()
	reply, isWrite := exec(t, d, "EVAL", "return 'hello'", "0")
	assert.True(t, isWrite)
	assert.Equal(t, "hello", string(reply.Bulk))
}

func TestEvalCallsThroughToStore(t *testing.T) {
	d := newTestDispatcher()
	exec(t, d, "EVAL", "return redis.call('SET', KEYS[1], ARGV[1])", "1", "k", "v")

	reply, _ := exec(t, d, "GET", "k")
	assert.Equal(t, "v", string(reply.Bulk))
}

func TestUnknownCommandReturnsError(t *testing.T) {
	d := newTestDispatcher()
	reply, isWrite := exec(t, d, "NOTACOMMAND")
	assert.False(t, isWrite)
	assert.Equal(t, resp.Error, reply.Kind)
}

func TestReplicaOfNoOneRestoresPrimaryRole(t *testing.T) {
	d := newTestDispatcher()
	exec(t, d, "REPLICAOF", "NO", "ONE")
	assert.False(t, d.cfg.IsReplica())
}
