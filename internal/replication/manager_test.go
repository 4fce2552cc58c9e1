package replication

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerStartsAsPrimaryWithReplID(t *testing.T) {
	m := NewManager()
	assert.Equal(t, RolePrimary, m.Role())
	assert.Len(t, m.ReplID(), 40)
	assert.Equal(t, int64(0), m.Offset())
}

func TestPropagateAppendsLogAndFansOutToReplicas(t *testing.T) {
	m := NewManager()
	var buf bytes.Buffer
	m.Register("127.0.0.1:7001", &buf)

	offset := m.Propagate([]byte("*1\r\n$4\r\nPING\r\n"))
	assert.Equal(t, int64(14), offset)
	assert.Equal(t, int64(14), m.Offset())

	require.Eventually(t, func() bool {
		return buf.Len() == 14
	}, time.Second, 5*time.Millisecond)
}

func TestAckAndReplicaCount(t *testing.T) {
	m := NewManager()
	var buf bytes.Buffer
	m.Register("127.0.0.1:7001", &buf)
	m.Propagate([]byte("12345"))

	assert.Equal(t, 0, m.ReplicaCount(5))
	m.Ack("127.0.0.1:7001", 5)
	assert.Equal(t, 1, m.ReplicaCount(5))
	assert.Equal(t, 0, m.ReplicaCount(6))
}

func TestUnregisterRemovesReplica(t *testing.T) {
	m := NewManager()
	var buf bytes.Buffer
	m.Register("127.0.0.1:7001", &buf)
	assert.Equal(t, 1, m.ConnectedReplicas())
	m.Unregister("127.0.0.1:7001")
	assert.Equal(t, 0, m.ConnectedReplicas())
}

func TestWaitReturnsImmediatelyWhenAlreadyCaughtUp(t *testing.T) {
	m := NewManager()
	var buf bytes.Buffer
	m.Register("127.0.0.1:7001", &buf)
	m.Propagate([]byte("abc"))
	m.Ack("127.0.0.1:7001", m.Offset())

	start := time.Now()
	n := m.Wait(1, 1000, []byte("GETACK"))
	assert.Equal(t, 1, n)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestWaitTimesOutWhenReplicaNeverAcks(t *testing.T) {
	m := NewManager()
	var buf bytes.Buffer
	m.Register("127.0.0.1:7001", &buf)
	m.Propagate([]byte("abc"))

	n := m.Wait(1, 50, []byte("GETACK"))
	assert.Equal(t, 0, n)
}

func TestInfoReportsRoleAndOffset(t *testing.T) {
	m := NewManager()
	info := m.Info()
	assert.True(t, strings.Contains(info, "role:master"))
	assert.True(t, strings.Contains(info, "master_replid:"))

	m.SetRole(RoleReplica)
	assert.True(t, strings.Contains(m.Info(), "role:slave"))
}
