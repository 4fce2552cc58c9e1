package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSetWithPX(t *testing.T) {
	c, err := Parse([]string{"SET", "foo", "bar", "PX", "100"})
	require.NoError(t, err)
	assert.Equal(t, Set, c.Name)
	assert.Equal(t, "foo", c.Key)
	assert.Equal(t, "bar", c.Value)
	assert.True(t, c.HasPX)
	assert.EqualValues(t, 100, c.PX)
}

func TestParseCaseInsensitiveCommandName(t *testing.T) {
	c, err := Parse([]string{"get", "foo"})
	require.NoError(t, err)
	assert.Equal(t, Get, c.Name)
	assert.Equal(t, "foo", c.Key)
}

func TestParseArityErrors(t *testing.T) {
	_, err := Parse([]string{"GET"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong number of arguments")
}

func TestParseBLPopSeparatesKeysFromTimeout(t *testing.T) {
	c, err := Parse([]string{"BLPOP", "a", "b", "1.5"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, c.Keys)
	assert.EqualValues(t, 1500, c.TimeoutMs)
}

func TestParseXReadStreamsSplitsKeysAndIDs(t *testing.T) {
	c, err := Parse([]string{"XREAD", "COUNT", "2", "BLOCK", "0", "STREAMS", "s1", "s2", "0-0", "$"})
	require.NoError(t, err)
	require.True(t, c.HasCount)
	require.True(t, c.HasBlock)
	assert.Equal(t, []string{"s1", "s2"}, c.Keys)
	assert.Equal(t, []string{"0-0", "$"}, c.Vals)
}

func TestParseXReadUnbalancedStreams(t *testing.T) {
	_, err := Parse([]string{"XREAD", "STREAMS", "s1", "s2", "0-0"})
	require.Error(t, err)
}

func TestParseEvalSplitsKeysAndArgs(t *testing.T) {
	c, err := Parse([]string{"EVAL", "return 1", "2", "k1", "k2", "a1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, c.Keys)
	assert.Equal(t, []string{"a1"}, c.Vals)
}

func TestParseUnknownCommand(t *testing.T) {
	_, err := Parse([]string{"NOTACOMMAND"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestParseZAddRejectsNonFloatScore(t *testing.T) {
	_, err := Parse([]string{"ZADD", "z", "notafloat", "m"})
	require.Error(t, err)
}
