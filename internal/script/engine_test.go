package script

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	store map[string]string
}

func (f *fakeExecutor) ExecuteCommand(name string, args ...interface{}) (interface{}, error) {
	switch name {
	case "SET":
		f.store[args[0].(string)] = args[1].(string)
		return "OK", nil
	case "GET":
		v, ok := f.store[args[0].(string)]
		if !ok {
			return nil, nil
		}
		return v, nil
	default:
		return nil, fmt.Errorf("ERR unknown command '%s'", name)
	}
}

func TestEvalReturnsLiteral(t *testing.T) {
	e := NewEngine(&fakeExecutor{store: map[string]string{}})
	result, err := e.Eval("return 1", nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result)
}

func TestEvalCallsThroughExecutor(t *testing.T) {
	ex := &fakeExecutor{store: map[string]string{}}
	e := NewEngine(ex)
	_, err := e.Eval(`return redis.call("SET", KEYS[1], ARGV[1])`, []string{"k"}, []string{"v"})
	require.NoError(t, err)
	assert.Equal(t, "v", ex.store["k"])

	result, err := e.Eval(`return redis.call("GET", KEYS[1])`, []string{"k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "v", result)
}

func TestEvalShaRequiresPriorLoad(t *testing.T) {
	e := NewEngine(&fakeExecutor{store: map[string]string{}})
	_, err := e.EvalSHA("deadbeef", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOSCRIPT")
}

func TestLoadThenEvalSha(t *testing.T) {
	e := NewEngine(&fakeExecutor{store: map[string]string{}})
	hash := e.Load("return 42")
	result, err := e.EvalSHA(hash, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 42, result)

	exists := e.Exists([]string{hash, "nonexistent"})
	assert.Equal(t, []bool{true, false}, exists)

	e.Flush()
	exists = e.Exists([]string{hash})
	assert.Equal(t, []bool{false}, exists)
}
