package server

import (
	"fmt"

	"redisd/internal/command"
	"redisd/internal/resp"
	"redisd/internal/session"
)

// ExecuteCommand implements script.Executor: a Lua redis.call/pcall
// reaches back into the same typed dispatch every client command uses.
// Blocking commands (BLPOP, XREAD BLOCK) are not meaningful from
// inside a script and are rejected, matching the teacher's own
// script-safety stance of disallowing commands with no single-shot
// reply.
func (d *Dispatcher) ExecuteCommand(name string, args ...interface{}) (interface{}, error) {
	strArgs := make([]string, len(args)+1)
	strArgs[0] = name
	for i, a := range args {
		strArgs[i+1] = fmt.Sprintf("%v", a)
	}
	cmd, err := command.Parse(strArgs)
	if err != nil {
		return nil, err
	}
	if cmd.Name == command.BLPop || cmd.Name == command.XRead {
		return nil, fmt.Errorf("ERR this command is not allowed from scripts")
	}
	v, _ := d.execute(cmd, nil)
	return respValueToGo(v)
}

func respValueToGo(v resp.Value) (interface{}, error) {
	switch v.Kind {
	case resp.Error:
		return nil, fmt.Errorf("%s", v.Str)
	case resp.SimpleString:
		return v.Str, nil
	case resp.Integer:
		return v.Int, nil
	case resp.BulkString:
		if v.Null {
			return nil, nil
		}
		return string(v.Bulk), nil
	case resp.Array:
		if v.Null {
			return nil, nil
		}
		out := make([]interface{}, len(v.Array))
		for i, e := range v.Array {
			ev, err := respValueToGo(e)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	default:
		return nil, nil
	}
}

func goToRespValue(v interface{}) resp.Value {
	switch val := v.(type) {
	case nil:
		return resp.NullBulk()
	case bool:
		if val {
			return resp.Int(1)
		}
		return resp.NullBulk()
	case int64:
		return resp.Int(val)
	case string:
		return resp.BulkStr(val)
	case map[string]interface{}:
		if ok, present := val["ok"]; present {
			return resp.Str(fmt.Sprintf("%v", ok))
		}
		if errv, present := val["err"]; present {
			return resp.Err(fmt.Sprintf("%v", errv))
		}
		return resp.NullBulk()
	case []interface{}:
		vs := make([]resp.Value, len(val))
		for i, item := range val {
			vs[i] = goToRespValue(item)
		}
		return resp.Arr(vs...)
	default:
		return resp.NullBulk()
	}
}

func (d *Dispatcher) eval(source string, keys, args []string) (resp.Value, bool) {
	result, err := d.scriptEngine().Eval(source, keys, args)
	if err != nil {
		return resp.Err(err.Error()), false
	}
	return goToRespValue(result), true
}

func (d *Dispatcher) evalSha(sha string, keys, args []string) (resp.Value, bool) {
	result, err := d.scriptEngine().EvalSHA(sha, keys, args)
	if err != nil {
		return resp.Err(err.Error()), false
	}
	return goToRespValue(result), true
}

func (d *Dispatcher) script(cmd command.Command) resp.Value {
	switch cmd.Subcommand {
	case "LOAD":
		if len(cmd.Vals) != 1 {
			return resp.Err("ERR wrong number of arguments for 'script|load' command")
		}
		return resp.BulkStr(d.scriptEngine().Load(cmd.Vals[0]))
	case "EXISTS":
		exists := d.scriptEngine().Exists(cmd.Vals)
		vs := make([]resp.Value, len(exists))
		for i, e := range exists {
			vs[i] = resp.Int(boolToInt(e))
		}
		return resp.Arr(vs...)
	case "FLUSH":
		d.scriptEngine().Flush()
		return resp.Str("OK")
	default:
		return resp.Errf("ERR Unknown SCRIPT subcommand or wrong number of arguments for '%s'", cmd.Subcommand)
	}
}

var _ session.Dispatcher = (*Dispatcher)(nil)
