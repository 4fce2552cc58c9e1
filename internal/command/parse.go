package command

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse validates a decoded command's argument strings (args[0] is the
// command name) and produces a typed Command. Errors returned here are
// protocol-level: the session loop encodes them as a RESP error and
// moves on to the next command without closing the connection.
func Parse(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, fmt.Errorf("ERR empty command")
	}

	name := Name(strings.ToUpper(args[0]))
	c := Command{Name: name, Raw: args}
	rest := args[1:]

	switch name {
	case Ping:
		if len(rest) > 1 {
			return Command{}, arityErr("ping")
		}
		if len(rest) == 1 {
			c.Value = rest[0]
		}
		return c, nil

	case Echo:
		if len(rest) != 1 {
			return Command{}, arityErr("echo")
		}
		c.Value = rest[0]
		return c, nil

	case Get:
		if len(rest) != 1 {
			return Command{}, arityErr("get")
		}
		c.Key = rest[0]
		return c, nil

	case Set:
		if len(rest) < 2 {
			return Command{}, arityErr("set")
		}
		c.Key, c.Value = rest[0], rest[1]
		i := 2
		for i < len(rest) {
			switch strings.ToUpper(rest[i]) {
			case "PX":
				if i+1 >= len(rest) {
					return Command{}, syntaxErr()
				}
				ms, err := strconv.ParseInt(rest[i+1], 10, 64)
				if err != nil {
					return Command{}, fmt.Errorf("ERR value is not an integer or out of range")
				}
				c.PX, c.HasPX = ms, true
				i += 2
			default:
				return Command{}, syntaxErr()
			}
		}
		return c, nil

	case Incr, Type, LLen, XLen, ZCard:
		if len(rest) != 1 {
			return Command{}, arityErr(strings.ToLower(string(name)))
		}
		c.Key = rest[0]
		return c, nil

	case Keys:
		if len(rest) != 1 {
			return Command{}, arityErr("keys")
		}
		c.Value = rest[0]
		return c, nil

	case Del, Exists:
		if len(rest) < 1 {
			return Command{}, arityErr(strings.ToLower(string(name)))
		}
		c.Keys = rest
		return c, nil

	case Expire, Pexpire:
		if len(rest) != 2 {
			return Command{}, arityErr(strings.ToLower(string(name)))
		}
		n, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil {
			return Command{}, fmt.Errorf("ERR value is not an integer or out of range")
		}
		c.Key = rest[0]
		if name == Expire {
			c.Seconds = n
		} else {
			c.Millis = n
		}
		return c, nil

	case TTL, PTTL:
		if len(rest) != 1 {
			return Command{}, arityErr(strings.ToLower(string(name)))
		}
		c.Key = rest[0]
		return c, nil

	case ConfigGet:
		if len(rest) != 2 || strings.ToUpper(rest[0]) != "GET" {
			return Command{}, fmt.Errorf("ERR unsupported CONFIG subcommand")
		}
		c.Subcommand = "GET"
		c.Key = rest[1]
		return c, nil

	case Info:
		if len(rest) > 1 {
			return Command{}, arityErr("info")
		}
		if len(rest) == 1 {
			c.Section = rest[0]
		}
		return c, nil

	case RPush, LPush:
		if len(rest) < 2 {
			return Command{}, arityErr(strings.ToLower(string(name)))
		}
		c.Key = rest[0]
		c.Vals = rest[1:]
		return c, nil

	case LPop, RPop:
		if len(rest) < 1 || len(rest) > 2 {
			return Command{}, arityErr(strings.ToLower(string(name)))
		}
		c.Key = rest[0]
		if len(rest) == 2 {
			n, err := strconv.ParseInt(rest[1], 10, 64)
			if err != nil {
				return Command{}, fmt.Errorf("ERR value is not an integer or out of range")
			}
			c.Count, c.HasCount = n, true
		}
		return c, nil

	case LRange:
		if len(rest) != 3 {
			return Command{}, arityErr("lrange")
		}
		c.Key, c.Start, c.End = rest[0], rest[1], rest[2]
		return c, nil

	case LIndex:
		if len(rest) != 2 {
			return Command{}, arityErr("lindex")
		}
		c.Key, c.Start = rest[0], rest[1]
		return c, nil

	case LSet:
		if len(rest) != 3 {
			return Command{}, arityErr("lset")
		}
		c.Key, c.Start, c.Value = rest[0], rest[1], rest[2]
		return c, nil

	case BLPop:
		if len(rest) < 2 {
			return Command{}, arityErr("blpop")
		}
		timeoutMs, err := parseTimeout(rest[len(rest)-1])
		if err != nil {
			return Command{}, err
		}
		c.Keys = rest[:len(rest)-1]
		c.TimeoutMs = timeoutMs
		return c, nil

	case XAdd:
		if len(rest) < 4 || len(rest[2:])%2 != 0 {
			return Command{}, arityErr("xadd")
		}
		c.Key = rest[0]
		c.StreamID = rest[1]
		c.Fields = rest[2:]
		return c, nil

	case XRange:
		if len(rest) != 3 {
			return Command{}, arityErr("xrange")
		}
		c.Key, c.Start, c.End = rest[0], rest[1], rest[2]
		return c, nil

	case XRead:
		return parseXRead(rest)

	case ZAdd:
		if len(rest) != 3 {
			return Command{}, arityErr("zadd")
		}
		score, err := strconv.ParseFloat(rest[1], 64)
		if err != nil {
			return Command{}, fmt.Errorf("ERR value is not a valid float")
		}
		c.Key, c.Score, c.Member = rest[0], score, rest[2]
		return c, nil

	case ZRem, ZRank, ZScore:
		if len(rest) != 2 {
			return Command{}, arityErr(strings.ToLower(string(name)))
		}
		c.Key, c.Member = rest[0], rest[1]
		return c, nil

	case ZRange:
		if len(rest) != 3 {
			return Command{}, arityErr("zrange")
		}
		c.Key, c.Start, c.End = rest[0], rest[1], rest[2]
		return c, nil

	case Subscribe, Unsubscribe:
		if len(rest) != 1 {
			return Command{}, arityErr(strings.ToLower(string(name)))
		}
		c.Key = rest[0]
		return c, nil

	case Publish:
		if len(rest) != 2 {
			return Command{}, arityErr("publish")
		}
		c.Key, c.Value = rest[0], rest[1]
		return c, nil

	case Multi, Exec, Discard, Quit:
		if len(rest) != 0 {
			return Command{}, arityErr(strings.ToLower(string(name)))
		}
		return c, nil

	case ReplConf:
		if len(rest) < 1 {
			return Command{}, arityErr("replconf")
		}
		c.Vals = rest
		return c, nil

	case PSync:
		if len(rest) != 2 {
			return Command{}, arityErr("psync")
		}
		c.ReplID = rest[0]
		off, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil {
			return Command{}, fmt.Errorf("ERR invalid psync offset")
		}
		c.Offset = off
		return c, nil

	case Wait:
		if len(rest) != 2 {
			return Command{}, arityErr("wait")
		}
		n, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return Command{}, fmt.Errorf("ERR value is not an integer or out of range")
		}
		to, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil {
			return Command{}, fmt.Errorf("ERR value is not an integer or out of range")
		}
		c.Count, c.TimeoutMs = n, to
		return c, nil

	case ReplicaOf, SlaveOf:
		if len(rest) != 2 {
			return Command{}, arityErr(strings.ToLower(string(name)))
		}
		c.Host, c.Port = rest[0], rest[1]
		return c, nil

	case Eval, EvalSha:
		if len(rest) < 2 {
			return Command{}, arityErr(strings.ToLower(string(name)))
		}
		n, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil {
			return Command{}, fmt.Errorf("ERR value is not an integer or out of range")
		}
		c.Value = rest[0]
		c.Count = n
		if n < 0 || int64(len(rest)-2) < n {
			return Command{}, fmt.Errorf("ERR Number of keys can't be greater than number of args")
		}
		c.Keys = rest[2 : 2+n]
		c.Vals = rest[2+n:]
		return c, nil

	case Script:
		if len(rest) < 1 {
			return Command{}, arityErr("script")
		}
		c.Subcommand = strings.ToUpper(rest[0])
		c.Vals = rest[1:]
		return c, nil

	default:
		return Command{}, fmt.Errorf("ERR unknown command '%s'", args[0])
	}
}

func parseXRead(rest []string) (Command, error) {
	c := Command{Name: XRead}
	i := 0
	for i < len(rest) {
		switch strings.ToUpper(rest[i]) {
		case "COUNT":
			if i+1 >= len(rest) {
				return Command{}, syntaxErr()
			}
			n, err := strconv.ParseInt(rest[i+1], 10, 64)
			if err != nil {
				return Command{}, fmt.Errorf("ERR value is not an integer or out of range")
			}
			c.Count, c.HasCount = n, true
			i += 2
		case "BLOCK":
			if i+1 >= len(rest) {
				return Command{}, syntaxErr()
			}
			n, err := strconv.ParseInt(rest[i+1], 10, 64)
			if err != nil {
				return Command{}, fmt.Errorf("ERR timeout is not an integer or out of range")
			}
			c.BlockMs, c.HasBlock = n, true
			i += 2
		case "STREAMS":
			remaining := rest[i+1:]
			if len(remaining) == 0 || len(remaining)%2 != 0 {
				return Command{}, fmt.Errorf("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified")
			}
			half := len(remaining) / 2
			c.Keys = remaining[:half]
			c.Vals = remaining[half:]
			return c, nil
		default:
			return Command{}, syntaxErr()
		}
	}
	return Command{}, fmt.Errorf("ERR syntax error")
}

func parseTimeout(s string) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("ERR timeout is not a float or out of range")
	}
	return int64(f * 1000), nil
}

func arityErr(cmd string) error {
	return fmt.Errorf("ERR wrong number of arguments for '%s' command", cmd)
}

func syntaxErr() error {
	return fmt.Errorf("ERR syntax error")
}
