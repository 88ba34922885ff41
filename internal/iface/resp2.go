package iface

import (
	"strings"

	"github.com/tidwall/redcon"
)

type RespRegister interface {
	AddCommandHandler(command string, h RespCommandHandler)
}

type RespResult func(conn redcon.Conn) error

// RespArg is one command argument. args[0] is the command name.
type RespArg []byte

func (a RespArg) String() string {
	return string(a)
}

type RespCommandHandler func(args []RespArg) (RespResult, error)

// RespArity wraps h with an argument count check. n counts the command name.
func RespArity(n int, usage string, h RespCommandHandler) RespCommandHandler {
	return func(args []RespArg) (RespResult, error) {
		if len(args) != n {
			return RespErrorResult("wrong number of arguments, usage: " + usage), nil
		}
		return h(args)
	}
}

func RespErrorResult(msg string) RespResult {
	return func(conn redcon.Conn) error {
		conn.WriteError(strings.ReplaceAll(msg, "\r\n", " "))
		return nil
	}
}

func RespNilResult() RespResult {
	return func(conn redcon.Conn) error {
		conn.WriteNull()
		return nil
	}
}

func RespStatusResult(msg string) RespResult {
	return func(conn redcon.Conn) error {
		conn.WriteString(msg)
		return nil
	}
}

func RespIntResult(i int) RespResult {
	return func(conn redcon.Conn) error {
		conn.WriteInt(i)
		return nil
	}
}

// RespBulkStringsResult writes an array of bulk strings.
func RespBulkStringsResult(vals ...string) RespResult {
	return func(conn redcon.Conn) error {
		conn.WriteArray(len(vals))
		for _, v := range vals {
			conn.WriteBulkString(v)
		}
		return nil
	}
}
