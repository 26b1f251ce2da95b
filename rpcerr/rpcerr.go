// Package rpcerr defines the closed error taxonomy shared by the RPC client
// and server. The code set is a stable wire ABI: new kinds require a version
// bump, not an addition here.
package rpcerr

import (
	"encoding/json"
	"fmt"
)

// Code is one of the fixed numeric error kinds carried in a response
// envelope's error.code field.
type Code int

const (
	ParseError     Code = 1000
	InvalidRequest Code = 1001
	MethodNotFound Code = 1002
	Timeout        Code = 1003
	ConnectionLost Code = 1004
	InternalError  Code = 1005
)

func (c Code) String() string {
	switch c {
	case ParseError:
		return "parse_error"
	case InvalidRequest:
		return "invalid_request"
	case MethodNotFound:
		return "method_not_found"
	case Timeout:
		return "timeout"
	case ConnectionLost:
		return "connection_lost"
	case InternalError:
		return "internal_error"
	default:
		return "unknown_error"
	}
}

// Error is a surfaced RPC failure: a numeric code plus a short message.
// It implements the standard error interface so it composes with fmt.Errorf
// and errors.As/errors.Is at call sites.
type Error struct {
	Code    Code
	Message string
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d (%s): %s", e.Code, e.Code, e.Message)
}

// Result is the Go-side mirror of a response envelope: either OK with a raw
// JSON payload, or a failure carrying an *Error.
type Result struct {
	OK   bool
	Data json.RawMessage
	Err  *Error
}

// Ok builds a successful result. A nil data defaults to an empty object.
func Ok(data json.RawMessage) Result {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	return Result{OK: true, Data: data}
}

// Err builds a failed result carrying the given code and message.
func Err(code Code, message string) Result {
	return Result{OK: false, Err: New(code, message)}
}

// AsError converts a failed Result into an error, or nil if the result is OK.
func (r Result) AsError() error {
	if r.OK {
		return nil
	}
	if r.Err == nil {
		return New(InternalError, "error")
	}
	return r.Err
}
