package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Status discriminates the outcome of a call.
type Status int

const (
	// StatusEmpty means the call succeeded but carried no usable result:
	// absent, null, false, 0, an empty string, array or object.
	StatusEmpty Status = iota
	// StatusOK means the call returned a usable result.
	StatusOK
	// StatusError means the call failed: transport error or an RPC error object.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Response is the result of a call.
type Response struct {
	Status Status
	Result json.RawMessage
	Err    error
}

// Ok reports whether the response carries a usable result.
func (r Response) Ok() bool {
	return r.Status == StatusOK
}

// NewResult classifies a raw JSON result.
func NewResult(raw json.RawMessage) Response {
	if truthy(raw) {
		return Response{Status: StatusOK, Result: raw}
	}
	return Response{Status: StatusEmpty, Result: raw}
}

// NewError wraps a failed call.
func NewError(err error) Response {
	return Response{Status: StatusError, Err: err}
}

// First returns the first element of an array result as its own Response.
// Empty or non-array results yield StatusEmpty and errors propagate unchanged.
func (r Response) First() Response {
	if r.Status != StatusOK {
		return r
	}
	var items []json.RawMessage
	if err := json.Unmarshal(r.Result, &items); err != nil || len(items) == 0 {
		return Response{Status: StatusEmpty, Result: r.Result}
	}
	return NewResult(items[0])
}

func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
