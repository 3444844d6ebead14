package rpc

import "encoding/json"

// Version is the JSON-RPC protocol version carried on every envelope.
const Version = "2.0"

// Request is an inbound control-protocol message. The id is kept as raw JSON
// so string and numeric ids are echoed byte-for-byte.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outbound envelope. Exactly one of Result or Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON-RPC error codes used by the dispatcher.
const (
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeToolError      = -32000
)

func resultResponse(id json.RawMessage, v any) Response {
	return Response{JSONRPC: Version, ID: id, Result: v}
}

func errorResponse(id json.RawMessage, code int, msg string) Response {
	return Response{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: msg}}
}
