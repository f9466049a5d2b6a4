package rpc

import (
	"encoding/json"
	"net/http"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError      = -32700
	codeInvalidRequest  = -32600
	codeMethodNotFound  = -32601
	codeInvalidParams   = -32602
	codeUnauthenticated = -32001
	codeServerError     = -32000
	codeRateLimited     = -32020

	codeNotOwner       = -32100
	codeBlacklisted    = -32101
	codePhaseNotOpen   = -32102
	codeNotWhitelisted = -32103
	codeUnknownItem    = -32104
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError is the error object of a JSON-RPC response. The HTTP status is
// carried alongside but never serialised.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	status int
}

func (e *RPCError) Error() string { return e.Message }

func (e *RPCError) httpStatus() int {
	if e == nil || e.status <= 0 {
		return http.StatusBadRequest
	}
	return e.status
}

func newError(status, code int, message string, data interface{}) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data, status: status}
}

func invalidParams(message string, data interface{}) *RPCError {
	return newError(http.StatusBadRequest, codeInvalidParams, message, data)
}

// RoleResult reports the role state of an address after a grant or revoke.
type RoleResult struct {
	Address string `json:"address"`
	Role    string `json:"role"`
	Held    bool   `json:"held"`
}

// AllocationResult describes the ids granted by one issuance call.
type AllocationResult struct {
	Owner    string `json:"owner"`
	Phase    string `json:"phase"`
	FirstID  uint64 `json:"firstId"`
	LastID   uint64 `json:"lastId"`
	Quantity uint64 `json:"quantity"`
	IssuedAt int64  `json:"issuedAt"`
}

// ItemResult is the public view of an issued item.
type ItemResult struct {
	ID       uint64 `json:"id"`
	Owner    string `json:"owner"`
	URI      string `json:"uri"`
	IssuedAt int64  `json:"issuedAt"`
}

// PhasesResult is the phase clock plus its evaluation at the server's now.
type PhasesResult struct {
	RestrictedStart int64 `json:"restrictedStart"`
	PublicStart     int64 `json:"publicStart"`
	Now             int64 `json:"now"`
	RestrictedOpen  bool  `json:"restrictedOpen"`
	PublicOpen      bool  `json:"publicOpen"`
}
