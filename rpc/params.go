package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"mintgate/crypto"
	"mintgate/native/issuance"
)

func expectParams(params []json.RawMessage, n int) *RPCError {
	if len(params) != n {
		return invalidParams(fmt.Sprintf("expected %d parameter(s), got %d", n, len(params)), nil)
	}
	return nil
}

func decodeString(raw json.RawMessage, field string) (string, *RPCError) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", invalidParams(fmt.Sprintf("%s must be a string", field), nil)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", invalidParams(fmt.Sprintf("%s required", field), nil)
	}
	return value, nil
}

func parseAddressParam(raw json.RawMessage) (crypto.Address, *RPCError) {
	value, rpcErr := decodeString(raw, "address")
	if rpcErr != nil {
		return crypto.Address{}, rpcErr
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return crypto.Address{}, invalidParams("invalid address", err.Error())
	}
	return addr, nil
}

func parseRoleParam(raw json.RawMessage) (issuance.Role, *RPCError) {
	value, rpcErr := decodeString(raw, "role")
	if rpcErr != nil {
		return 0, rpcErr
	}
	role, err := issuance.ParseRole(value)
	if err != nil {
		return 0, invalidParams("unknown role", value)
	}
	return role, nil
}

// numericLiteral accepts a bare JSON number or a decimal string so callers
// can pass ids beyond the float64-safe range.
func numericLiteral(raw json.RawMessage, field string) (string, *RPCError) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", invalidParams(fmt.Sprintf("%s required", field), nil)
	}
	if trimmed[0] == '"' {
		return decodeString(trimmed, field)
	}
	return string(trimmed), nil
}

func parseUint64Param(raw json.RawMessage, field string) (uint64, *RPCError) {
	literal, rpcErr := numericLiteral(raw, field)
	if rpcErr != nil {
		return 0, rpcErr
	}
	value, err := strconv.ParseUint(literal, 10, 64)
	if err != nil {
		return 0, invalidParams(fmt.Sprintf("%s must be a non-negative integer", field), literal)
	}
	return value, nil
}

func parseInt64Param(raw json.RawMessage, field string) (int64, *RPCError) {
	literal, rpcErr := numericLiteral(raw, field)
	if rpcErr != nil {
		return 0, rpcErr
	}
	value, err := strconv.ParseInt(literal, 10, 64)
	if err != nil {
		return 0, invalidParams(fmt.Sprintf("%s must be an integer", field), literal)
	}
	return value, nil
}
