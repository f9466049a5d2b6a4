package rpc

import (
	"errors"
	"net/http"

	"mintgate/native/issuance"
)

// domainError maps an engine error onto its JSON-RPC code. Unrecognised
// errors become opaque server errors; the caller logs the original.
func domainError(err error) *RPCError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, issuance.ErrUnauthorized):
		return newError(http.StatusForbidden, codeNotOwner, "Not an owner", nil)
	case errors.Is(err, issuance.ErrBlacklisted):
		return newError(http.StatusForbidden, codeBlacklisted, "caller is blacklisted", nil)
	case errors.Is(err, issuance.ErrPhaseNotOpen):
		phase, _ := issuance.PhaseFromError(err)
		return newError(http.StatusConflict, codePhaseNotOpen, "phase not open", string(phase))
	case errors.Is(err, issuance.ErrNotWhitelisted):
		return newError(http.StatusForbidden, codeNotWhitelisted, "caller is not whitelisted", nil)
	case errors.Is(err, issuance.ErrUnknownItem):
		return newError(http.StatusNotFound, codeUnknownItem, "unknown item", nil)
	case errors.Is(err, issuance.ErrInvalidQuantity), errors.Is(err, issuance.ErrUnknownRole),
		errors.Is(err, issuance.ErrIDsExhausted):
		return invalidParams(err.Error(), nil)
	default:
		return newError(http.StatusInternalServerError, codeServerError, "internal error", nil)
	}
}

// rejectionReason is the metrics label for a failed issuance.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, issuance.ErrBlacklisted):
		return "blacklisted"
	case errors.Is(err, issuance.ErrPhaseNotOpen):
		return "phase_not_open"
	case errors.Is(err, issuance.ErrNotWhitelisted):
		return "not_whitelisted"
	case errors.Is(err, issuance.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, issuance.ErrIDsExhausted):
		return "ids_exhausted"
	default:
		return "internal"
	}
}
