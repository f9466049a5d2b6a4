package issuance

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized    = errors.New("issuance: not an owner")
	ErrBlacklisted     = errors.New("issuance: caller is blacklisted")
	ErrPhaseNotOpen    = errors.New("issuance: phase not open")
	ErrNotWhitelisted  = errors.New("issuance: caller is not whitelisted")
	ErrUnknownItem     = errors.New("issuance: unknown item")
	ErrInvalidQuantity = errors.New("issuance: quantity must be at least 1")
	ErrUnknownRole     = errors.New("issuance: unknown role")
	// ErrIDsExhausted rejects a quantity that would run past the last
	// representable item id.
	ErrIDsExhausted = errors.New("issuance: item id space exhausted")

	errNilState     = errors.New("issuance: state not configured")
	errInvalidPhase = errors.New("issuance: invalid phase")
)

// PhaseError reports which phase gate rejected an issuance request. It
// unwraps to ErrPhaseNotOpen.
type PhaseError struct {
	Phase Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPhaseNotOpen.Error(), e.Phase)
}

func (e *PhaseError) Unwrap() error { return ErrPhaseNotOpen }

// PhaseFromError extracts the rejected phase from err, if any.
func PhaseFromError(err error) (Phase, bool) {
	var pe *PhaseError
	if errors.As(err, &pe) && pe != nil {
		return pe.Phase, true
	}
	return "", false
}
