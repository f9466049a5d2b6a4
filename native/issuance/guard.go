package issuance

import "fmt"

// requireOwner rejects callers other than the owner before any state is
// touched.
func (e *Engine) requireOwner(caller [20]byte) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	if e.state == nil {
		return errNilState
	}
	return nil
}

// IsOwner reports whether addr is the registry owner.
func (e *Engine) IsOwner(addr [20]byte) bool { return addr == e.owner }

func wrapState(op string, err error) error {
	return fmt.Errorf("issuance: %s: %w", op, err)
}
