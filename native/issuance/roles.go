package issuance

import (
	"fmt"

	"mintgate/core/events"
)

// GrantRole attaches role to target. Owner only; granting a role that is
// already held succeeds without change.
func (e *Engine) GrantRole(caller, target [20]byte, role Role) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if !role.valid() {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	roles, err := e.rolesLocked(target)
	if err != nil {
		return err
	}
	if roles.Has(role) {
		return nil
	}
	if err := e.state.IssuanceRolesPut(target, roles.With(role)); err != nil {
		return wrapState("store roles", err)
	}
	e.emit(events.IssuanceRoleGranted{Target: target, Role: role.String()})
	return nil
}

// RevokeRole removes role from target. Owner only; revoking a role that is
// not held is a no-op.
func (e *Engine) RevokeRole(caller, target [20]byte, role Role) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if !role.valid() {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	roles, err := e.rolesLocked(target)
	if err != nil {
		return err
	}
	if !roles.Has(role) {
		return nil
	}
	if err := e.state.IssuanceRolesPut(target, roles.Without(role)); err != nil {
		return wrapState("store roles", err)
	}
	e.emit(events.IssuanceRoleRevoked{Target: target, Role: role.String()})
	return nil
}

// HasRole reports whether target currently holds role.
func (e *Engine) HasRole(target [20]byte, role Role) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	roles, err := e.rolesLocked(target)
	if err != nil {
		return false, err
	}
	return roles.Has(role), nil
}

// RolesOf returns the full role set held by target.
func (e *Engine) RolesOf(target [20]byte) (RoleSet, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rolesLocked(target)
}

// Classify resolves the display label for target. Precedence is
// Owner > Blacklisted > Whitelisted > Public.
func (e *Engine) Classify(target [20]byte) (RoleLabel, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if target == e.owner {
		return LabelOwner, nil
	}
	roles, err := e.rolesLocked(target)
	if err != nil {
		return "", err
	}
	return classify(roles), nil
}

// MyRole is Classify applied to the caller's own address.
func (e *Engine) MyRole(caller [20]byte) (RoleLabel, error) {
	return e.Classify(caller)
}

func classify(roles RoleSet) RoleLabel {
	switch {
	case roles.Has(RoleBlacklisted):
		return LabelBlacklisted
	case roles.Has(RoleWhitelisted):
		return LabelWhitelisted
	default:
		return LabelPublic
	}
}

func (e *Engine) rolesLocked(addr [20]byte) (RoleSet, error) {
	if e.state == nil {
		return 0, errNilState
	}
	roles, err := e.state.IssuanceRolesGet(addr)
	if err != nil {
		return 0, wrapState("load roles", err)
	}
	return roles, nil
}
