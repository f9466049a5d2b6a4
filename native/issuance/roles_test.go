package issuance

import (
	"errors"
	"testing"

	"mintgate/core/events"
)

func TestGrantRoleRequiresOwner(t *testing.T) {
	engine, state, rec, _ := newTestEngine(0)

	if err := engine.GrantRole(userA, userB, RoleWhitelisted); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := engine.RevokeRole(userA, userB, RoleBlacklisted); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on revoke, got %v", err)
	}
	if len(state.roles) != 0 {
		t.Fatalf("unauthorized call mutated roles: %+v", state.roles)
	}
	if got := len(rec.Events()); got != 0 {
		t.Fatalf("expected no events, got %d", got)
	}
}

func TestGrantRevokeLifecycle(t *testing.T) {
	engine, _, rec, _ := newTestEngine(0)

	if err := engine.GrantRole(ownerAddr, userA, RoleWhitelisted); err != nil {
		t.Fatalf("grant: %v", err)
	}
	has, err := engine.HasRole(userA, RoleWhitelisted)
	if err != nil || !has {
		t.Fatalf("expected whitelisted, has=%v err=%v", has, err)
	}
	has, err = engine.HasRole(userA, RoleBlacklisted)
	if err != nil || has {
		t.Fatalf("expected not blacklisted, has=%v err=%v", has, err)
	}

	// Idempotent grant emits nothing.
	if err := engine.GrantRole(ownerAddr, userA, RoleWhitelisted); err != nil {
		t.Fatalf("regrant: %v", err)
	}
	if err := engine.RevokeRole(ownerAddr, userA, RoleWhitelisted); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := engine.RevokeRole(ownerAddr, userA, RoleWhitelisted); err != nil {
		t.Fatalf("repeat revoke: %v", err)
	}
	has, err = engine.HasRole(userA, RoleWhitelisted)
	if err != nil || has {
		t.Fatalf("expected role removed, has=%v err=%v", has, err)
	}

	evts := rec.Events()
	if len(evts) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evts))
	}
	granted, ok := evts[0].(events.IssuanceRoleGranted)
	if !ok || granted.Target != userA || granted.Role != "WHITELIST_ROLE" {
		t.Fatalf("unexpected grant event: %#v", evts[0])
	}
	revoked, ok := evts[1].(events.IssuanceRoleRevoked)
	if !ok || revoked.Target != userA || revoked.Role != "WHITELIST_ROLE" {
		t.Fatalf("unexpected revoke event: %#v", evts[1])
	}
}

func TestGrantRoleRejectsUnknownRole(t *testing.T) {
	engine, _, _, _ := newTestEngine(0)
	if err := engine.GrantRole(ownerAddr, userA, Role(0x80)); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	// Authorization is checked before role validity.
	if err := engine.GrantRole(userA, userA, Role(0x80)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestClassifyPrecedence(t *testing.T) {
	engine, _, _, _ := newTestEngine(0)

	label, err := engine.Classify(userA)
	if err != nil || label != LabelPublic {
		t.Fatalf("expected Public, got %q err=%v", label, err)
	}

	if err := engine.GrantRole(ownerAddr, userA, RoleWhitelisted); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if label, _ = engine.Classify(userA); label != LabelWhitelisted {
		t.Fatalf("expected Whitelisted, got %q", label)
	}

	if err := engine.GrantRole(ownerAddr, userA, RoleBlacklisted); err != nil {
		t.Fatalf("grant blacklist: %v", err)
	}
	if label, _ = engine.Classify(userA); label != LabelBlacklisted {
		t.Fatalf("expected Blacklisted to outrank Whitelisted, got %q", label)
	}

	// The owner label wins even over roles held by the owner address.
	if err := engine.GrantRole(ownerAddr, ownerAddr, RoleBlacklisted); err != nil {
		t.Fatalf("grant owner blacklist: %v", err)
	}
	if label, _ = engine.MyRole(ownerAddr); label != LabelOwner {
		t.Fatalf("expected Owner, got %q", label)
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"WHITELIST_ROLE": RoleWhitelisted,
		"whitelisted":    RoleWhitelisted,
		" Blacklist ":    RoleBlacklisted,
		"BLACKLIST_ROLE": RoleBlacklisted,
	}
	for raw, want := range cases {
		got, err := ParseRole(raw)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q) = %v, want %v", raw, got, want)
		}
	}
	if _, err := ParseRole("ADMIN"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestRoleSetOperations(t *testing.T) {
	var set RoleSet
	if !set.Empty() {
		t.Fatalf("zero set should be empty")
	}
	set = set.With(RoleWhitelisted).With(RoleBlacklisted)
	if !set.Has(RoleWhitelisted) || !set.Has(RoleBlacklisted) {
		t.Fatalf("expected both roles, got %08b", set)
	}
	set = set.Without(RoleWhitelisted)
	if set.Has(RoleWhitelisted) || !set.Has(RoleBlacklisted) {
		t.Fatalf("unexpected set after removal: %08b", set)
	}
	if set.Has(Role(0)) {
		t.Fatalf("invalid role reported as held")
	}
}
