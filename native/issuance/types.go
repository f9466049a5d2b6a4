package issuance

import (
	"fmt"
	"strings"
)

// Role is an attribute the owner can attach to an address. The set is closed;
// free-form role strings never reach authorization.
type Role uint8

const (
	RoleWhitelisted Role = 1 << iota
	RoleBlacklisted
)

const (
	whitelistRoleName = "WHITELIST_ROLE"
	blacklistRoleName = "BLACKLIST_ROLE"
)

// Roles lists every known role in a stable order.
func Roles() []Role { return []Role{RoleWhitelisted, RoleBlacklisted} }

func (r Role) String() string {
	switch r {
	case RoleWhitelisted:
		return whitelistRoleName
	case RoleBlacklisted:
		return blacklistRoleName
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

func (r Role) valid() bool {
	return r == RoleWhitelisted || r == RoleBlacklisted
}

// ParseRole maps a wire name onto a Role. Both the canonical names
// (WHITELIST_ROLE, BLACKLIST_ROLE) and the label spellings are accepted,
// case-insensitively.
func ParseRole(raw string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case whitelistRoleName, "WHITELISTED", "WHITELIST":
		return RoleWhitelisted, nil
	case blacklistRoleName, "BLACKLISTED", "BLACKLIST":
		return RoleBlacklisted, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
}

// RoleSet is the set of roles held by a single address.
type RoleSet uint8

func (s RoleSet) Has(r Role) bool { return r.valid() && s&RoleSet(r) != 0 }

func (s RoleSet) With(r Role) RoleSet { return s | RoleSet(r) }

func (s RoleSet) Without(r Role) RoleSet { return s &^ RoleSet(r) }

func (s RoleSet) Empty() bool { return s&RoleSet(RoleWhitelisted|RoleBlacklisted) == 0 }

// RoleLabel is the single display label computed for an address.
type RoleLabel string

const (
	LabelOwner       RoleLabel = "Owner"
	LabelBlacklisted RoleLabel = "Blacklisted"
	LabelWhitelisted RoleLabel = "Whitelisted"
	LabelPublic      RoleLabel = "Public"
)

// Phase names an issuance window.
type Phase string

const (
	PhaseRestricted Phase = "restricted"
	PhasePublic     Phase = "public"
)

// PhaseClock holds the unix-second start times of both issuance phases.
type PhaseClock struct {
	RestrictedStart int64 `json:"restrictedStart"`
	PublicStart     int64 `json:"publicStart"`
}

// IsRestrictedOpen reports whether the restricted phase has started. The
// start instant itself counts as open.
func (c PhaseClock) IsRestrictedOpen(now int64) bool { return now >= c.RestrictedStart }

// IsPublicOpen reports whether the public phase has started, inclusive of
// the start instant.
func (c PhaseClock) IsPublicOpen(now int64) bool { return now >= c.PublicStart }

// IsOpen dispatches to the gate for phase p.
func (c PhaseClock) IsOpen(p Phase, now int64) bool {
	switch p {
	case PhaseRestricted:
		return c.IsRestrictedOpen(now)
	case PhasePublic:
		return c.IsPublicOpen(now)
	default:
		return false
	}
}

// PhaseStatus is a point-in-time view of the clock.
type PhaseStatus struct {
	Clock          PhaseClock `json:"clock"`
	Now            int64      `json:"now"`
	RestrictedOpen bool       `json:"restrictedOpen"`
	PublicOpen     bool       `json:"publicOpen"`
}

// Item is one issued unit. Items are immutable once recorded.
type Item struct {
	ID       uint64   `json:"id"`
	Owner    [20]byte `json:"owner"`
	IssuedAt int64    `json:"issuedAt"`
}

// Allocation describes the contiguous id range granted by one issuance call.
type Allocation struct {
	Owner    [20]byte
	Phase    Phase
	FirstID  uint64
	LastID   uint64
	IssuedAt int64
}

// Quantity returns the number of ids in the allocation.
func (a Allocation) Quantity() uint64 {
	if a.LastID < a.FirstID {
		return 0
	}
	return a.LastID - a.FirstID + 1
}

// Commit is the atomic write produced by a successful issuance. The ids
// FirstID through LastID are recorded as one range owned by Owner, so its
// size does not depend on the quantity issued.
type Commit struct {
	FirstID  uint64
	LastID   uint64
	Owner    [20]byte
	IssuedAt int64
	NextID   uint64
	Balance  uint64
}
