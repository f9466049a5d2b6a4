package events

import (
	"strconv"

	"mintgate/core/types"
	"mintgate/crypto"
)

const (
	// TypeIssuanceRoleGranted is emitted when the owner grants a role.
	TypeIssuanceRoleGranted = "issuance.role.granted"
	// TypeIssuanceRoleRevoked is emitted when the owner revokes a held role.
	TypeIssuanceRoleRevoked = "issuance.role.revoked"
	// TypeIssuancePhaseUpdated is emitted when a phase start time changes.
	TypeIssuancePhaseUpdated = "issuance.phase.updated"
	// TypeIssuanceItemsIssued is emitted once per successful issuance call.
	TypeIssuanceItemsIssued = "issuance.items.issued"
)

type IssuanceRoleGranted struct {
	Target [20]byte
	Role   string
}

func (IssuanceRoleGranted) EventType() string { return TypeIssuanceRoleGranted }

func (e IssuanceRoleGranted) Event() *types.Event {
	return &types.Event{
		Type: TypeIssuanceRoleGranted,
		Attributes: map[string]string{
			"target": crypto.FormatAddress(e.Target),
			"role":   e.Role,
		},
	}
}

type IssuanceRoleRevoked struct {
	Target [20]byte
	Role   string
}

func (IssuanceRoleRevoked) EventType() string { return TypeIssuanceRoleRevoked }

func (e IssuanceRoleRevoked) Event() *types.Event {
	return &types.Event{
		Type: TypeIssuanceRoleRevoked,
		Attributes: map[string]string{
			"target": crypto.FormatAddress(e.Target),
			"role":   e.Role,
		},
	}
}

// IssuancePhaseUpdated carries the changed phase plus the full clock after
// the update.
type IssuancePhaseUpdated struct {
	Phase           string
	Start           int64
	RestrictedStart int64
	PublicStart     int64
}

func (IssuancePhaseUpdated) EventType() string { return TypeIssuancePhaseUpdated }

func (e IssuancePhaseUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeIssuancePhaseUpdated,
		Attributes: map[string]string{
			"phase":           e.Phase,
			"start":           strconv.FormatInt(e.Start, 10),
			"restrictedStart": strconv.FormatInt(e.RestrictedStart, 10),
			"publicStart":     strconv.FormatInt(e.PublicStart, 10),
		},
	}
}

type IssuanceItemsIssued struct {
	Requester [20]byte
	Mode      string
	FirstID   uint64
	LastID    uint64
}

func (IssuanceItemsIssued) EventType() string { return TypeIssuanceItemsIssued }

// Quantity returns the number of items covered by the event.
func (e IssuanceItemsIssued) Quantity() uint64 {
	if e.LastID < e.FirstID {
		return 0
	}
	return e.LastID - e.FirstID + 1
}

func (e IssuanceItemsIssued) Event() *types.Event {
	return &types.Event{
		Type: TypeIssuanceItemsIssued,
		Attributes: map[string]string{
			"requester": crypto.FormatAddress(e.Requester),
			"mode":      e.Mode,
			"firstId":   strconv.FormatUint(e.FirstID, 10),
			"lastId":    strconv.FormatUint(e.LastID, 10),
			"quantity":  strconv.FormatUint(e.Quantity(), 10),
		},
	}
}
