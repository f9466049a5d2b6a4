package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"mintgate/native/issuance"
)

// phaseRecord is the RLP form of issuance.PhaseClock. RLP has no signed
// integers, so the timestamps are stored bit-for-bit as uint64.
type phaseRecord struct {
	RestrictedStart uint64
	PublicStart     uint64
}

// IssuanceRolesGet returns the role set held by addr; absent entries read
// as the empty set.
func (m *Manager) IssuanceRolesGet(addr [20]byte) (issuance.RoleSet, error) {
	var raw uint8
	if _, err := m.getRLP(prefixedKey(issuanceRolesPrefix, addr[:]), &raw); err != nil {
		return 0, err
	}
	return issuance.RoleSet(raw), nil
}

// IssuanceRolesPut stores the role set for addr, deleting the entry once no
// roles remain.
func (m *Manager) IssuanceRolesPut(addr [20]byte, roles issuance.RoleSet) error {
	key := prefixedKey(issuanceRolesPrefix, addr[:])
	if roles.Empty() {
		return m.db.Delete(key)
	}
	return m.putRLP(key, uint8(roles))
}

func (m *Manager) IssuancePhasesGet() (issuance.PhaseClock, bool, error) {
	var rec phaseRecord
	ok, err := m.getRLP(issuancePhasesKey, &rec)
	if err != nil || !ok {
		return issuance.PhaseClock{}, false, err
	}
	return issuance.PhaseClock{
		RestrictedStart: int64(rec.RestrictedStart),
		PublicStart:     int64(rec.PublicStart),
	}, true, nil
}

func (m *Manager) IssuancePhasesPut(clock issuance.PhaseClock) error {
	return m.putRLP(issuancePhasesKey, phaseRecord{
		RestrictedStart: uint64(clock.RestrictedStart),
		PublicStart:     uint64(clock.PublicStart),
	})
}

// rangeRecord is one issuance call's contiguous id range, keyed by its last
// id so the range holding any id is the first key at or after that id.
type rangeRecord struct {
	FirstID  uint64
	LastID   uint64
	Owner    [20]byte
	IssuedAt uint64
}

// IssuanceItemGet resolves id through the range that contains it.
func (m *Manager) IssuanceItemGet(id uint64) (*issuance.Item, bool, error) {
	if m == nil || m.db == nil {
		return nil, false, fmt.Errorf("state: database not configured")
	}
	if id == 0 {
		return nil, false, nil
	}
	_, data, ok, err := m.db.Seek(issuanceRangePrefix, uint64Key(issuanceRangePrefix, id))
	if err != nil || !ok {
		return nil, false, err
	}
	var rec rangeRecord
	if err := rlp.DecodeBytes(data, &rec); err != nil {
		return nil, false, fmt.Errorf("state: decode range: %w", err)
	}
	if id < rec.FirstID || id > rec.LastID {
		return nil, false, nil
	}
	return &issuance.Item{ID: id, Owner: rec.Owner, IssuedAt: int64(rec.IssuedAt)}, true, nil
}

// IssuanceNextID returns the stored counter, or 1 when nothing has been
// issued yet.
func (m *Manager) IssuanceNextID() (uint64, error) {
	var next uint64
	ok, err := m.getRLP(issuanceNextIDKey, &next)
	if err != nil {
		return 0, err
	}
	if !ok || next == 0 {
		return 1, nil
	}
	return next, nil
}

func (m *Manager) IssuanceBalanceGet(owner [20]byte) (uint64, error) {
	var balance uint64
	if _, err := m.getRLP(prefixedKey(issuanceBalancePrefix, owner[:]), &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// IssuanceCommit writes the id range, the advanced counter and the owner's
// balance in a single batch so a failed write leaves no partial allocation.
func (m *Manager) IssuanceCommit(commit *issuance.Commit) error {
	if commit == nil || commit.FirstID == 0 || commit.LastID < commit.FirstID {
		return fmt.Errorf("state: invalid issuance commit")
	}
	if commit.NextID <= commit.LastID {
		return fmt.Errorf("state: next id %d does not follow range end %d", commit.NextID, commit.LastID)
	}
	batch := m.db.NewBatch()
	rec := rangeRecord{
		FirstID:  commit.FirstID,
		LastID:   commit.LastID,
		Owner:    commit.Owner,
		IssuedAt: uint64(commit.IssuedAt),
	}
	if err := batchPutRLP(batch, uint64Key(issuanceRangePrefix, commit.LastID), rec); err != nil {
		return err
	}
	if err := batchPutRLP(batch, issuanceNextIDKey, commit.NextID); err != nil {
		return err
	}
	if err := batchPutRLP(batch, prefixedKey(issuanceBalancePrefix, commit.Owner[:]), commit.Balance); err != nil {
		return err
	}
	return batch.Write()
}
