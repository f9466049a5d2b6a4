package issuance

import (
	"math"
	"strconv"

	"mintgate/core/events"
)

// RestrictedIssue mints quantity items to caller during the restricted
// phase. Checks run in a fixed order: blacklist, restricted phase gate,
// whitelist membership.
func (e *Engine) RestrictedIssue(caller [20]byte, quantity uint64) (Allocation, error) {
	return e.issue(caller, quantity, PhaseRestricted)
}

// OpenIssue mints quantity items to any non-blacklisted caller once the
// public phase has started. Whitelist membership is not consulted.
func (e *Engine) OpenIssue(caller [20]byte, quantity uint64) (Allocation, error) {
	return e.issue(caller, quantity, PhasePublic)
}

func (e *Engine) issue(caller [20]byte, quantity uint64, phase Phase) (Allocation, error) {
	if quantity < 1 {
		return Allocation{}, ErrInvalidQuantity
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	roles, err := e.rolesLocked(caller)
	if err != nil {
		return Allocation{}, err
	}
	if roles.Has(RoleBlacklisted) {
		return Allocation{}, ErrBlacklisted
	}
	clock, err := e.phasesLocked()
	if err != nil {
		return Allocation{}, err
	}
	now := e.now()
	switch phase {
	case PhaseRestricted:
		if !clock.IsRestrictedOpen(now) {
			return Allocation{}, &PhaseError{Phase: phase}
		}
		if !roles.Has(RoleWhitelisted) {
			return Allocation{}, ErrNotWhitelisted
		}
	case PhasePublic:
		if !clock.IsPublicOpen(now) {
			return Allocation{}, &PhaseError{Phase: phase}
		}
	default:
		return Allocation{}, errInvalidPhase
	}

	next, err := e.nextIDLocked()
	if err != nil {
		return Allocation{}, err
	}
	// NextID must stay representable, so the last usable id is MaxUint64-1.
	if quantity > math.MaxUint64-next {
		return Allocation{}, ErrIDsExhausted
	}
	balance, err := e.state.IssuanceBalanceGet(caller)
	if err != nil {
		return Allocation{}, wrapState("load balance", err)
	}

	commit := &Commit{
		FirstID:  next,
		LastID:   next + quantity - 1,
		Owner:    caller,
		IssuedAt: now,
		NextID:   next + quantity,
		Balance:  balance + quantity,
	}
	if err := e.state.IssuanceCommit(commit); err != nil {
		return Allocation{}, wrapState("commit items", err)
	}

	alloc := Allocation{
		Owner:    caller,
		Phase:    phase,
		FirstID:  next,
		LastID:   next + quantity - 1,
		IssuedAt: now,
	}
	e.emit(events.IssuanceItemsIssued{
		Requester: caller,
		Mode:      string(phase),
		FirstID:   alloc.FirstID,
		LastID:    alloc.LastID,
	})
	return alloc, nil
}

// ResolveURI returns "{baseURI}/{id}" for an issued item.
func (e *Engine) ResolveURI(id uint64) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, err := e.itemLocked(id); err != nil {
		return "", err
	}
	return e.uriFor(id), nil
}

// Item returns the stored record for id.
func (e *Engine) Item(id uint64) (*Item, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.itemLocked(id)
}

// OwnerOf returns the address an item was issued to.
func (e *Engine) OwnerOf(id uint64) ([20]byte, error) {
	item, err := e.Item(id)
	if err != nil {
		return [20]byte{}, err
	}
	return item.Owner, nil
}

// BalanceOf returns the number of items held by owner.
func (e *Engine) BalanceOf(owner [20]byte) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return 0, errNilState
	}
	balance, err := e.state.IssuanceBalanceGet(owner)
	if err != nil {
		return 0, wrapState("load balance", err)
	}
	return balance, nil
}

// TotalIssued returns the number of items issued so far, which is also the
// highest id handed out.
func (e *Engine) TotalIssued() (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	next, err := e.nextIDLocked()
	if err != nil {
		return 0, err
	}
	return next - 1, nil
}

func (e *Engine) uriFor(id uint64) string {
	return e.baseURI + "/" + strconv.FormatUint(id, 10)
}

func (e *Engine) itemLocked(id uint64) (*Item, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if id == 0 {
		return nil, ErrUnknownItem
	}
	item, ok, err := e.state.IssuanceItemGet(id)
	if err != nil {
		return nil, wrapState("load item", err)
	}
	if !ok || item == nil {
		return nil, ErrUnknownItem
	}
	return item, nil
}

// nextIDLocked normalises the stored counter so the first id handed out is 1.
func (e *Engine) nextIDLocked() (uint64, error) {
	if e.state == nil {
		return 0, errNilState
	}
	next, err := e.state.IssuanceNextID()
	if err != nil {
		return 0, wrapState("load next id", err)
	}
	if next == 0 {
		next = 1
	}
	return next, nil
}
