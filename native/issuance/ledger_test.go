package issuance

import (
	"errors"
	"math"
	"sync"
	"testing"

	"mintgate/core/events"
)

func openEngine(t *testing.T) (*Engine, *mockState, *events.Recorder) {
	t.Helper()
	engine, state, rec, _ := newTestEngine(1_000)
	if _, err := engine.Bootstrap(PhaseClock{RestrictedStart: 100, PublicStart: 500}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return engine, state, rec
}

func TestRestrictedIssueOrderOfChecks(t *testing.T) {
	engine, _, _, now := newTestEngine(50)
	if _, err := engine.Bootstrap(PhaseClock{RestrictedStart: 100, PublicStart: 500}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := engine.GrantRole(ownerAddr, userA, RoleWhitelisted); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := engine.GrantRole(ownerAddr, userA, RoleBlacklisted); err != nil {
		t.Fatalf("grant: %v", err)
	}

	// Blacklist is reported even while the phase is closed.
	if _, err := engine.RestrictedIssue(userA, 1); !errors.Is(err, ErrBlacklisted) {
		t.Fatalf("expected ErrBlacklisted, got %v", err)
	}
	// Phase gate is reported before whitelist membership.
	_, err := engine.RestrictedIssue(userB, 1)
	if !errors.Is(err, ErrPhaseNotOpen) {
		t.Fatalf("expected ErrPhaseNotOpen, got %v", err)
	}
	if phase, ok := PhaseFromError(err); !ok || phase != PhaseRestricted {
		t.Fatalf("expected restricted phase error, got %v %v", phase, ok)
	}

	now.Set(100)
	if _, err := engine.RestrictedIssue(userB, 1); !errors.Is(err, ErrNotWhitelisted) {
		t.Fatalf("expected ErrNotWhitelisted, got %v", err)
	}
	if _, err := engine.RestrictedIssue(userA, 1); !errors.Is(err, ErrBlacklisted) {
		t.Fatalf("expected ErrBlacklisted for whitelisted+blacklisted caller, got %v", err)
	}
}

func TestRestrictedIssueAllocatesContiguousIDs(t *testing.T) {
	engine, state, rec := openEngine(t)
	if err := engine.GrantRole(ownerAddr, userA, RoleWhitelisted); err != nil {
		t.Fatalf("grant: %v", err)
	}
	rec.Reset()

	first, err := engine.RestrictedIssue(userA, 3)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if first.FirstID != 1 || first.LastID != 3 || first.Quantity() != 3 {
		t.Fatalf("unexpected allocation: %+v", first)
	}
	second, err := engine.OpenIssue(userB, 2)
	if err != nil {
		t.Fatalf("open issue: %v", err)
	}
	if second.FirstID != 4 || second.LastID != 5 {
		t.Fatalf("unexpected second allocation: %+v", second)
	}
	if second.Quantity() != 2 {
		t.Fatalf("unexpected quantity: %d", second.Quantity())
	}

	for id := uint64(1); id <= 3; id++ {
		owner, err := engine.OwnerOf(id)
		if err != nil || owner != userA {
			t.Fatalf("item %d: owner=%x err=%v", id, owner, err)
		}
	}
	if balance, _ := engine.BalanceOf(userA); balance != 3 {
		t.Fatalf("unexpected balance for A: %d", balance)
	}
	if balance, _ := engine.BalanceOf(userB); balance != 2 {
		t.Fatalf("unexpected balance for B: %d", balance)
	}
	if total, _ := engine.TotalIssued(); total != 5 {
		t.Fatalf("unexpected total: %d", total)
	}
	if state.commits != 2 {
		t.Fatalf("expected one commit per call, got %d", state.commits)
	}

	evts := rec.Events()
	if len(evts) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evts))
	}
	issued, ok := evts[1].(events.IssuanceItemsIssued)
	if !ok || issued.Mode != "public" || issued.FirstID != 4 || issued.LastID != 5 || issued.Requester != userB {
		t.Fatalf("unexpected issued event: %#v", evts[1])
	}
}

func TestOpenIssueIgnoresWhitelist(t *testing.T) {
	engine, _, _, now := newTestEngine(499)
	if _, err := engine.Bootstrap(PhaseClock{RestrictedStart: 100, PublicStart: 500}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := engine.GrantRole(ownerAddr, userA, RoleWhitelisted); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := engine.OpenIssue(userA, 1); !errors.Is(err, ErrPhaseNotOpen) {
		t.Fatalf("expected ErrPhaseNotOpen for whitelisted caller before public start, got %v", err)
	}
	now.Set(500)
	if _, err := engine.OpenIssue(userC, 1); err != nil {
		t.Fatalf("public issue at start instant: %v", err)
	}
	if err := engine.GrantRole(ownerAddr, userC, RoleBlacklisted); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := engine.OpenIssue(userC, 1); !errors.Is(err, ErrBlacklisted) {
		t.Fatalf("expected ErrBlacklisted, got %v", err)
	}
}

func TestFailedIssueConsumesNoIDs(t *testing.T) {
	engine, state, rec := openEngine(t)

	if _, err := engine.RestrictedIssue(userB, 1); !errors.Is(err, ErrNotWhitelisted) {
		t.Fatalf("expected ErrNotWhitelisted, got %v", err)
	}
	if _, err := engine.OpenIssue(userB, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	state.failNext = errInjected
	if _, err := engine.OpenIssue(userB, 4); !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if len(rec.Events()) != 0 {
		t.Fatalf("failed calls must not emit events")
	}

	alloc, err := engine.OpenIssue(userB, 1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if alloc.FirstID != 1 {
		t.Fatalf("failed calls consumed ids: first id %d", alloc.FirstID)
	}
	if balance, _ := engine.BalanceOf(userB); balance != 1 {
		t.Fatalf("unexpected balance: %d", balance)
	}
}

func TestInvalidQuantityCheckedFirst(t *testing.T) {
	engine, _, _ := openEngine(t)
	if err := engine.GrantRole(ownerAddr, userA, RoleBlacklisted); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := engine.RestrictedIssue(userA, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestResolveURI(t *testing.T) {
	engine, _, _ := openEngine(t)
	if _, err := engine.OpenIssue(userA, 2); err != nil {
		t.Fatalf("issue: %v", err)
	}

	uri, err := engine.ResolveURI(1)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if uri != testBaseURI+"/1" {
		t.Fatalf("unexpected uri %q", uri)
	}
	for _, id := range []uint64{0, 3, 1 << 40} {
		if _, err := engine.ResolveURI(id); !errors.Is(err, ErrUnknownItem) {
			t.Fatalf("id %d: expected ErrUnknownItem, got %v", id, err)
		}
	}
	if _, err := engine.OwnerOf(9); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem from OwnerOf, got %v", err)
	}
}

func TestResolveURITrimsTrailingSlash(t *testing.T) {
	engine := NewEngine(ownerAddr, "https://example.org/meta/")
	engine.SetState(newMockState())
	if _, err := engine.OpenIssue(userA, 1); err != nil {
		t.Fatalf("issue: %v", err)
	}
	uri, err := engine.ResolveURI(1)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if uri != "https://example.org/meta/1" {
		t.Fatalf("unexpected uri %q", uri)
	}
}

func TestEngineWithoutState(t *testing.T) {
	engine := NewEngine(ownerAddr, testBaseURI)
	if _, err := engine.OpenIssue(userA, 1); !errors.Is(err, errNilState) {
		t.Fatalf("expected errNilState, got %v", err)
	}
	if err := engine.GrantRole(ownerAddr, userA, RoleWhitelisted); !errors.Is(err, errNilState) {
		t.Fatalf("expected errNilState, got %v", err)
	}
	if _, err := engine.TotalIssued(); !errors.Is(err, errNilState) {
		t.Fatalf("expected errNilState, got %v", err)
	}
}

func TestConcurrentIssuanceYieldsDisjointRanges(t *testing.T) {
	engine, _, rec := openEngine(t)

	const (
		workers  = 16
		perCall  = 3
		rounds   = 10
		expected = workers * rounds * perCall
	)
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		seen  = make(map[uint64]bool, expected)
		fails []error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			caller := addr(byte(0x20 + w))
			for r := 0; r < rounds; r++ {
				alloc, err := engine.OpenIssue(caller, perCall)
				mu.Lock()
				if err != nil {
					fails = append(fails, err)
				} else {
					for id := alloc.FirstID; id <= alloc.LastID; id++ {
						if seen[id] {
							fails = append(fails, errors.New("duplicate id"))
						}
						seen[id] = true
					}
				}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	if len(fails) != 0 {
		t.Fatalf("unexpected failures: %v", fails)
	}
	if len(seen) != expected {
		t.Fatalf("expected %d ids, got %d", expected, len(seen))
	}
	for id := uint64(1); id <= expected; id++ {
		if !seen[id] {
			t.Fatalf("gap at id %d", id)
		}
	}
	if total, _ := engine.TotalIssued(); total != expected {
		t.Fatalf("unexpected total %d", total)
	}

	// Events are emitted in commit order.
	var last uint64
	for _, evt := range rec.Events() {
		issued := evt.(events.IssuanceItemsIssued)
		if issued.FirstID != last+1 {
			t.Fatalf("event out of order: first=%d after last=%d", issued.FirstID, last)
		}
		last = issued.LastID
	}
}

func TestIssueQuantityBounds(t *testing.T) {
	cases := []struct {
		name      string
		nextID    uint64
		quantity  uint64
		wantErr   error
		wantFirst uint64
		wantLast  uint64
	}{
		{name: "max quantity on fresh ledger", quantity: math.MaxUint64, wantErr: ErrIDsExhausted},
		{name: "overflowing next id", nextID: math.MaxUint64 - 10, quantity: 11, wantErr: ErrIDsExhausted},
		{name: "counter already at the end", nextID: math.MaxUint64, quantity: 1, wantErr: ErrIDsExhausted},
		{name: "fills the id space", nextID: math.MaxUint64 - 10, quantity: 10, wantFirst: math.MaxUint64 - 10, wantLast: math.MaxUint64 - 1},
		{name: "large quantity", quantity: 1 << 62, wantFirst: 1, wantLast: 1 << 62},
		{name: "largest quantity from one", quantity: math.MaxUint64 - 1, wantFirst: 1, wantLast: math.MaxUint64 - 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, state, rec := openEngine(t)
			state.nextID = tc.nextID
			rec.Reset()

			alloc, err := engine.OpenIssue(userA, tc.quantity)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if state.commits != 0 || state.nextID != tc.nextID || len(state.ranges) != 0 {
					t.Fatalf("rejected issue changed state: commits=%d next=%d ranges=%d", state.commits, state.nextID, len(state.ranges))
				}
				if balance, _ := engine.BalanceOf(userA); balance != 0 {
					t.Fatalf("rejected issue changed balance to %d", balance)
				}
				if len(rec.Events()) != 0 {
					t.Fatalf("rejected issue emitted events")
				}
				return
			}
			if err != nil {
				t.Fatalf("issue: %v", err)
			}
			if alloc.FirstID != tc.wantFirst || alloc.LastID != tc.wantLast || alloc.Quantity() != tc.quantity {
				t.Fatalf("unexpected allocation %+v", alloc)
			}
			if state.commits != 1 || len(state.ranges) != 1 {
				t.Fatalf("expected a single range commit, got commits=%d ranges=%d", state.commits, len(state.ranges))
			}
			for _, id := range []uint64{alloc.FirstID, alloc.LastID} {
				owner, err := engine.OwnerOf(id)
				if err != nil || owner != userA {
					t.Fatalf("owner of %d: %x err=%v", id, owner, err)
				}
			}
			if balance, _ := engine.BalanceOf(userA); balance != tc.quantity {
				t.Fatalf("unexpected balance %d", balance)
			}
			if total, _ := engine.TotalIssued(); total != alloc.LastID {
				t.Fatalf("unexpected total %d", total)
			}
			if alloc.LastID == math.MaxUint64-1 {
				if _, err := engine.OpenIssue(userB, 1); !errors.Is(err, ErrIDsExhausted) {
					t.Fatalf("expected exhausted id space after the last id, got %v", err)
				}
			}
		})
	}
}

func TestIssuedAtKeepsNegativeClock(t *testing.T) {
	engine, _, _, _ := newTestEngine(-50)
	if _, err := engine.Bootstrap(PhaseClock{RestrictedStart: -100, PublicStart: -100}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	alloc, err := engine.OpenIssue(userA, 2)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if alloc.IssuedAt != -50 {
		t.Fatalf("unexpected allocation time %d", alloc.IssuedAt)
	}
	item, err := engine.Item(alloc.LastID)
	if err != nil {
		t.Fatalf("item: %v", err)
	}
	if item.IssuedAt != -50 {
		t.Fatalf("issue time not preserved: %d", item.IssuedAt)
	}
}
