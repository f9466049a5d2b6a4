package issuance

import (
	"errors"
	"sync"

	"mintgate/core/events"
)

type mockState struct {
	mu       sync.Mutex
	roles    map[[20]byte]RoleSet
	clock    *PhaseClock
	ranges   []Commit
	balances map[[20]byte]uint64
	nextID   uint64
	commits  int
	failNext error
}

func newMockState() *mockState {
	return &mockState{
		roles:    make(map[[20]byte]RoleSet),
		balances: make(map[[20]byte]uint64),
	}
}

func (m *mockState) IssuanceRolesGet(addr [20]byte) (RoleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roles[addr], nil
}

func (m *mockState) IssuanceRolesPut(addr [20]byte, roles RoleSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if roles.Empty() {
		delete(m.roles, addr)
		return nil
	}
	m.roles[addr] = roles
	return nil
}

func (m *mockState) IssuancePhasesGet() (PhaseClock, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clock == nil {
		return PhaseClock{}, false, nil
	}
	return *m.clock, true, nil
}

func (m *mockState) IssuancePhasesPut(clock PhaseClock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := clock
	m.clock = &c
	return nil
}

func (m *mockState) IssuanceItemGet(id uint64) (*Item, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.ranges {
		if id >= r.FirstID && id <= r.LastID {
			return &Item{ID: id, Owner: r.Owner, IssuedAt: r.IssuedAt}, true, nil
		}
	}
	return nil, false, nil
}

func (m *mockState) IssuanceNextID() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nextID == 0 {
		return 1, nil
	}
	return m.nextID, nil
}

func (m *mockState) IssuanceBalanceGet(owner [20]byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[owner], nil
}

func (m *mockState) IssuanceCommit(commit *Commit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	m.ranges = append(m.ranges, *commit)
	m.nextID = commit.NextID
	m.balances[commit.Owner] = commit.Balance
	m.commits++
	return nil
}

var errInjected = errors.New("injected failure")

func addr(b byte) [20]byte {
	var out [20]byte
	out[0] = b
	out[19] = b
	return out
}

const testBaseURI = "https://black-imperial-hummingbird-238.mypinata.cloud/ipfs/QmYkuCegb8oja1BLGjvD2rzfdatySiN91RQHDTJoRe9ZgP"

var (
	ownerAddr = addr(0x01)
	userA     = addr(0x0a)
	userB     = addr(0x0b)
	userC     = addr(0x0c)
)

type testClock struct {
	mu  sync.Mutex
	now int64
}

func (c *testClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = ts
}

func newTestEngine(now int64) (*Engine, *mockState, *events.Recorder, *testClock) {
	state := newMockState()
	rec := &events.Recorder{}
	clock := &testClock{now: now}
	engine := NewEngine(ownerAddr, testBaseURI)
	engine.SetState(state)
	engine.SetEmitter(rec)
	engine.SetNowFunc(clock.Now)
	return engine, state, rec, clock
}
