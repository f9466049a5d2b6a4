package issuance

import (
	"strings"
	"sync"
	"time"

	"mintgate/core/events"
)

type engineState interface {
	IssuanceRolesGet(addr [20]byte) (RoleSet, error)
	IssuanceRolesPut(addr [20]byte, roles RoleSet) error
	IssuancePhasesGet() (PhaseClock, bool, error)
	IssuancePhasesPut(clock PhaseClock) error
	IssuanceItemGet(id uint64) (*Item, bool, error)
	IssuanceNextID() (uint64, error)
	IssuanceBalanceGet(owner [20]byte) (uint64, error)
	IssuanceCommit(commit *Commit) error
}

// Engine owns the registry: role assignments, the phase clock and the item
// ledger. Every mutation runs its full check-then-act sequence under a
// single write lock; queries share a read lock.
type Engine struct {
	mu      sync.RWMutex
	state   engineState
	owner   [20]byte
	baseURI string
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs an engine for the given owner. The base URI is fixed
// for the lifetime of the engine; a trailing slash is dropped so resolved
// URIs never contain a doubled separator.
func NewEngine(owner [20]byte, baseURI string) *Engine {
	return &Engine{
		owner:   owner,
		baseURI: strings.TrimRight(strings.TrimSpace(baseURI), "/"),
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
}

// SetEmitter configures the event emitter. Passing nil installs a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Owner returns the distinguished owner address.
func (e *Engine) Owner() [20]byte { return e.owner }

// BaseURI returns the normalised metadata base URI.
func (e *Engine) BaseURI() string { return e.baseURI }

// Bootstrap seeds the phase clock from configuration when the backing state
// has never recorded one. A stored clock always wins so that owner updates
// survive restarts.
func (e *Engine) Bootstrap(clock PhaseClock) (PhaseClock, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return PhaseClock{}, errNilState
	}
	stored, ok, err := e.state.IssuancePhasesGet()
	if err != nil {
		return PhaseClock{}, wrapState("load phases", err)
	}
	if ok {
		return stored, nil
	}
	if err := e.state.IssuancePhasesPut(clock); err != nil {
		return PhaseClock{}, wrapState("store phases", err)
	}
	return clock, nil
}

func (e *Engine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}
