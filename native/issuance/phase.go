package issuance

import "mintgate/core/events"

// SetRestrictedStartTime overwrites the restricted phase start. Owner only.
// The new value is not required to move forward.
func (e *Engine) SetRestrictedStartTime(caller [20]byte, ts int64) error {
	return e.setPhaseStart(caller, PhaseRestricted, ts)
}

// SetPublicStartTime overwrites the public phase start. Owner only.
func (e *Engine) SetPublicStartTime(caller [20]byte, ts int64) error {
	return e.setPhaseStart(caller, PhasePublic, ts)
}

func (e *Engine) setPhaseStart(caller [20]byte, phase Phase, ts int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	clock, err := e.phasesLocked()
	if err != nil {
		return err
	}
	switch phase {
	case PhaseRestricted:
		clock.RestrictedStart = ts
	case PhasePublic:
		clock.PublicStart = ts
	default:
		return errInvalidPhase
	}
	if err := e.state.IssuancePhasesPut(clock); err != nil {
		return wrapState("store phases", err)
	}
	e.emit(events.IssuancePhaseUpdated{
		Phase:           string(phase),
		Start:           ts,
		RestrictedStart: clock.RestrictedStart,
		PublicStart:     clock.PublicStart,
	})
	return nil
}

// Phases returns the current phase clock.
func (e *Engine) Phases() (PhaseClock, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phasesLocked()
}

// Status classifies the engine's current time against the phase clock.
func (e *Engine) Status() (PhaseStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	clock, err := e.phasesLocked()
	if err != nil {
		return PhaseStatus{}, err
	}
	now := e.now()
	return PhaseStatus{
		Clock:          clock,
		Now:            now,
		RestrictedOpen: clock.IsRestrictedOpen(now),
		PublicOpen:     clock.IsPublicOpen(now),
	}, nil
}

// phasesLocked loads the clock. An unset clock reads as the zero value,
// which leaves both phases open from the epoch; daemons call Bootstrap
// before serving.
func (e *Engine) phasesLocked() (PhaseClock, error) {
	if e.state == nil {
		return PhaseClock{}, errNilState
	}
	clock, _, err := e.state.IssuancePhasesGet()
	if err != nil {
		return PhaseClock{}, wrapState("load phases", err)
	}
	return clock, nil
}
