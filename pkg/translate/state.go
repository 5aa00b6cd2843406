package translate

import "sync"

// Phase represents the current phase of the session lifecycle.
type Phase string

const (
	// PhaseIdle is the initial phase before any connect attempt.
	PhaseIdle Phase = "idle"

	// PhaseConnecting indicates the client is establishing the stream and
	// sending the init frame.
	PhaseConnecting Phase = "connecting"

	// PhaseOpen indicates the session is established and streaming.
	PhaseOpen Phase = "open"

	// PhaseClosing indicates a locally initiated shutdown is in progress.
	PhaseClosing Phase = "closing"

	// PhaseClosed is terminal. A closed session never sends again.
	PhaseClosed Phase = "closed"
)

// IsActive returns true while the session may exchange frames.
func (p Phase) IsActive() bool {
	switch p {
	case PhaseConnecting, PhaseOpen:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once the session can no longer transition.
func (p Phase) IsTerminal() bool {
	return p == PhaseClosed
}

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// stateMachine enforces legal phase sequencing for one session.
type stateMachine struct {
	mu    sync.Mutex
	phase Phase
}

func newStateMachine() *stateMachine {
	return &stateMachine{phase: PhaseIdle}
}

// Phase returns the current phase.
func (m *stateMachine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// beginConnect moves into connecting. It reports false when a connect is
// already in flight or the session is open, in which case the caller must
// treat the request as a duplicate.
func (m *stateMachine) beginConnect() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.phase {
	case PhaseIdle, PhaseClosed:
		m.phase = PhaseConnecting
		return true
	default:
		return false
	}
}

// open completes a successful connect.
func (m *stateMachine) open() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseConnecting {
		return false
	}
	m.phase = PhaseOpen
	return true
}

// beginClose marks a locally initiated shutdown. It reports false when the
// session is already closing or closed.
func (m *stateMachine) beginClose() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.phase {
	case PhaseClosing, PhaseClosed:
		return false
	default:
		m.phase = PhaseClosing
		return true
	}
}

// markClosed moves to the terminal phase and returns the phase the session
// was in beforehand, so callers can tell a remote closure (open/connecting)
// from the tail end of a local close (closing) and from a repeat (closed).
func (m *stateMachine) markClosed() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.phase
	m.phase = PhaseClosed
	return prev
}
