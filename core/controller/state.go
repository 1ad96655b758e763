package controller

import (
	"sync"

	"github.com/smart-ev/chargectl/core/model"
)

// Phase tracks the lifecycle of the control loop.
type Phase int

const (
	PhaseStarting Phase = iota
	PhaseRunning
	PhaseShuttingDown
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "STARTING"
	case PhaseRunning:
		return "RUNNING"
	case PhaseShuttingDown:
		return "SHUTTING_DOWN"
	case PhaseStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// State is the loop's only mutable bookkeeping: the lifecycle phase, the last
// decision actually accepted by the broker and the battery reading seen on
// the latest cycle. A fresh State carries no decision, so the first cycle
// always publishes.
type State struct {
	mu           sync.Mutex
	phase        Phase
	lastDecision model.ChargeDecision
	lastBattery  model.BatteryState
	batteryKnown bool
}

// Snapshot is a consistent copy of State for logs, diagnostics and tests.
type Snapshot struct {
	Phase        Phase
	LastDecision model.ChargeDecision
	LastBattery  model.BatteryState
	BatteryKnown bool
}

func NewState() *State {
	return &State{phase: PhaseStarting}
}

func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *State) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// LastDecision returns the decision most recently accepted by the broker,
// DecisionUnknown before the first successful publish.
func (s *State) LastDecision() model.ChargeDecision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDecision
}

// recordDecision is called only after the broker accepted the publish, so a
// failed publish leaves the previous decision in place and the next cycle
// retries the change.
func (s *State) recordDecision(d model.ChargeDecision) {
	s.mu.Lock()
	s.lastDecision = d
	s.mu.Unlock()
}

func (s *State) recordBattery(b model.BatteryState, known bool) {
	s.mu.Lock()
	s.lastBattery = b
	s.batteryKnown = known
	s.mu.Unlock()
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Phase:        s.phase,
		LastDecision: s.lastDecision,
		LastBattery:  s.lastBattery,
		BatteryKnown: s.batteryKnown,
	}
}
