package model

// ChargeDecision is the outcome of a control cycle.
type ChargeDecision int

const (
	// DecisionUnknown means no decision has been issued yet. It is never
	// published to the vehicle.
	DecisionUnknown ChargeDecision = iota
	DecisionStart
	DecisionStop
)

// String returns the exact payload published on the command topic.
func (d ChargeDecision) String() string {
	switch d {
	case DecisionStart:
		return "START"
	case DecisionStop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}
