package session

import "fmt"

// Phase is the externally visible connection status. It drives observers
// only; Connect's re-entrancy guard is separate.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseNegotiating
	PhaseIceGathering
	PhaseAwaitingAnswer
	PhaseConnected
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseIdle:           "idle",
	PhaseNegotiating:    "negotiating",
	PhaseIceGathering:   "ice-gathering",
	PhaseAwaitingAnswer: "awaiting-answer",
	PhaseConnected:      "connected",
	PhaseFailed:         "failed",
}

func (p Phase) String() string {
	if int(p) >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// MarshalText renders the phase name in JSON.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// trickleState gates candidate trickling. Transitions only move forward:
// notOffered → offerSent → peerAssigned.
type trickleState int

const (
	notOffered trickleState = iota
	offerSent
	peerAssigned
)

// runState guards Connect against re-entry.
type runState int

const (
	runIdle runState = iota
	runActive
	runDone
)
