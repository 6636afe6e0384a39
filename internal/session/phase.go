package session

import "fmt"

// Phase represents a pipeline phase for a session.
type Phase string

const (
	// PhaseIdle is the initial phase of a freshly created session.
	PhaseIdle Phase = "idle"

	// PhaseResearching covers company resolution and data fetching.
	PhaseResearching Phase = "researching"

	// PhaseAwaitingConfirmation is a wait state: a recommendation exists and
	// the caller must confirm the model type before planning begins.
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"

	// PhasePlanning covers assumption derivation and scenario generation.
	PhasePlanning Phase = "planning"

	// PhaseBuilding covers rendering, QA, and delivery preparation.
	PhaseBuilding Phase = "building"

	// PhaseDelivered is terminal: the artifact is ready for download.
	PhaseDelivered Phase = "delivered"

	// PhaseError is terminal: the session failed with a user-facing message.
	PhaseError Phase = "error"
)

// legalEdges is the phase transition graph. Error is reachable from any
// non-terminal phase and is handled separately in Transition.
//
// The researching -> building edge is the auto-confirm variant, where the
// confirmation wait state is skipped once a recommendation exists.
var legalEdges = map[Phase][]Phase{
	PhaseIdle:                 {PhaseResearching},
	PhaseResearching:          {PhaseAwaitingConfirmation, PhaseBuilding},
	PhaseAwaitingConfirmation: {PhasePlanning},
	PhasePlanning:             {PhaseBuilding},
	PhaseBuilding:             {PhaseDelivered},
}

// Terminal reports whether p is a terminal phase. No stage executor may run
// against a session once it reaches a terminal phase.
func (p Phase) Terminal() bool {
	return p == PhaseDelivered || p == PhaseError
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseIdle, PhaseResearching, PhaseAwaitingConfirmation,
		PhasePlanning, PhaseBuilding, PhaseDelivered, PhaseError:
		return true
	}
	return false
}

// Transition validates the edge from -> to, returning an error for illegal
// transitions (including any transition out of a terminal phase).
func Transition(from, to Phase) error {
	if !from.Valid() {
		return fmt.Errorf("invalid current phase: %s", from)
	}
	if !to.Valid() {
		return fmt.Errorf("invalid target phase: %s", to)
	}
	if from.Terminal() {
		return fmt.Errorf("cannot transition from terminal phase %s", from)
	}
	if to == PhaseError {
		return nil
	}
	for _, next := range legalEdges[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("illegal phase transition %s -> %s", from, to)
}
