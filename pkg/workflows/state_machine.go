package workflows

import "sort"

// StateMachine enforces status transitions from a fixed transition table
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a new state machine with allowed transitions
func NewStateMachine(transitions map[string][]string) *StateMachine {
	allowed := make(map[string][]string, len(transitions))
	for from, to := range transitions {
		allowed[from] = append([]string(nil), to...)
	}
	return &StateMachine{allowedTransitions: allowed}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return append([]string(nil), allowed...)
}

// IsTerminal reports whether no transition leaves the given status
func (sm *StateMachine) IsTerminal(status string) bool {
	return len(sm.allowedTransitions[status]) == 0
}

// States returns every status known to the machine, sorted
func (sm *StateMachine) States() []string {
	seen := make(map[string]struct{})
	for from, to := range sm.allowedTransitions {
		seen[from] = struct{}{}
		for _, s := range to {
			seen[s] = struct{}{}
		}
	}
	states := make([]string, 0, len(seen))
	for s := range seen {
		states = append(states, s)
	}
	sort.Strings(states)
	return states
}
