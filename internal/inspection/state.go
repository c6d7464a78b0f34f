package inspection

import (
	"aero-portal/maintenance-portal/inspection-backend/pkg/workflows"
)

// articleTransitions is the article lifecycle. STORED onwards is driven by
// warehouse movement processes; it is listed so those states stay legal here.
var articleTransitions = map[string][]string{
	string(StatusIncoming):          {string(StatusChecking), string(StatusAwaitingPlacement)},
	string(StatusChecking):          {string(StatusStored), string(StatusHold), string(StatusRejected), string(StatusAwaitingPlacement), string(StatusIncoming)},
	string(StatusAwaitingPlacement): {string(StatusStored)},
	string(StatusStored):            {string(StatusDispatch)},
	string(StatusDispatch):          {string(StatusInTransit)},
	string(StatusHold):              {},
	string(StatusRejected):          {},
	string(StatusInTransit):         {},
}

// ArticleStateMachine owns the legal article status transitions
type ArticleStateMachine struct {
	sm *workflows.StateMachine
}

func NewArticleStateMachine() *ArticleStateMachine {
	return &ArticleStateMachine{sm: workflows.NewStateMachine(articleTransitions)}
}

func (m *ArticleStateMachine) CanTransition(from, to ArticleStatus) bool {
	return m.sm.CanTransition(string(from), string(to))
}

func (m *ArticleStateMachine) Next(from ArticleStatus) []ArticleStatus {
	allowed := m.sm.GetAllowedTransitions(string(from))
	out := make([]ArticleStatus, len(allowed))
	for i, s := range allowed {
		out[i] = ArticleStatus(s)
	}
	return out
}

// Target returns the status a decision moves a CHECKING article to
func (d Decision) Target() (ArticleStatus, bool) {
	switch d {
	case DecisionAccept:
		return StatusStored, true
	case DecisionHold:
		return StatusHold, true
	case DecisionReject:
		return StatusRejected, true
	}
	return "", false
}

// receptionEligible reports whether articles in this status may be put on a reception form
func receptionEligible(s ArticleStatus) bool {
	return s == StatusIncoming || s == StatusChecking
}

// Known reports whether s is part of the article lifecycle
func (m *ArticleStateMachine) Known(s ArticleStatus) bool {
	for _, state := range m.sm.States() {
		if state == string(s) {
			return true
		}
	}
	return false
}

func (m *ArticleStateMachine) IsTerminal(s ArticleStatus) bool {
	return m.sm.IsTerminal(string(s))
}
