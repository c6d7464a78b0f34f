package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestMachine() *StateMachine {
	return NewStateMachine(map[string][]string{
		"DRAFT":     {"SUBMITTED"},
		"SUBMITTED": {"APPROVED", "REJECTED"},
		"APPROVED":  {},
	})
}

func TestCanTransition(t *testing.T) {
	sm := newTestMachine()

	assert.True(t, sm.CanTransition("DRAFT", "SUBMITTED"))
	assert.True(t, sm.CanTransition("SUBMITTED", "REJECTED"))
	assert.False(t, sm.CanTransition("DRAFT", "APPROVED"))
	assert.False(t, sm.CanTransition("APPROVED", "DRAFT"))
	assert.False(t, sm.CanTransition("UNKNOWN", "DRAFT"))
}

func TestGetAllowedTransitionsReturnsCopy(t *testing.T) {
	sm := newTestMachine()

	next := sm.GetAllowedTransitions("SUBMITTED")
	assert.Equal(t, []string{"APPROVED", "REJECTED"}, next)

	next[0] = "DRAFT"
	assert.True(t, sm.CanTransition("SUBMITTED", "APPROVED"))
	assert.Empty(t, sm.GetAllowedTransitions("UNKNOWN"))
}

func TestTableIsCopiedOnConstruction(t *testing.T) {
	table := map[string][]string{"A": {"B"}}
	sm := NewStateMachine(table)

	table["A"][0] = "C"
	assert.True(t, sm.CanTransition("A", "B"))
	assert.False(t, sm.CanTransition("A", "C"))
}

func TestIsTerminalAndStates(t *testing.T) {
	sm := newTestMachine()

	assert.True(t, sm.IsTerminal("APPROVED"))
	assert.True(t, sm.IsTerminal("REJECTED"))
	assert.False(t, sm.IsTerminal("DRAFT"))
	assert.Equal(t, []string{"APPROVED", "DRAFT", "REJECTED", "SUBMITTED"}, sm.States())
}
