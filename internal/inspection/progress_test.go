package inspection

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func workedExampleSession() *Session {
	groups := NewChecklistResolver(zap.NewNop()).Resolve([]CheckDefinition{def(1, "1", true), def(2, "4", true)}, false)
	return NewSession(groups)
}

func TestSessionWorkedExample(t *testing.T) {
	s := workedExampleSession()

	require.NoError(t, s.Set("incoming_check_1", AnswerOK))
	snap := s.Snapshot()
	assert.Equal(t, 1, snap.Done)
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, 1, snap.OKCount)
	assert.Equal(t, 50.0, snap.ProgressPercent)
	assert.False(t, snap.AcceptEligible)
	require.Len(t, snap.Blocking, 1)
	assert.Equal(t, BlockingItem{
		Key:    "incoming_check_4",
		Label:  "check 4",
		Group:  GroupDocumentation,
		Reason: BlockingUnanswered,
	}, snap.Blocking[0])

	require.NoError(t, s.Set("incoming_check_4", AnswerNotOK))
	snap = s.Snapshot()
	assert.Equal(t, 2, snap.Done)
	assert.Equal(t, 100.0, snap.ProgressPercent)
	assert.True(t, snap.AcceptEligible)
	assert.Empty(t, snap.Blocking)
}

func TestSessionRequiredItemMustBeOK(t *testing.T) {
	s := workedExampleSession()

	require.NoError(t, s.Set("incoming_check_4", AnswerOK))
	for _, v := range []AnswerValue{AnswerNotOK, AnswerNotApplicable} {
		require.NoError(t, s.Set("incoming_check_1", v))
		snap := s.Snapshot()
		assert.Equal(t, 2, snap.Done)
		assert.False(t, snap.AcceptEligible)
		require.Len(t, snap.Blocking, 1)
		assert.True(t, snap.Blocking[0].RequiredForAccept)
		assert.Equal(t, BlockingReason(v), snap.Blocking[0].Reason)
	}

	require.NoError(t, s.Set("incoming_check_1", AnswerOK))
	assert.True(t, s.Snapshot().AcceptEligible)
}

func TestSessionRejectsUnknownKeyAndValue(t *testing.T) {
	s := workedExampleSession()

	err := s.Set("incoming_check_99", AnswerOK)
	assert.True(t, errors.Is(err, ErrInvalidChecklistKey))
	assert.Equal(t, KindInvalidChecklistKey, KindOf(err))

	err = s.Set("incoming_check_1", AnswerValue("MAYBE"))
	assert.True(t, errors.Is(err, ErrValidationFailed))
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "value", e.Field)

	assert.Equal(t, 0, s.Snapshot().Done)
}

func TestSessionSetAllIsAllOrNothing(t *testing.T) {
	s := workedExampleSession()

	err := s.SetAll([]Answer{
		{Key: "incoming_check_1", Value: AnswerOK},
		{Key: "incoming_check_missing", Value: AnswerOK},
	})
	assert.ErrorIs(t, err, ErrInvalidChecklistKey)
	assert.Equal(t, 0, s.Snapshot().Done)

	require.NoError(t, s.SetAll([]Answer{
		{Key: "incoming_check_1", Value: AnswerOK},
		{Key: "incoming_check_4", Value: AnswerNotApplicable},
	}))
	assert.Equal(t, 2, s.Snapshot().Done)
}

func TestSessionDoneIsMonotonic(t *testing.T) {
	s := workedExampleSession()

	require.NoError(t, s.Set("incoming_check_1", AnswerOK))
	require.NoError(t, s.Set("incoming_check_1", AnswerNotOK))
	require.NoError(t, s.Set("incoming_check_1", AnswerNotApplicable))

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.Done)
	assert.Equal(t, 0, snap.OKCount)
	assert.Equal(t, AnswerNotApplicable, snap.Answers["incoming_check_1"])
}

func TestEmptySessionIsComplete(t *testing.T) {
	snap := NewSession(nil).Snapshot()
	assert.Equal(t, 0, snap.Total)
	assert.Equal(t, 100.0, snap.ProgressPercent)
	assert.True(t, snap.AcceptEligible)
}

func TestSessionDuplicateKeysShareSlot(t *testing.T) {
	groups := NewChecklistResolver(zap.NewNop()).Resolve([]CheckDefinition{def(1, "12", false), def(2, "12", true)}, true)
	s := NewSession(groups)

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.Total)
	require.Len(t, snap.Blocking, 1)
	assert.True(t, snap.Blocking[0].RequiredForAccept)

	require.NoError(t, s.Set("incoming_check_12", AnswerNotOK))
	assert.False(t, s.Snapshot().AcceptEligible)
}

func TestSessionConcurrentAnswers(t *testing.T) {
	defs := make([]CheckDefinition, 0, 50)
	for i := 1; i <= 50; i++ {
		defs = append(defs, def(int64(i), string(rune('A'+i%26))+string(rune('a'+i/26)), false))
	}
	s := NewSession(NewChecklistResolver(zap.NewNop()).Resolve(defs, false))
	total := s.Snapshot().Total

	var wg sync.WaitGroup
	for _, d := range defs {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			_ = s.Set(checklistKeyPrefix+code, AnswerOK)
			_ = s.Snapshot()
		}(d.Code)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, total, snap.Done)
	assert.True(t, snap.AcceptEligible)
}

func TestSessionCaptureListsEveryItem(t *testing.T) {
	s := workedExampleSession()
	require.NoError(t, s.Set("incoming_check_1", AnswerOK))

	snap, lines := s.capture()
	assert.Equal(t, 1, snap.Done)
	require.Len(t, lines, 2)
	assert.Equal(t, RecordedAnswer{Key: "incoming_check_1", Label: "check 1", Group: GroupPhysicalMatch, RequiredForAccept: true, Value: AnswerOK}, lines[0])
	assert.Equal(t, AnswerValue(""), lines[1].Value)
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore()
	groups := NewChecklistResolver(zap.NewNop()).Resolve([]CheckDefinition{def(1, "1", true)}, false)

	first := store.Open("tenant-a", 1, groups)
	require.NoError(t, first.Set("incoming_check_1", AnswerOK))

	assert.Same(t, first, store.Open("tenant-a", 1, groups))
	assert.NotSame(t, first, store.Open("tenant-b", 1, groups))

	got, ok := store.Get("tenant-a", 1)
	require.True(t, ok)
	assert.Equal(t, 1, got.Snapshot().Done)

	store.Close("tenant-a", 1)
	_, ok = store.Get("tenant-a", 1)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())
}
