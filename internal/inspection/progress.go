package inspection

import (
	"fmt"
	"sync"
	"time"
)

// BlockingReason explains why an item prevents acceptance
type BlockingReason string

const (
	BlockingUnanswered    BlockingReason = "UNANSWERED"
	BlockingNotOK         BlockingReason = "NOT_OK"
	BlockingNotApplicable BlockingReason = "NOT_APPLICABLE"
)

type BlockingItem struct {
	Key               string         `json:"key"`
	Label             string         `json:"label"`
	Group             string         `json:"group"`
	RequiredForAccept bool           `json:"required_for_accept"`
	Reason            BlockingReason `json:"reason"`
}

type ProgressSnapshot struct {
	Done            int                    `json:"done"`
	Total           int                    `json:"total"`
	OKCount         int                    `json:"ok_count"`
	ProgressPercent float64                `json:"progress_percent"`
	AcceptEligible  bool                   `json:"accept_eligible"`
	Blocking        []BlockingItem         `json:"blocking"`
	Answers         map[string]AnswerValue `json:"answers"`
}

// Answer is one submitted checklist answer
type Answer struct {
	Key   string      `json:"key"`
	Value AnswerValue `json:"value"`
}

type sessionItem struct {
	key      string
	label    string
	group    string
	required bool
}

// Session records one inspection pass over a closed set of checklist keys.
// It is safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	items     []sessionItem
	index     map[string]int
	answers   map[string]AnswerValue
	updatedAt time.Time
	// sealed while a decision or reception is committing its captured answers
	sealed bool
}

// NewSession creates a session over the resolved groups. Items sharing a key
// share one answer, required when any of them is.
func NewSession(groups []ChecklistGroup) *Session {
	s := &Session{
		index:     make(map[string]int),
		answers:   make(map[string]AnswerValue),
		updatedAt: time.Now(),
	}
	for _, g := range groups {
		for _, item := range g.Items {
			if i, ok := s.index[item.Key]; ok {
				s.items[i].required = s.items[i].required || item.RequiredForAccept
				continue
			}
			s.index[item.Key] = len(s.items)
			s.items = append(s.items, sessionItem{
				key:      item.Key,
				label:    item.Label,
				group:    g.Title,
				required: item.RequiredForAccept,
			})
		}
	}
	return s
}

// Set stores or overwrites the answer for key
func (s *Session) Set(key string, value AnswerValue) error {
	return s.SetAll([]Answer{{Key: key, Value: value}})
}

// SetAll applies every answer or, when any of them is invalid, none
func (s *Session) SetAll(answers []Answer) error {
	for _, a := range answers {
		if !a.Value.Valid() {
			return validationError("value", fmt.Sprintf("unsupported answer %q for %s", a.Value, a.Key))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return &Error{Kind: KindConcurrentModification, Message: "inspection is being finalized; answers are closed"}
	}
	for _, a := range answers {
		if _, ok := s.index[a.Key]; !ok {
			return &Error{Kind: KindInvalidChecklistKey, Field: "key", Message: fmt.Sprintf("unknown checklist key %q", a.Key)}
		}
	}
	for _, a := range answers {
		s.answers[a.Key] = a.Value
	}
	s.updatedAt = time.Now()
	return nil
}

func (s *Session) Snapshot() ProgressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() ProgressSnapshot {
	snap := ProgressSnapshot{
		Total:    len(s.items),
		Blocking: []BlockingItem{},
		Answers:  make(map[string]AnswerValue, len(s.answers)),
	}

	for _, item := range s.items {
		value, answered := s.answers[item.key]
		if answered {
			snap.Done++
			snap.Answers[item.key] = value
			if value == AnswerOK {
				snap.OKCount++
			}
		}

		var reason BlockingReason
		switch {
		case !answered:
			reason = BlockingUnanswered
		case item.required && value == AnswerNotOK:
			reason = BlockingNotOK
		case item.required && value == AnswerNotApplicable:
			reason = BlockingNotApplicable
		default:
			continue
		}
		snap.Blocking = append(snap.Blocking, BlockingItem{
			Key:               item.key,
			Label:             item.label,
			Group:             item.group,
			RequiredForAccept: item.required,
			Reason:            reason,
		})
	}

	if snap.Total == 0 {
		snap.ProgressPercent = 100
	} else {
		snap.ProgressPercent = float64(snap.Done) / float64(snap.Total) * 100
	}
	snap.AcceptEligible = len(snap.Blocking) == 0
	return snap
}

// UpdatedAt returns when the session last received an answer
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// capture returns the progress and the answers in checklist order under one lock
func (s *Session) capture() (ProgressSnapshot, AnswerLines) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captureLocked()
}

// seal captures the session and refuses answers until unseal. It reports
// false when another finalization holds the session already.
func (s *Session) seal() (ProgressSnapshot, AnswerLines, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return ProgressSnapshot{}, nil, false
	}
	s.sealed = true
	snap, lines := s.captureLocked()
	return snap, lines, true
}

func (s *Session) unseal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = false
}

func (s *Session) captureLocked() (ProgressSnapshot, AnswerLines) {
	lines := make(AnswerLines, 0, len(s.items))
	for _, item := range s.items {
		lines = append(lines, RecordedAnswer{
			Key:               item.key,
			Label:             item.label,
			Group:             item.group,
			RequiredForAccept: item.required,
			Value:             s.answers[item.key],
		})
	}
	return s.snapshot(), lines
}
