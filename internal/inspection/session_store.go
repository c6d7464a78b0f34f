package inspection

import (
	"sort"
	"sync"
)

type sessionKey struct {
	tenantID  string
	articleID int64
}

// SessionStore holds the live inspection sessions of CHECKING articles.
// Sessions are process-local: every request for one tenant must reach the
// same instance (sticky routing on the tenant claim). An article whose session
// is lost restarts from an empty checklist.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[sessionKey]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[sessionKey]*Session)}
}

// Open returns the live session for the article, creating one over groups when none exists
func (s *SessionStore) Open(tenantID string, articleID int64, groups []ChecklistGroup) *Session {
	session, _ := s.Resume(tenantID, articleID, groups)
	return session
}

// Resume is Open that also reports whether the session already existed
func (s *SessionStore) Resume(tenantID string, articleID int64, groups []ChecklistGroup) (*Session, bool) {
	key := sessionKey{tenantID: tenantID, articleID: articleID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[key]; ok {
		return session, true
	}
	session := NewSession(groups)
	s.sessions[key] = session
	return session, false
}

func (s *SessionStore) Get(tenantID string, articleID int64) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionKey{tenantID: tenantID, articleID: articleID}]
	return session, ok
}

func (s *SessionStore) Close(tenantID string, articleID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey{tenantID: tenantID, articleID: articleID})
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// LiveSession identifies an open session at the time it was listed
type LiveSession struct {
	TenantID  string
	ArticleID int64
	Session   *Session
}

// List returns the open sessions ordered by tenant then article
func (s *SessionStore) List() []LiveSession {
	s.mu.RLock()
	live := make([]LiveSession, 0, len(s.sessions))
	for key, session := range s.sessions {
		live = append(live, LiveSession{TenantID: key.tenantID, ArticleID: key.articleID, Session: session})
	}
	s.mu.RUnlock()

	sort.Slice(live, func(i, j int) bool {
		if live[i].TenantID != live[j].TenantID {
			return live[i].TenantID < live[j].TenantID
		}
		return live[i].ArticleID < live[j].ArticleID
	})
	return live
}

// CloseIf closes the article's session only while it is still session.
// A session reopened in the meantime is left alone.
func (s *SessionStore) CloseIf(tenantID string, articleID int64, session *Session) bool {
	key := sessionKey{tenantID: tenantID, articleID: articleID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[key] != session {
		return false
	}
	delete(s.sessions, key)
	return true
}
