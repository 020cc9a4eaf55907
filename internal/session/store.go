// Package session owns the live, in-memory conversation state. It is the
// only holder of Session values; callers receive copies.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/logging"
)

const persistTimeout = 10 * time.Second

// Store is an in-memory session store with best-effort persistence of
// user info updates.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	persist  domain.Persistence // optional
	pending  sync.WaitGroup
	log      *logging.Logger
}

// NewStore creates a session store. persist may be nil.
func NewStore(persist domain.Persistence, log *logging.Logger) *Store {
	return &Store{
		sessions: make(map[string]*domain.Session),
		persist:  persist,
		log:      log.Sub("session"),
	}
}

// Create starts a session in the gathering_info phase with an empty
// sequence and history. An existing session with the same id is replaced.
func (s *Store) Create(id string) domain.Session {
	now := time.Now()
	sess := &domain.Session{
		ID:        id,
		Sequence:  []domain.OutreachMessage{},
		Phase:     domain.PhaseGatheringInfo,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	_, replaced := s.sessions[id]
	s.sessions[id] = sess
	s.mu.Unlock()

	s.log.Info().Str("sessionId", id).Bool("replaced", replaced).Msg("session created")
	return clone(sess)
}

// Get returns a copy of the session.
func (s *Store) Get(id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, fmt.Errorf("get %s: %w", id, domain.ErrSessionNotFound)
	}
	return clone(sess), nil
}

// Exists reports whether a session is live.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

// UpdateUserInfo replaces the session's user info wholesale and persists
// it in the background. Persistence failures are logged only.
func (s *Store) UpdateUserInfo(id string, info domain.UserInfo) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("update user info %s: %w", id, domain.ErrSessionNotFound)
	}
	sess.UserInfo = info
	sess.UpdatedAt = time.Now()
	s.mu.Unlock()

	if s.persist == nil {
		return nil
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.persist.UpsertSessionRecord(ctx, id, info); err != nil {
			s.log.Error().Err(err).Str("sessionId", id).Msg("failed to persist user info")
		}
	}()
	return nil
}

// AppendHistory adds one turn to the session's history. Unknown sessions
// are ignored.
func (s *Store) AppendHistory(id string, entry domain.HistoryEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		s.log.Debug().Str("sessionId", id).Str("role", entry.Role).Msg("history append for unknown session ignored")
		return
	}
	sess.History = append(sess.History, entry)
	sess.UpdatedAt = entry.Timestamp
}

// Update applies fn to the live session under the store lock and returns
// a copy of the result. If fn returns an error the session is left as it
// was before the call.
func (s *Store) Update(id string, fn func(*domain.Session) error) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, fmt.Errorf("update %s: %w", id, domain.ErrSessionNotFound)
	}

	work := clone(sess)
	if err := fn(&work); err != nil {
		return clone(sess), err
	}
	work.ID = sess.ID
	work.UpdatedAt = time.Now()
	*sess = work
	return clone(sess), nil
}

// Delete removes a session and its history. It reports whether the
// session existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// List returns all live session ids, sorted.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Flush blocks until background persistence calls have finished.
func (s *Store) Flush() {
	s.pending.Wait()
}

func clone(sess *domain.Session) domain.Session {
	out := *sess
	out.Sequence = domain.CloneSequence(sess.Sequence)
	out.History = make([]domain.HistoryEntry, len(sess.History))
	for i, h := range sess.History {
		if h.ToolCalls != nil {
			h.ToolCalls = append([]domain.ToolCall(nil), h.ToolCalls...)
		}
		out.History[i] = h
	}
	return out
}
