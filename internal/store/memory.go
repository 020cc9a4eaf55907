package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/soyeahso/helix/internal/domain"
)

// Memory implements domain.Persistence and Reader without a database.
// Nothing survives the process.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*SessionRecord
	messages map[string][]domain.OutreachMessage
}

// NewMemory creates an empty in-memory record store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*SessionRecord),
		messages: make(map[string][]domain.OutreachMessage),
	}
}

func (m *Memory) upsert(id string, info domain.UserInfo, now time.Time) *SessionRecord {
	rec, ok := m.sessions[id]
	if !ok {
		rec = &SessionRecord{ID: id, CreatedAt: now}
		m.sessions[id] = rec
	}
	rec.UserInfo = info
	rec.UserID = info.ID
	rec.UserName = info.Name
	rec.UpdatedAt = now
	return rec
}

func (m *Memory) UpsertSessionRecord(_ context.Context, sessionID string, info domain.UserInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsert(sessionID, info, time.Now())
	return nil
}

func (m *Memory) UpsertSequenceRecords(_ context.Context, sessionID string, info domain.UserInfo, messages []domain.OutreachMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	rec := m.upsert(sessionID, info, now)
	rec.FinalizedAt = &now
	m.messages[sessionID] = domain.CloneSequence(messages)
	rec.Messages = len(messages)
	return nil
}

func (m *Memory) ListSessions(context.Context) ([]SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SessionRecord, 0, len(m.sessions))
	for _, rec := range m.sessions {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) GetSession(_ context.Context, id string) (*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (m *Memory) GetSequence(_ context.Context, sessionID string) ([]domain.OutreachMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.CloneSequence(m.messages[sessionID]), nil
}
