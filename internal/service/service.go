// Package service is the core surface front-ends call: session lifecycle,
// user turns, manual edits and reconnects. Turns for one session run one
// at a time.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/soyeahso/helix/internal/agent"
	"github.com/soyeahso/helix/internal/domain"
	"github.com/soyeahso/helix/internal/hooks"
	"github.com/soyeahso/helix/internal/logging"
	"github.com/soyeahso/helix/internal/notify"
	"github.com/soyeahso/helix/internal/sequence"
	"github.com/soyeahso/helix/internal/session"
)

// Service wires the session store and agent runner behind per-session locks.
type Service struct {
	sessions *session.Store
	runner   *agent.Runner
	notifier domain.Notifier
	hooks    *hooks.Manager // optional

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	log *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithHooks emits lifecycle events on hm.
func WithHooks(hm *hooks.Manager) Option {
	return func(s *Service) { s.hooks = hm }
}

// New creates a service. notifier may be nil.
func New(sessions *session.Store, runner *agent.Runner, notifier domain.Notifier, log *logging.Logger, opts ...Option) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	s := &Service{
		sessions: sessions,
		runner:   runner,
		notifier: notifier,
		locks:    make(map[string]*sync.Mutex),
		log:      log.Sub("service"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// lock serializes work on one session id and returns the unlock func.
func (s *Service) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) emit(event, sessionID string, data map[string]any) {
	if s.hooks != nil {
		s.hooks.EmitAsync(context.Background(), event, sessionID, data)
	}
}

// CreateSession starts a session under a fresh id.
func (s *Service) CreateSession() string {
	id := uuid.NewString()
	s.sessions.Create(id)
	s.emit(hooks.EventSessionCreated, id, nil)
	return id
}

// Ensure creates the session id if it does not exist yet and reports
// whether it did.
func (s *Service) Ensure(id string) bool {
	unlock := s.lock(id)
	defer unlock()
	if s.sessions.Exists(id) {
		return false
	}
	s.sessions.Create(id)
	s.emit(hooks.EventSessionCreated, id, map[string]any{"source": "ensure"})
	return true
}

// UserFields are the profile values a front-end may set directly.
type UserFields struct {
	Name              string `json:"name"`
	Company           string `json:"company"`
	AdditionalContext string `json:"additional_context"`
}

// UpdateUserInfo replaces the session's user info with a new user id and
// the given fields. Earlier profile values are discarded.
func (s *Service) UpdateUserInfo(id string, f UserFields) (string, error) {
	unlock := s.lock(id)
	defer unlock()

	info := domain.UserInfo{
		ID:                uuid.NewString(),
		Name:              f.Name,
		Company:           f.Company,
		AdditionalContext: f.AdditionalContext,
	}
	if err := s.sessions.UpdateUserInfo(id, info); err != nil {
		return "", err
	}
	s.log.Info().Str("sessionId", id).Str("userId", info.ID).Msg("user info updated")
	return info.ID, nil
}

// HandleUserTurn runs one conversational turn and pushes the reply as a
// chat message before returning it.
func (s *Service) HandleUserTurn(ctx context.Context, id, text string) string {
	unlock := s.lock(id)
	defer unlock()

	s.emit(hooks.EventTurnStarted, id, map[string]any{"message": text})
	res := s.runner.Run(ctx, id, text)
	s.notifier.ChatMessage(id, res.Response, domain.RoleAssistant)
	s.emit(hooks.EventTurnCompleted, id, map[string]any{
		"phase":     string(res.Phase),
		"toolCalls": len(res.Tools),
	})
	return res.Response
}

// HandleManualEdit replaces one message's content as typed by the user.
func (s *Service) HandleManualEdit(id, messageID, content string) error {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.sessions.Update(id, func(sess *domain.Session) error {
		seq, err := sequence.SetContent(sess.Sequence, messageID, content)
		if err != nil {
			return err
		}
		sess.Sequence = seq
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("sessionId", id).Str("messageId", messageID).Msg("manual edit rejected")
		return err
	}
	s.log.Info().Str("sessionId", id).Str("messageId", messageID).Msg("message updated manually")
	s.notifier.SequenceChanged(id, sess.Sequence)
	return nil
}

// Rejoin returns the live sequence and pushes it to listeners. A session
// that no longer exists is recreated empty.
func (s *Service) Rejoin(id string) []domain.OutreachMessage {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.sessions.Get(id)
	if err != nil {
		s.log.Info().Str("sessionId", id).Msg("rejoin of unknown session, recreating")
		sess = s.sessions.Create(id)
		s.emit(hooks.EventSessionCreated, id, map[string]any{"source": "rejoin"})
		return sess.Sequence
	}
	s.notifier.SequenceChanged(id, sess.Sequence)
	return sess.Sequence
}

// Session returns a copy of the live session.
func (s *Service) Session(id string) (domain.Session, error) {
	return s.sessions.Get(id)
}

// Sequence returns the live sequence of a session.
func (s *Service) Sequence(id string) ([]domain.OutreachMessage, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Sequence, nil
}

// DeleteSession discards a session and its history.
func (s *Service) DeleteSession(id string) error {
	unlock := s.lock(id)
	defer unlock()

	if !s.sessions.Delete(id) {
		return fmt.Errorf("delete %s: %w", id, domain.ErrSessionNotFound)
	}
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
	s.emit(hooks.EventSessionDeleted, id, nil)
	return nil
}

// Sessions lists live session ids.
func (s *Service) Sessions() []string {
	return s.sessions.List()
}
