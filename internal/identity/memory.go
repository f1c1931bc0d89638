// Package identity holds in-process user and session repositories used by
// the memory backend and by tests.
package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/biihlive/authcodes/domain"
	"github.com/google/uuid"
)

// UserStore is a mutex-guarded domain.UserRepository.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

var _ domain.UserRepository = (*UserStore)(nil)

func (s *UserStore) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return domain.ErrUserExists
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Status == "" {
		user.Status = domain.UserStatusActive
	}
	s.users[user.ID] = *user
	return nil
}

func (s *UserStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (s *UserStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.TrimSpace(email)
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *UserStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return s.mutate(id, func(u *domain.User) {
		u.PasswordHash = passwordHash
		u.UpdatedAt = time.Now().UTC()
	})
}

func (s *UserStore) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	return s.mutate(id, func(u *domain.User) {
		at = at.UTC()
		u.EmailVerified = true
		u.VerifiedAt = &at
		u.Status = domain.UserStatusActive
		u.UpdatedAt = at
	})
}

func (s *UserStore) mutate(id string, fn func(u *domain.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(&u)
	s.users[id] = u
	return nil
}

// SessionStore is a mutex-guarded domain.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session // keyed by token id
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.Session)}
}

var _ domain.SessionRepository = (*SessionStore)(nil)

func (s *SessionStore) StoreSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	s.sessions[session.TokenID] = *session
	return nil
}

func (s *SessionStore) GetSessionByTokenID(_ context.Context, tokenID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[tokenID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (s *SessionStore) RevokeSessionsByUserID(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var revoked int64
	for id, session := range s.sessions {
		if session.UserID != userID || session.IsRevoked {
			continue
		}
		session.IsRevoked = true
		session.RevokedAt = &now
		s.sessions[id] = session
		revoked++
	}
	return revoked, nil
}
