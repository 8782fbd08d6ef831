package user

import (
	"context"
	"sync"

	"kycgate/internal/identity/models"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

// InMemoryUserStore keeps users in maps with secondary indexes on email and
// phone. Index checks and inserts happen under one write lock, so uniqueness
// holds under concurrent registration.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[id.UserID]*models.User
	byEmail map[string]id.UserID
	byPhone map[string]id.UserID
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
		byPhone: make(map[string]id.UserID),
	}
}

// Create inserts a new user, rejecting duplicate email or phone.
// Email is checked first.
func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	emailKey := models.EmailKey(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[emailKey]; taken {
		return models.ErrEmailTaken
	}
	if _, taken := s.byPhone[user.Phone]; taken {
		return models.ErrPhoneTaken
	}
	if _, exists := s.users[user.ID]; exists {
		return sentinel.ErrConflict
	}

	s.users[user.ID] = user.Clone()
	s.byEmail[emailKey] = user.ID
	s.byPhone[user.Phone] = user.ID
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok {
		return u.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if userID, ok := s.byEmail[models.EmailKey(email)]; ok {
		return s.users[userID].Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) FindByPhone(_ context.Context, phone string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if userID, ok := s.byPhone[phone]; ok {
		return s.users[userID].Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// UpdateKycState persists the verification fields of an existing user.
// Identity fields are immutable and ignored.
func (s *InMemoryUserStore) UpdateKycState(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	updated := existing.Clone()
	updated.KycStatus = user.KycStatus
	updated.KycVerifiedAt = nil
	if user.KycVerifiedAt != nil {
		t := *user.KycVerifiedAt
		updated.KycVerifiedAt = &t
	}
	s.users[user.ID] = updated
	return nil
}
