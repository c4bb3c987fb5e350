package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gitlab.com/yelinaung/expense-claims/internal/models"
)

// UserStore keeps users in memory.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]models.User
	byEmail map[string]string
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]models.User),
		byEmail: make(map[string]string),
	}
}

// Create stores a new user. Emails are unique regardless of case.
func (s *UserStore) Create(_ context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleEmployee
	}
	user.Email = strings.TrimSpace(user.Email)
	key := strings.ToLower(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[key]; exists {
		return fmt.Errorf("failed to create user %s: %w", user.Email, models.ErrDuplicate)
	}
	ts := now()
	user.ID = newID()
	user.CreatedAt = ts
	user.UpdatedAt = ts
	s.byID[user.ID] = copyUser(*user)
	s.byEmail[key] = user.ID
	return nil
}

// GetByID returns a copy of the stored user.
func (s *UserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(id)
}

// GetByEmail looks a user up by email, ignoring case.
func (s *UserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, fmt.Errorf("failed to get user: %w", models.ErrNotFound)
	}
	return s.get(id)
}

// GetByIDs returns every known user in ids. Unknown IDs are skipped.
func (s *UserStore) GetByIDs(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		u, ok := s.byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		users = append(users, copyUser(u))
	}
	return users, nil
}

// SetTelegramChatID links or unlinks a Telegram chat for status notifications.
func (s *UserStore) SetTelegramChatID(_ context.Context, id string, chatID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("failed to set telegram chat: %w", models.ErrNotFound)
	}
	u.TelegramChatID = chatID
	u.UpdatedAt = now()
	s.byID[id] = copyUser(u)
	return nil
}

// get must be called with mu held.
func (s *UserStore) get(id string) (*models.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("failed to get user: %w", models.ErrNotFound)
	}
	c := copyUser(u)
	return &c, nil
}

func copyUser(u models.User) models.User {
	if u.TelegramChatID != nil {
		chatID := *u.TelegramChatID
		u.TelegramChatID = &chatID
	}
	return u
}
