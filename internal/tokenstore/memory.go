package tokenstore

import (
	"context"
	"sync"

	"github.com/greencycle/greencycle/internal/model"
)

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
	user  *model.User
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, token string, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.user = copyUser(user)
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) Credentials {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Credentials{Token: m.token, User: copyUser(m.user)}
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.user = nil
	return nil
}

func copyUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
