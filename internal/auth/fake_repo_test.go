package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lumen-lms/lumen/internal/rbac"
	"github.com/lumen-lms/lumen/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	users    map[string]*User
	sessions map[string]string
	findErr  error
	lookups  int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[string]*User{}, sessions: map[string]string{}}
}

func (m *memoryRepo) add(email, password string, role rbac.Role, active bool) *User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	u := &User{ID: uuid.NewString(), Email: email, Name: strings.Split(email, "@")[0], Role: role, PasswordHash: string(hash), IsActive: active, CreatedAt: time.Now()}
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
	return u
}

func (m *memoryRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryRepo) FindByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryRepo) CreateUser(_ context.Context, in NewUser) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, in.Email) {
			return nil, shared.Conflict("email already registered")
		}
	}
	u := &User{ID: uuid.NewString(), Email: in.Email, Name: in.Name, Role: in.Role, PasswordHash: in.PasswordHash, IsActive: true, CreatedAt: time.Now()}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memoryRepo) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memoryRepo) CreateSession(_ context.Context, id, userID string, _ time.Time, _, _ string) error {
	m.mu.Lock()
	m.sessions[id] = userID
	m.mu.Unlock()
	return nil
}

func (m *memoryRepo) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

type captureMailer struct {
	mu    sync.Mutex
	to    []string
	links []string
}

func (c *captureMailer) SendPasswordReset(_ context.Context, to, link string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.to = append(c.to, to)
	c.links = append(c.links, link)
	return nil
}

func (c *captureMailer) lastToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.links) == 0 {
		return ""
	}
	_, token, _ := strings.Cut(c.links[len(c.links)-1], "token=")
	return token
}
