package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/devilmonastery/passage/internal/domain/entities"
	"github.com/devilmonastery/passage/internal/domain/repositories"
)

// fakeUserRepo is an in-memory UserRepository that enforces email uniqueness
// the same way the SQL store does: a losing create returns the winning row.
type fakeUserRepo struct {
	mu          sync.Mutex
	users       map[string]*entities.User
	nextID      int
	getErr      error
	createErr   error
	getCalls    int
	createCalls int
}

func newFakeUserRepo(seed ...*entities.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*entities.User)}
	for _, u := range seed {
		r.nextID++
		stored := *u
		if stored.ID == "" {
			stored.ID = fmt.Sprintf("seed-%d", r.nextID)
		}
		r.users[stored.Email] = &stored
	}
	return r
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++

	if r.createErr != nil {
		return r.createErr
	}
	if existing, ok := r.users[user.Email]; ok {
		*user = *existing
		return nil
	}

	r.nextID++
	user.ID = fmt.Sprintf("user-%d", r.nextID)
	stored := *user
	r.users[user.Email] = &stored
	return nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++

	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.users[email]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	found := *u
	return &found, nil
}

func (r *fakeUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *fakeUserRepo) get(email string) *entities.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[email]
}
