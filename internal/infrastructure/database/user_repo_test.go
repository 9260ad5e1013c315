package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/devilmonastery/passage/internal/domain/entities"
	"github.com/devilmonastery/passage/internal/domain/repositories"
)

func strPtr(s string) *string { return &s }

func TestUserRepository_CreateAndGet(t *testing.T) {
	conn := newTestConnection(t)
	repo := NewUserRepository(conn.DB)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	user := &entities.User{
		Email:       "a@x.com",
		DisplayName: "Ada Lovelace",
		Handle:      "ada-lovelace",
		AvatarRef:   strPtr("https://img.example.com/a.png"),
	}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if user.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	if user.Role != entities.RoleUser {
		t.Errorf("Role = %q, want %q", user.Role, entities.RoleUser)
	}

	got, err := repo.GetByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ID = %q, want %q", got.ID, user.ID)
	}
	if got.DisplayName != "Ada Lovelace" || got.Handle != "ada-lovelace" {
		t.Errorf("got name=%q handle=%q", got.DisplayName, got.Handle)
	}
	if got.AvatarRef == nil || *got.AvatarRef != "https://img.example.com/a.png" {
		t.Errorf("AvatarRef = %v, want stored avatar", got.AvatarRef)
	}
	if got.Timezone != nil {
		t.Errorf("Timezone = %q, want nil", *got.Timezone)
	}
	if got.CreatedAt.Before(before) || got.CreatedAt.After(time.Now().Add(time.Second)) {
		t.Errorf("CreatedAt = %v, want about now", got.CreatedAt)
	}
}

func TestUserRepository_GetByEmailNotFound(t *testing.T) {
	conn := newTestConnection(t)
	repo := NewUserRepository(conn.DB)

	_, err := repo.GetByEmail(context.Background(), "missing@x.com")
	if !errors.Is(err, repositories.ErrUserNotFound) {
		t.Errorf("GetByEmail() error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_CreateExistingReturnsStoredRow(t *testing.T) {
	conn := newTestConnection(t)
	repo := NewUserRepository(conn.DB)
	ctx := context.Background()

	first := &entities.User{ID: "first", Email: "a@x.com", DisplayName: "A"}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	second := &entities.User{ID: "second", Email: "a@x.com", DisplayName: "A2"}
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("second Create() error = %v", err)
	}

	if second.ID != "first" || second.DisplayName != "A" {
		t.Errorf("second Create() left user = %+v, want stored row", second)
	}

	var count int
	if err := conn.DB.Get(&count, `SELECT COUNT(*) FROM users`); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Errorf("users = %d, want 1", count)
	}
}

func TestUserRepository_ConcurrentCreate(t *testing.T) {
	conn := newTestConnection(t)
	repo := NewUserRepository(conn.DB)
	ctx := context.Background()

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := &entities.User{
				ID:          fmt.Sprintf("id-%d", i),
				Email:       "race@x.com",
				DisplayName: fmt.Sprintf("Racer %d", i),
			}
			errs[i] = repo.Create(ctx, user)
			ids[i] = user.ID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d Create() error = %v", i, err)
		}
		if ids[i] != ids[0] {
			t.Errorf("worker %d got id %q, want %q", i, ids[i], ids[0])
		}
	}

	var count int
	if err := conn.DB.Get(&count, `SELECT COUNT(*) FROM users WHERE email = 'race@x.com'`); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Errorf("users = %d, want 1", count)
	}
}

func TestUserRepository_ClosedDatabase(t *testing.T) {
	conn := newTestConnection(t)
	repo := NewUserRepository(conn.DB)
	conn.Close()

	_, err := repo.GetByEmail(context.Background(), "a@x.com")
	if err == nil || errors.Is(err, repositories.ErrUserNotFound) {
		t.Errorf("GetByEmail() error = %v, want a store error", err)
	}
	if err := repo.Create(context.Background(), &entities.User{Email: "a@x.com"}); err == nil {
		t.Error("Create() error = nil, want error")
	}
}
