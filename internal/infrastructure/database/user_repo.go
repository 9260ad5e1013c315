package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/passage/internal/domain/entities"
	"github.com/devilmonastery/passage/internal/domain/repositories"
	"github.com/devilmonastery/passage/internal/pkg/idgen"
	"github.com/devilmonastery/passage/internal/pkg/metrics"
)

// UserRepository implements repositories.UserRepository on postgres or sqlite
type UserRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) repositories.UserRepository {
	return &UserRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "user")),
	}
}

const userColumns = `id, email, name, handle, avatar_url, role, timezone, created_at, updated_at`

// userRow represents a user as stored in the database
type userRow struct {
	ID          string         `db:"id"`
	Email       string         `db:"email"`
	DisplayName string         `db:"name"` // database column is 'name'
	Handle      string         `db:"handle"`
	AvatarURL   sql.NullString `db:"avatar_url"`
	Role        string         `db:"role"`
	Timezone    sql.NullString `db:"timezone"`
	CreatedAt   timestamp      `db:"created_at"`
	UpdatedAt   timestamp      `db:"updated_at"`
}

// toEntity converts a userRow to a domain entity
func (r *userRow) toEntity() *entities.User {
	user := &entities.User{
		ID:          r.ID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		Handle:      r.Handle,
		Role:        entities.Role(r.Role),
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}

	if r.AvatarURL.Valid {
		user.AvatarRef = &r.AvatarURL.String
	}

	if r.Timezone.Valid {
		user.Timezone = &r.Timezone.String
	}

	return user
}

// nullString maps an unset optional field to SQL NULL
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Create inserts the user unless a row with the same email already exists.
// Either way user is overwritten with the stored row, so concurrent sign-ins
// for one email all observe the same profile.
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("user", "create", time.Since(start), rowCount, err)
	}()

	if user.ID == "" {
		user.ID = idgen.GenerateID()
	}
	if user.Role == "" {
		user.Role = entities.RoleUser
	}

	r.log.Debug("creating user",
		slog.String("id", user.ID),
		slog.String("email", user.Email),
		slog.String("role", string(user.Role)))

	now := time.Now().UTC()

	query := r.db.Rebind(`INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO NOTHING`)

	var result sql.Result
	result, err = r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.DisplayName, user.Handle,
		nullString(user.AvatarRef), string(user.Role), nullString(user.Timezone),
		now, now)
	if err != nil {
		err = fmt.Errorf("failed to create user: %w", err)
		return err
	}
	if rowCount, err = result.RowsAffected(); err != nil {
		rowCount = -1
		err = fmt.Errorf("failed to create user: %w", err)
		return err
	}
	if rowCount == 0 {
		r.log.Debug("user already exists, using stored row", slog.String("email", user.Email))
	}

	var stored *entities.User
	stored, err = r.getByEmail(ctx, user.Email)
	if err != nil {
		err = fmt.Errorf("failed to read back user: %w", err)
		return err
	}

	*user = *stored
	return nil
}

// GetByEmail retrieves a user by their email address
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("user", "get_by_email", time.Since(start), rowCount, err)
	}()

	var user *entities.User
	user, err = r.getByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	rowCount = 1
	return user, nil
}

func (r *UserRepository) getByEmail(ctx context.Context, email string) (*entities.User, error) {
	var row userRow
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)

	err := r.db.GetContext(ctx, &row, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return row.toEntity(), nil
}
