package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kgellert/teamchat/internal/domain/user"
)

// Credentials pairs a user profile with its password hash for login checks.
type Credentials struct {
	user.User
	PasswordHash string `db:"password_hash"`
}

func (s *Storage) CreateUser(ctx context.Context, displayName, email, passwordHash string) (user.User, error) {
	const op = "storage.postgres.CreateUser"

	var u user.User
	err := s.db.QueryRowxContext(
		ctx,
		`INSERT INTO users (id, display_name, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, display_name, email, avatar_url, created_at`,
		uuid.NewString(), displayName, strings.ToLower(strings.TrimSpace(email)), passwordHash,
	).StructScan(&u)

	if err != nil {
		if strings.Contains(err.Error(), "users_email_key") {
			return user.User{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return user.User{}, fmt.Errorf("%s: insert user: %w", op, err)
	}

	return u, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (Credentials, error) {
	const op = "storage.postgres.GetUserByEmail"

	var c Credentials
	err := s.db.GetContext(ctx, &c, `
		SELECT id, display_name, email, avatar_url, created_at, password_hash
		FROM users
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email)))

	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("%s: select user: %w", op, err)
	}

	return c, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (user.User, error) {
	const op = "storage.postgres.GetUserByID"

	var u user.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, display_name, email, avatar_url, created_at
		FROM users
		WHERE id = $1
	`, id)

	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return user.User{}, fmt.Errorf("%s: select user: %w", op, err)
	}

	return u, nil
}
