package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func (s *Storage) CreateVerificationToken(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	const op = "storage.postgres.CreateVerificationToken"

	token := uuid.NewString()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO verification_tokens (token, user_id, expires_at) VALUES ($1, $2, $3)`,
		token, userID, time.Now().Add(ttl),
	)
	if err != nil {
		return "", fmt.Errorf("%s: insert token: %w", op, err)
	}

	return token, nil
}

// ConsumeVerificationToken marks a token used and the owning user verified.
// A token is single-use: a second consume fails with ErrTokenNotFound.
func (s *Storage) ConsumeVerificationToken(ctx context.Context, token string) (string, error) {
	const op = "storage.postgres.ConsumeVerificationToken"

	if _, err := uuid.Parse(token); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrTokenNotFound)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var row struct {
		UserID    string    `db:"user_id"`
		ExpiresAt time.Time `db:"expires_at"`
	}

	err = tx.QueryRowxContext(ctx, `
		UPDATE verification_tokens
		SET consumed_at = now()
		WHERE token = $1 AND consumed_at IS NULL
		RETURNING user_id, expires_at
	`, token).StructScan(&row)

	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", op, ErrTokenNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%s: consume token: %w", op, err)
	}

	if time.Now().After(row.ExpiresAt) {
		return "", fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET verified_at = COALESCE(verified_at, now()) WHERE id = $1`,
		row.UserID,
	); err != nil {
		return "", fmt.Errorf("%s: mark user verified: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%s: commit: %w", op, err)
	}

	return row.UserID, nil
}
