package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/untibullet/bug-bounty/internal/models"
)

// CreateUser регистрирует пользователя. Занятый username или email дает ErrAlreadyExists.
func (r *Postgres) CreateUser(ctx context.Context, user *models.User, passwordHash string) error {
	query := `
		INSERT INTO users (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING total_rewards, created_at
	`
	err := r.pool.QueryRow(ctx, query, user.ID, user.Username, user.Email, passwordHash).
		Scan(&user.TotalRewards, &user.CreatedAt)
	if err != nil {
		return translateError("failed to create user", err)
	}
	return nil
}

// GetUserCredentials получает пользователя и хеш пароля по email
func (r *Postgres) GetUserCredentials(ctx context.Context, email string) (*models.User, string, error) {
	query := `
		SELECT id, username, email, total_rewards, created_at, password_hash
		FROM users
		WHERE email = $1
	`
	var user models.User
	var hash string
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Username, &user.Email, &user.TotalRewards, &user.CreatedAt, &hash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user credentials: %w", err)
	}
	return &user, hash, nil
}

// GetUser получает пользователя по ID
func (r *Postgres) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT id, username, email, total_rewards, created_at FROM users WHERE id = $1`

	var user models.User
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&user.ID, &user.Username, &user.Email, &user.TotalRewards, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
