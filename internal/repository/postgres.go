package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/storymap/backend/internal/auth"
	"github.com/storymap/backend/internal/domain"
)

// PostgresRepository implements domain.StoryRepository, domain.AuthRepository
// and domain.UserDirectory using PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateUser creates a new user
func (r *PostgresRepository) CreateUser(ctx context.Context, params domain.CreateUserParams) (*domain.User, error) {
	query := `
		INSERT INTO users (email, password_hash, name)
		VALUES ($1, $2, $3)
		RETURNING id, email, name, avatar_url, created_at, updated_at
	`
	row := r.db.QueryRow(ctx, query, params.Email, params.PasswordHash, params.Name)
	return scanUser(row)
}

// GetUserByID retrieves a user by ID
func (r *PostgresRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, email, name, avatar_url, created_at, updated_at
		FROM users WHERE id = $1
	`
	row := r.db.QueryRow(ctx, query, id)
	return scanUser(row)
}

// UserExistsByEmail checks if a user exists by email
func (r *PostgresRepository) UserExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, email).Scan(&exists)
	return exists, err
}

// VerifyUserPassword verifies a user's password and returns the user
func (r *PostgresRepository) VerifyUserPassword(ctx context.Context, email, password string) (*domain.User, error) {
	query := `
		SELECT id, email, name, avatar_url, created_at, updated_at, password_hash
		FROM users WHERE email = $1
	`
	row := r.db.QueryRow(ctx, query, email)

	var user domain.User
	var passwordHash string
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
		&passwordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	if err := auth.VerifyPassword(password, passwordHash); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return &user, nil
}

// GetUsersPublic returns public projections for the given user ids
func (r *PostgresRepository) GetUsersPublic(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.UserResponse, error) {
	result := make(map[uuid.UUID]*domain.UserResponse, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT id, name, avatar_url FROM users WHERE id = ANY($1)`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var resp domain.UserResponse
		var avatarURL *string
		if err := rows.Scan(&resp.ID, &resp.Name, &avatarURL); err != nil {
			return nil, err
		}
		if avatarURL != nil {
			resp.AvatarURL = *avatarURL
		}
		result[resp.ID] = &resp
	}
	return result, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
