package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/storymap/backend/internal/auth"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AuthRepository defines the interface for user/auth data access
type AuthRepository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	UserExistsByEmail(ctx context.Context, email string) (bool, error)
	VerifyUserPassword(ctx context.Context, email, password string) (*User, error)
}

// CreateUserParams holds parameters for user creation
type CreateUserParams struct {
	Email        string
	PasswordHash string
	Name         string
}

// AuthService handles authentication business logic
type AuthService struct {
	repo AuthRepository
	jwt  *auth.JWTManager
}

// NewAuthService creates a new auth service
func NewAuthService(repo AuthRepository, jwt *auth.JWTManager) *AuthService {
	return &AuthService{
		repo: repo,
		jwt:  jwt,
	}
}

// AuthResult is returned from registration and login
type AuthResult struct {
	User        *UserResponse `json:"user"`
	AccessToken string        `json:"access_token"`
}

// Register creates a new user with email/password
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	exists, err := s.repo.UserExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
	})
	if err != nil {
		return nil, err
	}

	token, err := s.jwt.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user.ToResponse(), AccessToken: token}, nil
}

// Login authenticates a user with email/password
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.repo.VerifyUserPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	token, err := s.jwt.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user.ToResponse(), AccessToken: token}, nil
}

// Me returns the authenticated user's own record
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.repo.GetUserByID(ctx, userID)
}
