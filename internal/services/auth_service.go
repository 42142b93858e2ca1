package services

import (
	"chatai-backend/internal/auth"
	"chatai-backend/internal/config"
	"chatai-backend/internal/models"
	"chatai-backend/internal/store"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

// Custom errors for auth service. These are the classified failure
// modes the sign-in surface shows verbatim.
var (
	ErrEmailInUse      = errors.New("user with this email already exists")
	ErrUserNotFound    = errors.New("no user found with this email")
	ErrWrongPassword   = errors.New("incorrect password")
	ErrWeakPassword    = errors.New("password is too weak")
	ErrHashingPassword = errors.New("failed to hash password")
	ErrCreatingToken   = errors.New("failed to create access token")
	ErrValidation      = errors.New("input validation failed")
)

type AuthService struct {
	store store.Store
	cfg   *config.Config
}

func NewAuthService(s store.Store, cfg *config.Config) *AuthService {
	return &AuthService{
		store: s,
		cfg:   cfg,
	}
}

// Signup creates a new user. The profile is bootstrapped with the
// default system message so the first session has a non-empty prompt.
func (s *AuthService) Signup(ctx context.Context, email, password, displayName string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password cannot be empty", ErrValidation)
	}
	if len(password) < auth.MinPasswordLength {
		return nil, fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, auth.MinPasswordLength)
	}

	// Check if user already exists
	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailInUse
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Printf("Error checking user existence for %s: %v", email, err)
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}
	// User does not exist (store.ErrNotFound received), proceed.

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		log.Printf("Error hashing password for %s: %v", email, err)
		return nil, ErrHashingPassword
	}

	user := &models.User{
		ID:                uuid.New(),
		Email:             email,
		DisplayName:       displayName,
		HashedPassword:    hashedPassword,
		SystemMessageText: config.DefaultSystemMessage,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		log.Printf("Error creating user for %s: %v", email, err)
		return nil, fmt.Errorf("creating user failed: %w", err)
	}

	log.Printf("Successfully signed up user %s (ID: %s)", email, user.ID)
	return user, nil
}

// Login verifies user credentials and returns an access token and user
// info. Failures are classified: unknown email and wrong password are
// distinct errors, surfaced as-is to the sign-in surface.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", nil, fmt.Errorf("%w: email and password cannot be empty", ErrValidation)
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrUserNotFound
		}
		log.Printf("Error retrieving user %s during login: %v", email, err)
		return "", nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.HashedPassword) {
		return "", nil, ErrWrongPassword
	}

	token, err := auth.NewAccessToken(user.ID, s.cfg.JWTSecret, s.cfg.TokenExpiration)
	if err != nil {
		log.Printf("Error generating JWT for user %s (ID: %s): %v", email, user.ID, err)
		return "", nil, ErrCreatingToken
	}

	log.Printf("Successfully logged in user %s (ID: %s)", email, user.ID)
	return token, user, nil
}

// GetProfile returns the stored profile for the given user.
func (s *AuthService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.ProfileResponse, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &models.ProfileResponse{
		ID:                user.ID,
		Email:             user.Email,
		DisplayName:       user.DisplayName,
		SystemMessageText: user.SystemMessageText,
		CreatedAt:         user.CreatedAt,
	}, nil
}
