package postgres

import (
	"chatai-backend/internal/models"
	"chatai-backend/internal/store"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetUserByEmail retrieves a user by their email address.
// Returns store.ErrNotFound if the user does not exist.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, display_name, hashed_password, system_message_text, created_at, updated_at
		FROM users
		WHERE email = $1`

	user := &models.User{}
	err := s.db.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.HashedPassword,
		&user.SystemMessageText,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		log.Printf("ERROR [PostgresStore] GetUserByEmail: Failed to query/scan user for email %s: %v", email, err)
		return nil, fmt.Errorf("database error fetching user by email: %w", err)
	}

	return user, nil
}

// GetUserByID retrieves a user by id.
// Returns store.ErrNotFound if the user does not exist.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, email, display_name, hashed_password, system_message_text, created_at, updated_at
		FROM users
		WHERE id = $1`

	user := &models.User{}
	err := s.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.HashedPassword,
		&user.SystemMessageText,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		log.Printf("ERROR [PostgresStore] GetUserByID: Failed to query/scan user %s: %v", id, err)
		return nil, fmt.Errorf("database error fetching user by id: %w", err)
	}

	return user, nil
}

// CreateUser inserts a new user record into the database.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	log.Printf("[PostgresStore] CreateUser called for: %s (UserID: %s)", user.Email, user.ID)
	query := `
		INSERT INTO users (id, email, display_name, hashed_password, system_message_text)
		VALUES ($1, $2, $3, $4, $5)`
	// created_at and updated_at have database defaults (NOW())

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		user.HashedPassword,
		user.SystemMessageText,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// "23505" is unique_violation (duplicate email)
			log.Printf("ERROR [PostgresStore] CreateUser: PostgreSQL error executing insert for email %s: Code=%s, Message=%s", user.Email, pgErr.Code, pgErr.Message)
		} else {
			log.Printf("ERROR [PostgresStore] CreateUser: Failed to execute insert for email %s: %v", user.Email, err)
		}
		return fmt.Errorf("database error creating user: %w", err)
	}

	return nil
}

const updateSystemMessage = `-- name: UpdateSystemMessage :exec
UPDATE users
SET system_message_text = $1, updated_at = NOW()
WHERE id = $2;
`

// UpdateSystemMessage persists the user's active system-prompt text.
func (s *PostgresStore) UpdateSystemMessage(ctx context.Context, userID uuid.UUID, text string) error {
	tag, err := s.db.Exec(ctx, updateSystemMessage, text, userID)
	if err != nil {
		return fmt.Errorf("database error updating system message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
