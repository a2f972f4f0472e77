package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrWrongPassword = errors.New("current password incorrect")
	ErrBadUsername   = errors.New("username must be 3-20 characters")
	ErrBadPassword   = errors.New("new password too short")
)

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Service reads and updates user profiles.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// FindByID returns the user's public profile.
func (s *Service) FindByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, avatar, status, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Avatar, &u.Status, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// All returns every registered user's public profile.
func (s *Service) All(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, email, avatar, status, created_at FROM users ORDER BY username ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Avatar, &u.Status, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetStatus records presence status (Online/Offline). Implements the hub's
// StatusStore.
func (s *Service) SetStatus(ctx context.Context, userID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET status = ? WHERE id = ?`, status, userID,
	)
	return err
}

type ProfileUpdate struct {
	Username        string // empty = keep
	CurrentPassword string
	NewPassword     string // empty = keep
}

// UpdateProfile changes username and/or password. A password change requires
// the current password to match.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*User, error) {
	if in.Username != "" {
		trimmed := strings.TrimSpace(in.Username)
		if len(trimmed) < 3 || len(trimmed) > 20 {
			return nil, ErrBadUsername
		}
		in.Username = trimmed
	}

	if in.NewPassword != "" {
		if len(in.NewPassword) < 6 {
			return nil, ErrBadPassword
		}
		var currentHash string
		err := s.db.QueryRowContext(ctx,
			`SELECT password_hash FROM users WHERE id = ?`, userID,
		).Scan(&currentHash)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		if bcrypt.CompareHashAndPassword([]byte(currentHash), []byte(in.CurrentPassword)) != nil {
			return nil, ErrWrongPassword
		}

		newHash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		if _, err := s.db.ExecContext(ctx,
			`UPDATE users SET password_hash = ? WHERE id = ?`, string(newHash), userID,
		); err != nil {
			return nil, err
		}
	}

	if in.Username != "" {
		_, err := s.db.ExecContext(ctx,
			`UPDATE users SET username = ? WHERE id = ?`, in.Username, userID,
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return nil, ErrUsernameTaken
			}
			return nil, err
		}
	}

	return s.FindByID(ctx, userID)
}
