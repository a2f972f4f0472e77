package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTokenExpired       = errors.New("refresh token expired or invalid")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
)

// User is the internal representation of an account.
type User struct {
	ID        string
	Username  string
	Email     string
	Avatar    string
	CreatedAt time.Time
}

// TokenPair holds the issued access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds until access token expiry
}

// Service handles auth business logic.
type Service struct {
	db              *sql.DB
	jwtSecret       string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewService(db *sql.DB, jwtSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		db:              db,
		jwtSecret:       jwtSecret,
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, *TokenPair, error) {
	if len(in.Password) < 6 {
		return nil, nil, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	user := &User{
		ID:       uuid.NewString(),
		Username: in.Username,
		Email:    strings.ToLower(in.Email),
		Avatar:   defaultAvatar(in.Username),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, avatar) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, string(hash), user.Avatar,
	)
	if err != nil {
		switch {
		case isUniqueConstraint(err, "users.email"):
			return nil, nil, ErrEmailTaken
		case isUniqueConstraint(err, "users.username"):
			return nil, nil, ErrUsernameTaken
		default:
			return nil, nil, err
		}
	}

	pair, err := s.issueTokenPair(ctx, user.ID, user.Email)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*User, *TokenPair, error) {
	var user User
	var passwordHash string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, avatar, password_hash, created_at FROM users WHERE email = ?`,
		strings.ToLower(email),
	).Scan(&user.ID, &user.Username, &user.Email, &user.Avatar, &passwordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issueTokenPair(ctx, user.ID, user.Email)
	if err != nil {
		return nil, nil, err
	}
	return &user, pair, nil
}

func (s *Service) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	hash := HashToken(rawToken)

	var tokenID, userID string
	var expiresAt time.Time

	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, expires_at
		FROM refresh_tokens
		WHERE token_hash = ?
	`, hash).Scan(&tokenID, &userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenExpired
	}
	if err != nil {
		return nil, err
	}

	if time.Now().After(expiresAt) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE id = ?`, tokenID)
		return nil, ErrTokenExpired
	}

	var email string
	if err := s.db.QueryRowContext(ctx,
		`SELECT email FROM users WHERE id = ?`, userID,
	).Scan(&email); err != nil {
		return nil, err
	}

	// Rotate: delete old token, issue new pair.
	_, _ = s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE id = ?`, tokenID)
	return s.issueTokenPair(ctx, userID, email)
}

func (s *Service) issueTokenPair(ctx context.Context, userID, email string) (*TokenPair, error) {
	accessToken, err := GenerateAccessToken(userID, email, s.jwtSecret, s.accessTokenTTL)
	if err != nil {
		return nil, err
	}

	rawRefresh := GenerateRefreshToken()
	expiresAt := time.Now().Add(s.refreshTokenTTL)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), userID, HashToken(rawRefresh), expiresAt,
	)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: rawRefresh,
		ExpiresIn:    int64(s.accessTokenTTL.Seconds()),
	}, nil
}

// defaultAvatar mirrors the client's fallback: the uppercased first letter of
// the username.
func defaultAvatar(username string) string {
	for _, r := range username {
		return strings.ToUpper(string(r))
	}
	return "?"
}

func isUniqueConstraint(err error, column string) bool {
	return err != nil &&
		strings.Contains(err.Error(), "UNIQUE constraint failed") &&
		strings.Contains(err.Error(), column)
}
