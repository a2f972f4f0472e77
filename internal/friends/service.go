package friends

import (
	"context"
	"database/sql"
	"time"
)

// FriendUser is a friend or requester with profile info attached.
type FriendUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Status   string `json:"status"`
}

// Service owns the friendship graph. A friendship is stored as a single row
// (user_id, friend_id) whose status moves pending → accepted; either order of
// the pair is checked on reads.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// SendRequest creates a pending request from userID to friendID. Reports
// whether a new request was actually created (dupes and self-requests are
// no-ops).
func (s *Service) SendRequest(ctx context.Context, userID, friendID string) (bool, error) {
	if userID == friendID {
		return false, nil
	}

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM friends
		WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)
	`, userID, friendID, friendID, userID).Scan(&n)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO friends (user_id, friend_id, status, created_at) VALUES (?, ?, 'pending', ?)`,
		userID, friendID, time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Accept marks the pending request from friendID to userID as accepted.
func (s *Service) Accept(ctx context.Context, userID, friendID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE friends SET status = 'accepted'
		WHERE user_id = ? AND friend_id = ? AND status = 'pending'
	`, friendID, userID)
	return err
}

// Reject drops the pending request from friendID to userID.
func (s *Service) Reject(ctx context.Context, userID, friendID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM friends
		WHERE user_id = ? AND friend_id = ? AND status = 'pending'
	`, friendID, userID)
	return err
}

// Remove deletes an accepted friendship in either direction.
func (s *Service) Remove(ctx context.Context, userID, friendID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM friends
		WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)
	`, userID, friendID, friendID, userID)
	return err
}

// Friends lists userID's accepted friends.
func (s *Service) Friends(ctx context.Context, userID string) ([]FriendUser, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.avatar, u.status
		FROM friends f
		JOIN users u ON u.id = CASE WHEN f.user_id = ? THEN f.friend_id ELSE f.user_id END
		WHERE (f.user_id = ? OR f.friend_id = ?) AND f.status = 'accepted'
		ORDER BY u.username ASC
	`, userID, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFriendUsers(rows)
}

// Pending lists users whose requests to userID are awaiting an answer.
func (s *Service) Pending(ctx context.Context, userID string) ([]FriendUser, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.avatar, u.status
		FROM friends f JOIN users u ON u.id = f.user_id
		WHERE f.friend_id = ? AND f.status = 'pending'
		ORDER BY f.created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFriendUsers(rows)
}

func scanFriendUsers(rows *sql.Rows) ([]FriendUser, error) {
	out := []FriendUser{}
	for rows.Next() {
		var f FriendUser
		if err := rows.Scan(&f.ID, &f.Username, &f.Avatar, &f.Status); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
