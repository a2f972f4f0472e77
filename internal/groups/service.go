package groups

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("group not found")

type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// GroupMessage is a persisted group chat message in broadcast shape.
type GroupMessage struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	Author    string    `json:"author"`
	Avatar    string    `json:"avatar"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"timestamp"`
}

// Service owns group lifecycle, membership and group messages.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Create makes a new group owned by ownerID, with the owner as first member.
func (s *Service) Create(ctx context.Context, name, ownerID string) (*Group, error) {
	g := &Group{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groups (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)`,
		g.ID, g.Name, g.OwnerID, g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := s.AddMember(ctx, g.ID, ownerID); err != nil {
		return nil, err
	}
	return g, nil
}

// Delete removes a group and, through cascading keys, its members and messages.
func (s *Service) Delete(ctx context.Context, groupID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, groupID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ForUser lists every group the user belongs to.
func (s *Service) ForUser(ctx context.Context, userID string) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.owner_id, g.created_at
		FROM groups g JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = ?
		ORDER BY g.created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []Group{}
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.OwnerID, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// IsOwner reports whether userID owns the group.
func (s *Service) IsOwner(ctx context.Context, groupID, userID string) (bool, error) {
	var ownerID string
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id FROM groups WHERE id = ?`, groupID,
	).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return ownerID == userID, nil
}

// IsMember reports whether userID belongs to the group.
func (s *Service) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID, userID,
	).Scan(&n)
	return n > 0, err
}

// AddMember is idempotent.
func (s *Service) AddMember(ctx context.Context, groupID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)`,
		groupID, userID,
	)
	return err
}

func (s *Service) RemoveMember(ctx context.Context, groupID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID, userID,
	)
	return err
}

// Members lists the group's members with profile info.
func (s *Service) Members(ctx context.Context, groupID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.avatar
		FROM group_members gm JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = ?
		ORDER BY gm.added_at ASC
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Username, &m.Avatar); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddMessage stores a group message and returns it in broadcast shape.
func (s *Service) AddMessage(ctx context.Context, groupID, authorID, text string) (*GroupMessage, error) {
	msg := &GroupMessage{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	err := s.db.QueryRowContext(ctx,
		`SELECT username, avatar FROM users WHERE id = ?`, authorID,
	).Scan(&msg.Author, &msg.Avatar)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO group_messages (id, group_id, author_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, groupID, authorID, text, msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Messages returns up to limit group messages, oldest first.
func (s *Service) Messages(ctx context.Context, groupID string, limit int) ([]GroupMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.group_id, u.username, u.avatar, m.content, m.created_at
		FROM group_messages m JOIN users u ON u.id = m.author_id
		WHERE m.group_id = ?
		ORDER BY m.created_at ASC
		LIMIT ?
	`, groupID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []GroupMessage{}
	for rows.Next() {
		var m GroupMessage
		if err := rows.Scan(&m.ID, &m.GroupID, &m.Author, &m.Avatar, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
