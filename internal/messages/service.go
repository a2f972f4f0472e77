package messages

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// Message is a persisted chat message in the shape clients render directly.
type Message struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Avatar    string    `json:"avatar"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"timestamp"`
}

// Reaction is one user's emoji on a message.
type Reaction struct {
	Emoji    string `json:"emoji"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Service persists channel messages, direct messages and reactions.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateChannelMessage stores a message and returns it with author info
// resolved, ready for broadcast.
func (s *Service) CreateChannelMessage(ctx context.Context, channelID, authorID, text string) (*Message, error) {
	msg := &Message{ID: uuid.NewString(), Text: text, CreatedAt: time.Now().UTC()}

	if err := s.authorInfo(ctx, authorID, msg); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, channel_id, author_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, channelID, authorID, text, msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListChannelMessages returns up to limit messages for a channel, oldest first.
func (s *Service) ListChannelMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, u.username, u.avatar, m.content, m.created_at
		FROM messages m JOIN users u ON u.id = m.author_id
		WHERE m.channel_id = ?
		ORDER BY m.created_at ASC
		LIMIT ?
	`, channelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// CreateDM stores a direct message between two users.
func (s *Service) CreateDM(ctx context.Context, senderID, receiverID, text string) (*Message, error) {
	msg := &Message{ID: uuid.NewString(), Text: text, CreatedAt: time.Now().UTC()}

	if err := s.authorInfo(ctx, senderID, msg); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO direct_messages (id, sender_id, receiver_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, senderID, receiverID, text, msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListConversation returns the DM history between two users, oldest first.
func (s *Service) ListConversation(ctx context.Context, userA, userB string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, u.username, u.avatar, d.content, d.created_at
		FROM direct_messages d JOIN users u ON u.id = d.sender_id
		WHERE (d.sender_id = ? AND d.receiver_id = ?) OR (d.sender_id = ? AND d.receiver_id = ?)
		ORDER BY d.created_at ASC
		LIMIT ?
	`, userA, userB, userB, userA, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// AddReaction records an emoji reaction. Reacting twice with the same emoji
// is a no-op.
func (s *Service) AddReaction(ctx context.Context, messageID, userID, emoji string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reactions (message_id, user_id, emoji) VALUES (?, ?, ?)`,
		messageID, userID, emoji,
	)
	return err
}

// RemoveReaction deletes a reaction if present.
func (s *Service) RemoveReaction(ctx context.Context, messageID, userID, emoji string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM reactions WHERE message_id = ? AND user_id = ? AND emoji = ?`,
		messageID, userID, emoji,
	)
	return err
}

// ReactionsFor returns every reaction on a message.
func (s *Service) ReactionsFor(ctx context.Context, messageID string) ([]Reaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.emoji, r.user_id, u.username
		FROM reactions r JOIN users u ON u.id = r.user_id
		WHERE r.message_id = ?
		ORDER BY r.created_at ASC
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reactions := []Reaction{}
	for rows.Next() {
		var re Reaction
		if err := rows.Scan(&re.Emoji, &re.UserID, &re.Username); err != nil {
			return nil, err
		}
		reactions = append(reactions, re)
	}
	return reactions, rows.Err()
}

func (s *Service) authorInfo(ctx context.Context, userID string, msg *Message) error {
	err := s.db.QueryRowContext(ctx,
		`SELECT username, avatar FROM users WHERE id = ?`, userID,
	).Scan(&msg.Author, &msg.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	msgs := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Author, &m.Avatar, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
