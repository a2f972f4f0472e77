package messages

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/banterhq/banter/internal/db"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	for _, u := range [][3]string{
		{"u1", "alice", "alice@example.com"},
		{"u2", "bob", "bob@example.com"},
	} {
		if _, err := database.Exec(
			`INSERT INTO users (id, username, email, password_hash, avatar) VALUES (?, ?, ?, 'x', ?)`,
			u[0], u[1], u[2], string(u[1][0]),
		); err != nil {
			t.Fatalf("seed user %s: %v", u[1], err)
		}
	}

	return NewService(database)
}

func TestChannelMessages(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	msg, err := svc.CreateChannelMessage(ctx, "general", "u1", "hello")
	if err != nil {
		t.Fatalf("CreateChannelMessage: %v", err)
	}
	if msg.Author != "alice" || msg.Text != "hello" || msg.ID == "" {
		t.Fatalf("message = %+v", msg)
	}

	if _, err := svc.CreateChannelMessage(ctx, "random", "u2", "elsewhere"); err != nil {
		t.Fatalf("CreateChannelMessage: %v", err)
	}

	got, err := svc.ListChannelMessages(ctx, "general", 0)
	if err != nil {
		t.Fatalf("ListChannelMessages: %v", err)
	}
	if len(got) != 1 || got[0].Text != "hello" {
		t.Fatalf("general messages = %+v, want just hello", got)
	}
}

func TestCreateChannelMessage_UnknownAuthor(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.CreateChannelMessage(context.Background(), "general", "ghost", "boo"); err == nil {
		t.Fatal("expected an error for an unknown author")
	}
}

func TestDirectMessages(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateDM(ctx, "u1", "u2", "hi bob"); err != nil {
		t.Fatalf("CreateDM: %v", err)
	}
	if _, err := svc.CreateDM(ctx, "u2", "u1", "hi alice"); err != nil {
		t.Fatalf("CreateDM: %v", err)
	}

	// Both directions land in the same conversation, oldest first.
	conv, err := svc.ListConversation(ctx, "u1", "u2", 0)
	if err != nil {
		t.Fatalf("ListConversation: %v", err)
	}
	if len(conv) != 2 {
		t.Fatalf("conversation has %d messages, want 2", len(conv))
	}
	if conv[0].Author != "alice" || conv[1].Author != "bob" {
		t.Fatalf("conversation order = %s, %s", conv[0].Author, conv[1].Author)
	}
}

func TestReactions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	msg, err := svc.CreateChannelMessage(ctx, "general", "u1", "react to me")
	if err != nil {
		t.Fatalf("CreateChannelMessage: %v", err)
	}

	if err := svc.AddReaction(ctx, msg.ID, "u2", "👍"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}
	// Same reaction twice is a no-op.
	if err := svc.AddReaction(ctx, msg.ID, "u2", "👍"); err != nil {
		t.Fatalf("repeated AddReaction: %v", err)
	}
	if err := svc.AddReaction(ctx, msg.ID, "u1", "🎉"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}

	got, err := svc.ReactionsFor(ctx, msg.ID)
	if err != nil {
		t.Fatalf("ReactionsFor: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("reactions = %+v, want 2", got)
	}

	if err := svc.RemoveReaction(ctx, msg.ID, "u2", "👍"); err != nil {
		t.Fatalf("RemoveReaction: %v", err)
	}
	got, err = svc.ReactionsFor(ctx, msg.ID)
	if err != nil {
		t.Fatalf("ReactionsFor: %v", err)
	}
	if len(got) != 1 || got[0].Emoji != "🎉" {
		t.Fatalf("reactions after remove = %+v, want just 🎉", got)
	}
}
