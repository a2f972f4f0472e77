package friends

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

	for _, u := range [][2]string{
		{"u1", "alice"}, {"u2", "bob"}, {"u3", "carol"},
	} {
		if _, err := database.Exec(
			`INSERT INTO users (id, username, email, password_hash) VALUES (?, ?, ?, 'x')`,
			u[0], u[1], u[1]+"@example.com",
		); err != nil {
			t.Fatalf("seed user %s: %v", u[1], err)
		}
	}

	return NewService(database)
}

func TestSendRequest(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.SendRequest(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if !created {
		t.Fatal("first request should report created")
	}

	// The same request again, and the reverse request while one is pending,
	// are both no-ops.
	for _, pair := range [][2]string{{"u1", "u2"}, {"u2", "u1"}} {
		created, err = svc.SendRequest(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("SendRequest(%s, %s): %v", pair[0], pair[1], err)
		}
		if created {
			t.Fatalf("SendRequest(%s, %s) reported created for an existing pair", pair[0], pair[1])
		}
	}
}

func TestSendRequest_SelfIsNoop(t *testing.T) {
	svc := newTestService(t)

	created, err := svc.SendRequest(context.Background(), "u1", "u1")
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if created {
		t.Fatal("self-request should not create anything")
	}
}

func TestAcceptMakesFriendsBothWays(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SendRequest(ctx, "u1", "u2"); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	pending, err := svc.Pending(ctx, "u2")
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "u1" {
		t.Fatalf("pending for u2 = %+v, want request from u1", pending)
	}

	if err := svc.Accept(ctx, "u2", "u1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	for _, uid := range []string{"u1", "u2"} {
		friends, err := svc.Friends(ctx, uid)
		if err != nil {
			t.Fatalf("Friends(%s): %v", uid, err)
		}
		if len(friends) != 1 {
			t.Fatalf("Friends(%s) = %+v, want one friend", uid, friends)
		}
	}

	pending, err = svc.Pending(ctx, "u2")
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after accept = %+v, want none", pending)
	}
}

func TestReject(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SendRequest(ctx, "u1", "u2"); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if err := svc.Reject(ctx, "u2", "u1"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	pending, err := svc.Pending(ctx, "u2")
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after reject = %+v, want none", pending)
	}

	// A rejected pair can try again.
	created, err := svc.SendRequest(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("SendRequest after reject: %v", err)
	}
	if !created {
		t.Fatal("request after reject should create a fresh one")
	}
}

func TestRemove(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SendRequest(ctx, "u1", "u2"); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if err := svc.Accept(ctx, "u2", "u1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	// Remove works from either side of the stored row.
	if err := svc.Remove(ctx, "u2", "u1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	friends, err := svc.Friends(ctx, "u1")
	if err != nil {
		t.Fatalf("Friends: %v", err)
	}
	if len(friends) != 0 {
		t.Fatalf("friends after remove = %+v, want none", friends)
	}
}

func TestFriends_SortedByUsername(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// carol befriends u1 before bob does; listing still sorts by name.
	for _, requester := range []string{"u3", "u2"} {
		if _, err := svc.SendRequest(ctx, requester, "u1"); err != nil {
			t.Fatalf("SendRequest: %v", err)
		}
		if err := svc.Accept(ctx, "u1", requester); err != nil {
			t.Fatalf("Accept: %v", err)
		}
	}

	friends, err := svc.Friends(ctx, "u1")
	if err != nil {
		t.Fatalf("Friends: %v", err)
	}
	if len(friends) != 2 || friends[0].Username != "bob" || friends[1].Username != "carol" {
		t.Fatalf("friends = %+v, want bob then carol", friends)
	}
}
