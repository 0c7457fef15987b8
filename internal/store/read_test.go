package store

import (
	"context"
	"errors"
	"testing"
)

func TestGetTodaySession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	got, err := s.GetTodaySession(ctx, "alice", "2025-01-06")
	if err != nil {
		t.Fatalf("GetTodaySession() failed: %v", err)
	}
	if got != nil {
		t.Fatalf("GetTodaySession() = %+v, want nil", got)
	}

	if _, err := s.CreateSession(ctx, createTestSession("sess-1", "alice")); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	got, err = s.GetTodaySession(ctx, "alice", "2025-01-06")
	if err != nil {
		t.Fatalf("GetTodaySession() failed: %v", err)
	}
	if got == nil || got.ID != "sess-1" || len(got.Activities) != 1 {
		t.Errorf("GetTodaySession() = %+v", got)
	}

	other, err := s.GetTodaySession(ctx, "alice", "2025-01-07")
	if err != nil || other != nil {
		t.Errorf("GetTodaySession(next day) = %+v, %v", other, err)
	}
}

func TestGetSessionsForUser_RangeAndOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, d := range []struct{ id, date string }{
		{"s-07", "2025-01-07"},
		{"s-05", "2025-01-05"},
		{"s-06", "2025-01-06"},
		{"s-10", "2025-01-10"},
	} {
		sess := createTestSession(d.id, "alice")
		sess.Date = d.date
		if _, err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession(%s) failed: %v", d.id, err)
		}
	}
	bob := createTestSession("s-bob", "bob")
	if _, err := s.CreateSession(ctx, bob); err != nil {
		t.Fatalf("CreateSession(bob) failed: %v", err)
	}

	got, err := s.GetSessionsForUser(ctx, "alice", "2025-01-05", "2025-01-07")
	if err != nil {
		t.Fatalf("GetSessionsForUser() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"s-05", "s-06", "s-07"} {
		if got[i].ID != want {
			t.Errorf("got[%d].ID = %s, want %s", i, got[i].ID, want)
		}
		if len(got[i].Activities) != 1 {
			t.Errorf("got[%d] activities not loaded", i)
		}
	}
}

func TestGetSessionsForUser_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	got, err := s.GetSessionsForUser(context.Background(), "nobody", "2025-01-01", "2025-12-31")
	if err != nil {
		t.Fatalf("GetSessionsForUser() failed: %v", err)
	}
	if got == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestGetSession_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetSession(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession() error = %v, want ErrNotFound", err)
	}
}
