package store

import (
	"context"
	"errors"
	"testing"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

func TestUpsertProfile(t *testing.T) {
	pub := &recordingPublisher{}
	s := createTestStore(t, WithPublisher(pub))
	ctx := context.Background()

	p, err := s.UpsertProfile(ctx, "bob", "Bob")
	if err != nil {
		t.Fatalf("UpsertProfile() failed: %v", err)
	}
	if p.Status != model.EmployeeOffline || p.DisplayName != "Bob" {
		t.Errorf("UpsertProfile() = %+v", p)
	}

	if _, err := s.CreateSession(ctx, createTestSession("sess-bob", "bob")); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	p, err = s.UpsertProfile(ctx, "bob", "Robert")
	if err != nil {
		t.Fatalf("UpsertProfile() rename failed: %v", err)
	}
	if p.DisplayName != "Robert" || p.Status != model.EmployeeOnline {
		t.Errorf("rename must keep status: %+v", p)
	}

	last := pub.all()[len(pub.all())-1]
	if last.Entity != model.TopicProfiles || last.Profile.DisplayName != "Robert" {
		t.Errorf("last event = %+v", last)
	}

	if _, err := s.UpsertProfile(ctx, "", "nobody"); err == nil {
		t.Error("expected error for empty user_id")
	}
}

func TestListProfiles(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"carol", "alice", "bob"} {
		if _, err := s.UpsertProfile(ctx, id, id); err != nil {
			t.Fatalf("UpsertProfile(%s) failed: %v", id, err)
		}
	}

	got, err := s.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("ListProfiles() failed: %v", err)
	}
	if len(got) != 3 || got[0].UserID != "alice" || got[2].UserID != "carol" {
		t.Errorf("ListProfiles() = %+v", got)
	}

	if _, err := s.GetProfile(ctx, "dave"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProfile(missing) error = %v, want ErrNotFound", err)
	}
}
