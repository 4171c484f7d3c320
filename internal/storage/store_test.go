package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/starford/chancery/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestStore_LoadDefaults(t *testing.T) {
	s := NewStore(NewMemory(), quietLogger())
	snap, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Applications) != 0 || snap.Applications == nil {
		t.Errorf("applications = %#v, want empty non-nil", snap.Applications)
	}
	if len(snap.Waitlist) != 0 || snap.Waitlist == nil {
		t.Errorf("waitlist = %#v, want empty non-nil", snap.Waitlist)
	}
	if !snap.CycleOpen {
		t.Error("cycle flag should default to open")
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemory(), quietLogger())

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	apps := []models.Application{{
		ID:          "a1",
		Email:       "a@x.org",
		Program:     models.ProgramNexus,
		Status:      models.StatusNew,
		SubmittedAt: now,
		CommuniqueHistory: []models.Communique{
			{ID: "c1", Type: models.CommuniqueSystem, Timestamp: now},
		},
	}}
	if err := s.CommitApplications(ctx, apps); err != nil {
		t.Fatal(err)
	}
	if err := s.CommitWaitlist(ctx, []models.WaitlistEntry{{Email: "w@x.org", JoinedAt: now}}); err != nil {
		t.Fatal(err)
	}
	if err := s.CommitCycleFlag(ctx, false); err != nil {
		t.Fatal(err)
	}

	snap, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Applications) != 1 || snap.Applications[0].CommuniqueHistory[0].ID != "c1" {
		t.Errorf("applications = %+v", snap.Applications)
	}
	if len(snap.Waitlist) != 1 || snap.Waitlist[0].Email != "w@x.org" {
		t.Errorf("waitlist = %+v", snap.Waitlist)
	}
	if snap.CycleOpen {
		t.Error("cycle flag = true, want false")
	}
}

func TestStore_CorruptRecordsFallBack(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	_ = mem.Put(ctx, KeyApplications, []byte("{not json"))
	_ = mem.Put(ctx, KeyWaitlist, []byte(`"a string"`))
	_ = mem.Put(ctx, KeyCycleOpen, []byte("maybe"))

	snap, err := NewStore(mem, quietLogger()).Load(ctx)
	if err != nil {
		t.Fatalf("corrupt records must not fail Load: %v", err)
	}
	if len(snap.Applications) != 0 || len(snap.Waitlist) != 0 {
		t.Errorf("corrupt collections should load empty: %+v", snap)
	}
	if !snap.CycleOpen {
		t.Error("corrupt flag should load as default true")
	}
}

func TestStore_CorruptionIsPerKey(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	_ = mem.Put(ctx, KeyApplications, []byte("garbage"))
	_ = mem.Put(ctx, KeyCycleOpen, []byte("false"))

	snap, err := NewStore(mem, quietLogger()).Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.CycleOpen {
		t.Error("valid flag lost because another record was corrupt")
	}
}

func TestStore_NilCollectionsCommitAsEmptyArrays(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	s := NewStore(mem, quietLogger())
	_ = s.CommitWaitlist(ctx, nil)
	raw, ok, _ := mem.Get(ctx, KeyWaitlist)
	if !ok || string(raw) != "[]" {
		t.Errorf("raw = %q, want []", raw)
	}
}
