package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func tempFS(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestFS_PutAndGet(t *testing.T) {
	s := tempFS(t)
	ctx := context.Background()
	content := []byte(`[{"email":"a@x.org"}]`)
	if err := s.Put(ctx, KeyWaitlist, content); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := s.Get(ctx, KeyWaitlist)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "waitlist.json")); err != nil {
		t.Errorf("record file missing: %v", err)
	}
}

func TestFS_GetMissing(t *testing.T) {
	s := tempFS(t)
	_, ok, err := s.Get(context.Background(), KeyApplications)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("missing record reported as present")
	}
}

func TestFS_InvalidKeysRejected(t *testing.T) {
	s := tempFS(t)
	for _, k := range []string{"", "../escape", "a/b", ".hidden", `..\x`} {
		if err := s.Put(context.Background(), k, []byte("x")); err == nil {
			t.Errorf("expected error for key %q", k)
		}
	}
}

func TestFS_AtomicWriteNoLeftovers(t *testing.T) {
	s := tempFS(t)
	ctx := context.Background()
	_ = s.Put(ctx, KeyCycleOpen, []byte("true"))
	if err := s.Put(ctx, KeyCycleOpen, []byte("false")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, _, _ := s.Get(ctx, KeyCycleOpen)
	if string(got) != "false" {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".chancery-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestFS_ExternallyChanged(t *testing.T) {
	s := tempFS(t)
	_ = s.Put(context.Background(), KeyCycleOpen, []byte("true"))
	if s.ExternallyChanged(KeyCycleOpen) {
		t.Fatal("own write reported as external")
	}
	if err := os.WriteFile(filepath.Join(s.Root(), "cycle_open.json"), []byte("false"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !s.ExternallyChanged(KeyCycleOpen) {
		t.Fatal("external edit not detected")
	}
	if s.ExternallyChanged(KeyCycleOpen) {
		t.Error("same external edit reported twice")
	}
}

func TestFS_FailedPutKeepsBaseline(t *testing.T) {
	s := tempFS(t)
	target := filepath.Join(s.Root(), "cycle_open.json")
	if err := os.MkdirAll(filepath.Join(target, "occupied"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(context.Background(), KeyCycleOpen, []byte("false")); err == nil {
		t.Fatal("Put over a directory should fail")
	}

	if err := os.RemoveAll(target); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("false"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !s.ExternallyChanged(KeyCycleOpen) {
		t.Error("external edit matching a failed write was masked")
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/chancery-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "chancery-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
