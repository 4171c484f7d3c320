package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const recordExt = ".json"

// FS implements Backend with one JSON file per record key.
type FS struct {
	root string // absolute path to the data directory

	mu      sync.Mutex
	written map[string]string // key → checksum of our last write
}

// NewFS creates a new FS backend rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs, written: make(map[string]string)}, nil
}

// Root returns the absolute data directory.
func (f *FS) Root() string {
	return f.root
}

// recordPath maps a key to its file, rejecting anything that is not a bare name.
func (f *FS) recordPath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key != filepath.Clean(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("storage: invalid record key: %q", key)
	}
	return filepath.Join(f.root, key+recordExt), nil
}

// keyForPath is the inverse of recordPath; ok is false for unrelated files.
func (f *FS) keyForPath(p string) (string, bool) {
	if filepath.Dir(p) != f.root {
		return "", false
	}
	name := filepath.Base(p)
	if !strings.HasSuffix(name, recordExt) || strings.HasPrefix(name, ".") {
		return "", false
	}
	return strings.TrimSuffix(name, recordExt), true
}

// Get implements Backend.
func (f *FS) Get(_ context.Context, key string) ([]byte, bool, error) {
	p, err := f.recordPath(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, true, nil
}

// Put atomically writes content: tmp file → fsync → rename.
func (f *FS) Put(_ context.Context, key string, content []byte) error {
	p, err := f.recordPath(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".chancery-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}

	// The baseline is set before the rename so the watcher never sees our
	// own write as external. A failed rename restores the previous one.
	f.mu.Lock()
	prev, hadPrev := f.written[key]
	f.written[key] = digest(content)
	f.mu.Unlock()

	if err := os.Rename(tmpName, p); err != nil {
		f.mu.Lock()
		if hadPrev {
			f.written[key] = prev
		} else {
			delete(f.written, key)
		}
		f.mu.Unlock()
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// ExternallyChanged reports whether the record on disk differs from the last
// content this process wrote or observed for key. A detected change becomes
// the new baseline, so repeated events for the same edit report once.
func (f *FS) ExternallyChanged(key string) bool {
	p, err := f.recordPath(key)
	if err != nil {
		return false
	}
	data, err := os.ReadFile(p)
	var sum string
	if err == nil {
		sum = digest(data)
	} else if !errors.Is(err, os.ErrNotExist) {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.written[key] == sum {
		return false
	}
	f.written[key] = sum
	return true
}

// Close implements Backend.
func (f *FS) Close() error { return nil }

func digest(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
