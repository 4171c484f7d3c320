package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/starford/chancery/internal/models"
)

// Store implements Provider on top of a raw Backend using JSON records.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

var _ Provider = (*Store)(nil)

// NewStore wraps backend. A nil logger falls back to slog.Default().
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger}
}

// Backend returns the underlying raw backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Load reads all three records. Backend I/O errors are returned; undecodable
// records are logged and replaced by their defaults.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Applications: []models.Application{},
		Waitlist:     []models.WaitlistEntry{},
		CycleOpen:    true,
	}

	var apps []models.Application
	if ok, err := s.decode(ctx, KeyApplications, &apps); err != nil {
		return Snapshot{}, err
	} else if ok && apps != nil {
		for i := range apps {
			apps[i] = apps[i].Clone()
		}
		snap.Applications = apps
	}

	var waitlist []models.WaitlistEntry
	if ok, err := s.decode(ctx, KeyWaitlist, &waitlist); err != nil {
		return Snapshot{}, err
	} else if ok && waitlist != nil {
		snap.Waitlist = waitlist
	}

	var open bool
	if ok, err := s.decode(ctx, KeyCycleOpen, &open); err != nil {
		return Snapshot{}, err
	} else if ok {
		snap.CycleOpen = open
	}

	return snap, nil
}

// decode reports ok=false when the record is absent or malformed.
func (s *Store) decode(ctx context.Context, key string, target any) (bool, error) {
	data, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("storage: load %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		s.logger.Warn("storage: discarding malformed record",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return false, nil
	}
	return true, nil
}

// CommitApplications implements Provider.
func (s *Store) CommitApplications(ctx context.Context, apps []models.Application) error {
	if apps == nil {
		apps = []models.Application{}
	}
	return s.put(ctx, KeyApplications, apps)
}

// CommitWaitlist implements Provider.
func (s *Store) CommitWaitlist(ctx context.Context, entries []models.WaitlistEntry) error {
	if entries == nil {
		entries = []models.WaitlistEntry{}
	}
	return s.put(ctx, KeyWaitlist, entries)
}

// CommitCycleFlag implements Provider.
func (s *Store) CommitCycleFlag(ctx context.Context, open bool) error {
	return s.put(ctx, KeyCycleOpen, open)
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	if err := s.backend.Put(ctx, key, data); err != nil {
		return fmt.Errorf("storage: commit %s: %w", key, err)
	}
	return nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
