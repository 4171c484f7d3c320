// Package storage defines the Record Store and its pluggable backends.
package storage

import (
	"context"

	"github.com/starford/chancery/internal/models"
)

// Logical record keys. Each is persisted independently.
const (
	KeyApplications = "applications"
	KeyWaitlist     = "waitlist"
	KeyCycleOpen    = "cycle_open"
)

// Keys lists every record key.
var Keys = []string{KeyApplications, KeyWaitlist, KeyCycleOpen}

// Snapshot is the full persisted state.
type Snapshot struct {
	Applications []models.Application   `json:"applications"`
	Waitlist     []models.WaitlistEntry `json:"waitlist"`
	CycleOpen    bool                   `json:"cycleOpen"`
}

// Provider is the Record Store: typed load and whole-collection commits.
type Provider interface {
	// Load returns the persisted state. Malformed records load as their defaults.
	Load(ctx context.Context) (Snapshot, error)
	// CommitApplications replaces the application collection.
	CommitApplications(ctx context.Context, apps []models.Application) error
	// CommitWaitlist replaces the waitlist collection.
	CommitWaitlist(ctx context.Context, entries []models.WaitlistEntry) error
	// CommitCycleFlag replaces the admissions cycle flag.
	CommitCycleFlag(ctx context.Context, open bool) error
}

// Backend stores raw encoded records by key.
type Backend interface {
	// Get returns the raw record. ok is false when the key has never been written.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	// Put replaces the raw record atomically.
	Put(ctx context.Context, key string, data []byte) error
	// Close releases backend resources.
	Close() error
}
