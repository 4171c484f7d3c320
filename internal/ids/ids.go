// Package ids provides identifier generation for applications and communiques.
package ids

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Provider issues unique opaque identifiers.
type Provider interface {
	NewID() string
}

// UUID issues random version-4 UUIDs.
type UUID struct{}

// NewID implements Provider.
func (UUID) NewID() string {
	return uuid.New().String()
}

// Sequence issues monotonically increasing ids of the form "<prefix>-<n>".
// It is safe for concurrent use.
type Sequence struct {
	Prefix string
	n      atomic.Uint64
}

// NewSequence returns a Sequence starting at 1.
func NewSequence(prefix string) *Sequence {
	return &Sequence{Prefix: prefix}
}

// NewID implements Provider.
func (s *Sequence) NewID() string {
	return fmt.Sprintf("%s-%d", s.Prefix, s.n.Add(1))
}
