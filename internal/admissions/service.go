// Package admissions implements the application lifecycle, the duplicate
// guard, the waitlist registry and the admissions cycle gate.
package admissions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/chancery/internal/dispatch"
	"github.com/starford/chancery/internal/ids"
	"github.com/starford/chancery/internal/metrics"
	"github.com/starford/chancery/internal/models"
	"github.com/starford/chancery/internal/scribe"
	"github.com/starford/chancery/internal/storage"
)

// Event kinds passed to an EventFunc.
const (
	EventSubmitted       = "application.submitted"
	EventUpdated         = "application.updated"
	EventWaitlistUpdated = "waitlist.updated"
	EventCycleUpdated    = "cycle.updated"
	EventReloaded        = "records.reloaded"
)

// EventFunc observes committed changes. It is called after the service lock
// is released and must not block.
type EventFunc func(kind string, data any)

// Dispatcher runs notification sequences.
type Dispatcher interface {
	Single(ctx context.Context, d dispatch.Decision) (models.Communique, error)
	Bulk(ctx context.Context, recipients []string) (dispatch.BulkResult, error)
	State() dispatch.State
}

// Console is everything the administrative console renders.
type Console struct {
	Applications []models.Application   `json:"applications"`
	Waitlist     []models.WaitlistEntry `json:"waitlist"`
	CycleOpen    bool                   `json:"cycleOpen"`
	Dispatch     dispatch.State         `json:"dispatch"`
}

// Option configures a Service.
type Option func(*Service)

// WithDispatcher sets the notification pipeline.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithGenerator sets the generator used for acknowledgment decrees.
func WithGenerator(g scribe.Generator) Option {
	return func(s *Service) {
		if g != nil {
			s.gen = g
		}
	}
}

// WithAcknowledgment turns generated acknowledgment decrees on or off.
func WithAcknowledgment(enabled bool) Option {
	return func(s *Service) { s.generateAck = enabled }
}

// WithIDs sets the id provider for applications and communiques.
func WithIDs(p ids.Provider) Option {
	return func(s *Service) {
		if p != nil {
			s.ids = p
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStature sets the stature generator.
func WithStature(fn func() models.StatureMetrics) Option {
	return func(s *Service) {
		if fn != nil {
			s.stature = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEvents registers a change observer.
func WithEvents(fn EventFunc) Option {
	return func(s *Service) { s.onEvent = fn }
}

// Service owns the in-memory view of the record store and is the single
// write path for applications, the waitlist and the cycle flag.
//
// Every read-modify-commit runs under mu, and the cached snapshot is replaced
// only after the store accepts the write. Dispatch runs outside mu; its result
// is re-validated against the current record before commit.
type Service struct {
	store       storage.Provider
	dispatcher  Dispatcher
	gen         scribe.Generator
	generateAck bool
	ids         ids.Provider
	now         func() time.Time
	stature     func() models.StatureMetrics
	logger      *slog.Logger
	metrics     *metrics.Metrics
	onEvent     EventFunc

	mu   sync.Mutex
	snap storage.Snapshot
}

// New loads the current records from store and returns a ready Service.
func New(ctx context.Context, store storage.Provider, opts ...Option) (*Service, error) {
	s := &Service{
		store:   store,
		gen:     scribe.Disabled{},
		ids:     ids.UUID{},
		now:     time.Now,
		stature: RandomStature,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dispatcher == nil {
		s.dispatcher = dispatch.New(dispatch.WithLogger(s.logger), dispatch.WithIDs(s.ids))
	}

	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("admissions: load records: %w", err)
	}
	s.snap = snap
	s.metrics.SetWaitlistSize(len(snap.Waitlist))
	return s, nil
}

// Reload replaces the cached records with the store's current contents.
// The load holds mu so no commit lands between the read and the swap.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.Lock()
	snap, err := s.store.Load(ctx)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("admissions: reload records: %w", err)
	}
	s.snap = snap
	s.mu.Unlock()

	s.metrics.SetWaitlistSize(len(snap.Waitlist))
	s.logger.Info("records reloaded",
		slog.Int("applications", len(snap.Applications)),
		slog.Int("waitlist", len(snap.Waitlist)),
		slog.Bool("cycle_open", snap.CycleOpen))
	s.emit(EventReloaded, map[string]any{
		"applications": len(snap.Applications),
		"waitlist":     len(snap.Waitlist),
		"cycleOpen":    snap.CycleOpen,
	})
	return nil
}

// Console returns copies of every collection plus the dispatch progress view.
func (s *Service) Console() Console {
	s.mu.Lock()
	c := Console{
		Applications: cloneApplications(s.snap.Applications),
		Waitlist:     append([]models.WaitlistEntry{}, s.snap.Waitlist...),
		CycleOpen:    s.snap.CycleOpen,
	}
	s.mu.Unlock()
	c.Dispatch = s.dispatcher.State()
	return c
}

// DispatchState returns the dispatch progress view.
func (s *Service) DispatchState() dispatch.State {
	return s.dispatcher.State()
}

func (s *Service) emit(kind string, data any) {
	if s.onEvent != nil {
		s.onEvent(kind, data)
	}
}

func cloneApplications(apps []models.Application) []models.Application {
	out := make([]models.Application, len(apps))
	for i, a := range apps {
		out[i] = a.Clone()
	}
	return out
}
