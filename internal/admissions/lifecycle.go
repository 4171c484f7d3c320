package admissions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/chancery/internal/apperr"
	"github.com/starford/chancery/internal/dispatch"
	"github.com/starford/chancery/internal/models"
	"github.com/starford/chancery/internal/scribe"
)

// Texts of the System communique recorded at submission.
const (
	AcknowledgmentSubject = "Application Recorded"
	DefaultAcknowledgment = "Your request for alignment has been recorded."
)

var transitions = map[models.Status][]models.Status{
	models.StatusNew:      {models.StatusReviewed, models.StatusApproved, models.StatusDeclined},
	models.StatusReviewed: {models.StatusApproved, models.StatusDeclined},
}

// CanTransition reports whether an application may move from one status to
// another. Keeping the same status is always allowed.
func CanTransition(from, to models.Status) bool {
	if from == to {
		return to.Valid()
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Submit records a new application in status New.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (models.Application, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return models.Application{}, invalid(err)
	}
	program, _ := models.ParseProgram(in.Program)

	if err := s.admit(in.Email, program); err != nil {
		return models.Application{}, err
	}

	ack := in.Acknowledgment
	if ack == "" {
		ack = s.acknowledgment(ctx, in.FullName, program)
	}

	s.mu.Lock()
	// Re-check: the lock was released while the decree was drafted.
	if err := s.admitLocked(in.Email, program); err != nil {
		s.mu.Unlock()
		return models.Application{}, err
	}

	now := s.now()
	app := models.Application{
		ID:         s.ids.NewID(),
		FullName:   in.FullName,
		Email:      in.Email,
		Phone:      in.Phone,
		Program:    program,
		Experience: in.Experience,
		Statement:  in.Statement,
		Status:     models.StatusNew,
		CommuniqueHistory: []models.Communique{{
			ID:        s.ids.NewID(),
			Type:      models.CommuniqueSystem,
			Subject:   AcknowledgmentSubject,
			Content:   ack,
			Timestamp: now,
		}},
		SubmittedAt: now,
	}

	next := make([]models.Application, 0, len(s.snap.Applications)+1)
	next = append(next, app)
	next = append(next, s.snap.Applications...)
	if err := s.store.CommitApplications(ctx, next); err != nil {
		s.mu.Unlock()
		return models.Application{}, fmt.Errorf("admissions: submit: %w", err)
	}
	s.snap.Applications = next
	s.mu.Unlock()

	s.metrics.IncSubmission(string(program))
	s.logger.Info("application submitted",
		slog.String("id", app.ID),
		slog.String("program", string(program)))
	s.emit(EventSubmitted, app.Clone())
	return app.Clone(), nil
}

func (s *Service) admit(email string, program models.Program) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admitLocked(email, program)
}

func (s *Service) admitLocked(email string, program models.Program) error {
	if !s.snap.CycleOpen {
		return apperr.ErrCycleClosed
	}
	if IsDuplicate(s.snap.Applications, email, program) {
		s.metrics.IncDuplicate()
		return &DuplicateError{Email: email, Program: program}
	}
	return nil
}

func (s *Service) acknowledgment(ctx context.Context, fullName string, program models.Program) string {
	if !s.generateAck {
		return DefaultAcknowledgment
	}
	text, err := s.gen.Generate(ctx, scribe.AcknowledgmentPrompt(fullName, program))
	if err != nil {
		s.logger.Warn("acknowledgment decree unavailable", slog.String("error", err.Error()))
		s.metrics.IncScribeFallback("acknowledgment")
		return scribe.FallbackAcknowledgment
	}
	if text = strings.TrimSpace(text); text == "" {
		s.metrics.IncScribeFallback("acknowledgment")
		return scribe.FallbackAcknowledgment
	}
	return text
}

// UpdateStatus applies a status change with optional notes, communique and
// stature, then commits. It does not dispatch anything.
func (s *Service) UpdateStatus(ctx context.Context, id string, in UpdateInput) (models.Application, error) {
	if !in.Status.Valid() {
		return models.Application{}, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalid, in.Status)
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return models.Application{}, fmt.Errorf("admissions: application %s: %w", id, apperr.ErrNotFound)
	}
	cur := s.snap.Applications[idx]
	if !CanTransition(cur.Status, in.Status) {
		s.mu.Unlock()
		return models.Application{}, fmt.Errorf("admissions: %s to %s: %w", cur.Status, in.Status, apperr.ErrInvalidTransition)
	}

	updated := cur.Clone()
	updated.Status = in.Status
	if in.Notes != nil {
		updated.InternalNotes = *in.Notes
	}
	if in.Communique != nil {
		updated.CommuniqueHistory = models.PrependCommunique(cur.CommuniqueHistory, *in.Communique)
	}
	if in.Stature != nil {
		st := *in.Stature
		updated.Stature = &st
	}

	next := make([]models.Application, len(s.snap.Applications))
	copy(next, s.snap.Applications)
	next[idx] = updated
	if err := s.store.CommitApplications(ctx, next); err != nil {
		s.mu.Unlock()
		return models.Application{}, fmt.Errorf("admissions: update %s: %w", id, err)
	}
	s.snap.Applications = next
	s.mu.Unlock()

	if cur.Status != updated.Status {
		s.metrics.IncTransition(string(cur.Status), string(updated.Status))
	}
	s.logger.Info("application updated",
		slog.String("id", id),
		slog.String("from", string(cur.Status)),
		slog.String("to", string(updated.Status)))
	s.emit(EventUpdated, updated.Clone())
	return updated.Clone(), nil
}

// Decide applies an administrator decision. Moving into Approved or Declined
// runs the notification pipeline first; if it fails the application is left
// unchanged. Approval attaches a stature profile unless one exists.
func (s *Service) Decide(ctx context.Context, id string, in DecideInput) (models.Application, error) {
	if !in.Status.Valid() {
		return models.Application{}, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalid, in.Status)
	}
	cur, err := s.Get(id)
	if err != nil {
		return models.Application{}, err
	}
	if !CanTransition(cur.Status, in.Status) {
		return models.Application{}, fmt.Errorf("admissions: %s to %s: %w", cur.Status, in.Status, apperr.ErrInvalidTransition)
	}

	// Once dispatch starts, the relay and its commit run to completion.
	ctx = context.WithoutCancel(ctx)

	upd := UpdateInput{Status: in.Status, Notes: in.Notes}
	if in.Status.Terminal() && cur.Status != in.Status {
		c, err := s.dispatcher.Single(ctx, dispatch.Decision{
			Status:     in.Status,
			FullName:   cur.FullName,
			Email:      cur.Email,
			Program:    cur.Program,
			Experience: cur.Experience,
		})
		if err != nil {
			s.logger.Warn("decision not committed",
				slog.String("id", id),
				slog.String("status", string(in.Status)),
				slog.String("error", err.Error()))
			return models.Application{}, err
		}
		upd.Communique = &c
	}
	if in.Status == models.StatusApproved && cur.Stature == nil {
		st := s.stature()
		upd.Stature = &st
	}
	app, err := s.UpdateStatus(ctx, id, upd)
	if err != nil && upd.Communique != nil {
		s.logger.Warn("relayed communique discarded",
			slog.String("id", id),
			slog.String("communique_id", upd.Communique.ID),
			slog.String("status", string(in.Status)),
			slog.String("error", err.Error()))
	}
	return app, err
}

// Get returns a copy of one application.
func (s *Service) Get(id string) (models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Application{}, fmt.Errorf("admissions: application %s: %w", id, apperr.ErrNotFound)
	}
	return s.snap.Applications[idx].Clone(), nil
}

// List returns applications newest first, optionally restricted to one status.
func (s *Service) List(status models.Status) []models.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Application, 0, len(s.snap.Applications))
	for _, a := range s.snap.Applications {
		if status == "" || a.Status == status {
			out = append(out, a.Clone())
		}
	}
	return out
}

// Lookup returns the newest application filed under email, without internal notes.
func (s *Service) Lookup(email string) (models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.snap.Applications {
		if models.EmailEqual(a.Email, email) {
			out := a.Clone()
			out.InternalNotes = ""
			return out, nil
		}
	}
	return models.Application{}, fmt.Errorf("admissions: no application for %s: %w", email, apperr.ErrNotFound)
}

func (s *Service) indexLocked(id string) int {
	for i, a := range s.snap.Applications {
		if a.ID == id {
			return i
		}
	}
	return -1
}
