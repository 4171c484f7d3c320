package admissions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/chancery/internal/apperr"
	"github.com/starford/chancery/internal/dispatch"
	"github.com/starford/chancery/internal/models"
)

// JoinWaitlist adds email to the waitlist. Joining twice is a no-op that
// returns the existing entry and false.
func (s *Service) JoinWaitlist(ctx context.Context, email string) (models.WaitlistEntry, bool, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return models.WaitlistEntry{}, false, invalid(fmt.Errorf("email: %w", err))
	}

	s.mu.Lock()
	for _, e := range s.snap.Waitlist {
		if models.EmailEqual(e.Email, email) {
			s.mu.Unlock()
			return e, false, nil
		}
	}

	entry := models.WaitlistEntry{Email: email, JoinedAt: s.now()}
	next := make([]models.WaitlistEntry, 0, len(s.snap.Waitlist)+1)
	next = append(next, entry)
	next = append(next, s.snap.Waitlist...)
	if err := s.store.CommitWaitlist(ctx, next); err != nil {
		s.mu.Unlock()
		return models.WaitlistEntry{}, false, fmt.Errorf("admissions: join waitlist: %w", err)
	}
	s.snap.Waitlist = next
	size := len(next)
	s.mu.Unlock()

	s.metrics.SetWaitlistSize(size)
	s.logger.Info("waitlist joined", slog.Int("size", size))
	s.emit(EventWaitlistUpdated, map[string]any{"size": size})
	return entry, true, nil
}

// Waitlist returns the entries, newest first.
func (s *Service) Waitlist() []models.WaitlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WaitlistEntry{}, s.snap.Waitlist...)
}

// ClearWaitlist removes every entry.
func (s *Service) ClearWaitlist(ctx context.Context) error {
	s.mu.Lock()
	if err := s.store.CommitWaitlist(ctx, []models.WaitlistEntry{}); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("admissions: clear waitlist: %w", err)
	}
	removed := len(s.snap.Waitlist)
	s.snap.Waitlist = []models.WaitlistEntry{}
	s.mu.Unlock()

	s.metrics.SetWaitlistSize(0)
	s.logger.Info("waitlist cleared", slog.Int("removed", removed))
	s.emit(EventWaitlistUpdated, map[string]any{"size": 0})
	return nil
}

// NotifyWaitlist summons every waitlisted email. It requires an open cycle
// and a non-empty waitlist, and leaves membership unchanged.
func (s *Service) NotifyWaitlist(ctx context.Context) (dispatch.BulkResult, error) {
	s.mu.Lock()
	if !s.snap.CycleOpen {
		s.mu.Unlock()
		return dispatch.BulkResult{}, apperr.ErrCycleClosed
	}
	if len(s.snap.Waitlist) == 0 {
		s.mu.Unlock()
		return dispatch.BulkResult{}, apperr.ErrWaitlistEmpty
	}
	recipients := make([]string, len(s.snap.Waitlist))
	for i, e := range s.snap.Waitlist {
		recipients[i] = e.Email
	}
	s.mu.Unlock()

	res, err := s.dispatcher.Bulk(ctx, recipients)
	if err != nil {
		return dispatch.BulkResult{}, err
	}
	s.logger.Info("waitlist summoned", slog.Int("recipients", res.Recipients))
	return res, nil
}

// CycleOpen reports whether the admissions cycle is open.
func (s *Service) CycleOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.CycleOpen
}

// SetCycle opens or closes the admissions cycle.
func (s *Service) SetCycle(ctx context.Context, open bool) error {
	s.mu.Lock()
	err := s.setCycleLocked(ctx, open)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.cycleChanged(open)
	return nil
}

// ToggleCycle flips the admissions cycle and returns the new value.
func (s *Service) ToggleCycle(ctx context.Context) (bool, error) {
	s.mu.Lock()
	open := !s.snap.CycleOpen
	err := s.setCycleLocked(ctx, open)
	s.mu.Unlock()
	if err != nil {
		return !open, err
	}
	s.cycleChanged(open)
	return open, nil
}

func (s *Service) setCycleLocked(ctx context.Context, open bool) error {
	if err := s.store.CommitCycleFlag(ctx, open); err != nil {
		return fmt.Errorf("admissions: set cycle: %w", err)
	}
	s.snap.CycleOpen = open
	return nil
}

func (s *Service) cycleChanged(open bool) {
	s.logger.Info("admissions cycle changed", slog.Bool("open", open))
	s.emit(EventCycleUpdated, map[string]bool{"cycleOpen": open})
}
