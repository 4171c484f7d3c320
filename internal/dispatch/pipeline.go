package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/chancery/internal/apperr"
	"github.com/starford/chancery/internal/ids"
	"github.com/starford/chancery/internal/metrics"
	"github.com/starford/chancery/internal/models"
	"github.com/starford/chancery/internal/scribe"
)

// Stage is one named step of a dispatch run. The progress value and log line
// are published before Run executes; Delay is waited out afterwards.
type Stage struct {
	Name     string
	Progress int
	Line     string
	Run      func(ctx context.Context) error
	Delay    time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTiming replaces the stage pacing.
func WithTiming(t Timing) Option {
	return func(p *Pipeline) { p.timing = t }
}

// WithSleep replaces the function used to wait out stage delays.
func WithSleep(fn func(time.Duration)) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

// WithGenerator sets the text generator used to draft content.
func WithGenerator(g scribe.Generator) Option {
	return func(p *Pipeline) {
		if g != nil {
			p.gen = g
		}
	}
}

// WithRelay sets the outbound relay.
func WithRelay(r Relay) Option {
	return func(p *Pipeline) { p.relay = r }
}

// WithIDs sets the communique id provider.
func WithIDs(provider ids.Provider) Option {
	return func(p *Pipeline) {
		if provider != nil {
			p.ids = provider
		}
	}
}

// WithReporter sets the event sink.
func WithReporter(r Reporter) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.reporter = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithNow sets the clock.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// Pipeline executes dispatch runs one at a time.
//
// The busy flag admits a single run; a concurrent attempt fails fast with
// apperr.ErrDispatchBusy. Transient state survives the run for a grace period
// so the console can show the outcome, then resets unless a newer run began.
type Pipeline struct {
	timing   Timing
	sleep    func(time.Duration)
	gen      scribe.Generator
	relay    Relay
	ids      ids.Provider
	reporter Reporter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	busy atomic.Bool

	mu    sync.Mutex
	state State
	runID uint64
}

// New builds a Pipeline with default pacing, a disabled generator and a log relay.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		timing:   DefaultTiming(),
		sleep:    time.Sleep,
		gen:      scribe.Disabled{},
		ids:      ids.UUID{},
		reporter: nopReporter{},
		logger:   slog.Default(),
		now:      time.Now,
		state:    State{Logs: []string{}},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.relay == nil {
		p.relay = LogRelay{Logger: p.logger}
	}
	if p.timing.LogLines <= 0 {
		p.timing.LogLines = DefaultTiming().LogLines
	}
	return p
}

// Busy reports whether a run is in progress.
func (p *Pipeline) Busy() bool {
	return p.busy.Load()
}

// State returns a copy of the transient progress view.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.state
	s.Logs = append([]string{}, p.state.Logs...)
	return s
}

// Single drafts and relays the decision letter for one applicant. Only
// Approved and Declined produce a communique. The run ignores cancellation
// of ctx once started.
func (p *Pipeline) Single(ctx context.Context, d Decision) (models.Communique, error) {
	var (
		kind    models.CommuniqueType
		subject string
		prompt  string
	)
	switch d.Status {
	case models.StatusApproved:
		kind = models.CommuniqueApproval
		subject = "Institutional Acceptance: " + string(d.Program)
		prompt = scribe.ApprovalPrompt(d.FullName, d.Program, d.Experience)
	case models.StatusDeclined:
		kind = models.CommuniqueRejection
		subject = "Alignment Determination: " + string(d.Program)
		prompt = scribe.DeclinePrompt(d.FullName, d.Program)
	default:
		return models.Communique{}, fmt.Errorf("dispatch: no notification for status %q: %w", d.Status, apperr.ErrInvalid)
	}

	if !p.acquire(VariantSingle) {
		p.metrics.ObserveDispatch(string(VariantSingle), "busy", 0)
		return models.Communique{}, apperr.ErrDispatchBusy
	}
	ctx = context.WithoutCancel(ctx)
	start := p.now()
	t := p.timing

	var content string
	stages := []Stage{
		{
			Name:     "init",
			Progress: 5,
			Line:     fmt.Sprintf("INITIALIZING %s NOTIFICATION SEQUENCE...", strings.ToUpper(string(d.Status))),
		},
		{
			Name:     "credential-check",
			Progress: 20,
			Line:     fmt.Sprintf("Uplinking to SMTP Registry for %s...", d.Email),
			Delay:    t.CheckDelay,
		},
		{
			Name:     "draft",
			Progress: 40,
			Line:     fmt.Sprintf("Invoking Apostolic Scribe for %s communique...", d.Status),
			Run: func(ctx context.Context) error {
				content = p.draft(ctx, prompt, scribe.FallbackDecision, "decision")
				return nil
			},
		},
		{
			Name:     "encrypt",
			Progress: 60,
			Line:     "Communique drafted. Encrypting transmission...",
			Delay:    t.EncryptDelay,
		},
		{
			Name:     "relay",
			Progress: 85,
			Line:     fmt.Sprintf("Relaying via secure channel to %s...", d.FullName),
			Run: func(ctx context.Context) error {
				return p.relay.Send(ctx, Envelope{To: d.Email, Name: d.FullName, Subject: subject, Body: content})
			},
			Delay: t.RelayDelay,
		},
		{
			Name:     "complete",
			Progress: 100,
			Line:     "DISPATCH SUCCESSFUL. NOTIFICATION LOGGED.",
		},
	}

	if err := p.run(ctx, VariantSingle, stages); err != nil {
		p.fail(VariantSingle, "CRITICAL FAILURE: DISPATCH INTERRUPTED.", err, start)
		return models.Communique{}, fmt.Errorf("dispatch: %w", apperr.ErrDispatchFailed)
	}

	c := models.Communique{
		ID:        p.ids.NewID(),
		Type:      kind,
		Subject:   subject,
		Content:   content,
		Timestamp: p.now(),
	}
	p.finish(VariantSingle, EventCompleted, t.Grace, start)
	return c, nil
}

// Bulk summons every recipient with one shared generated notice.
func (p *Pipeline) Bulk(ctx context.Context, recipients []string) (BulkResult, error) {
	if len(recipients) == 0 {
		return BulkResult{}, fmt.Errorf("dispatch: %w", apperr.ErrWaitlistEmpty)
	}
	if !p.acquire(VariantBulk) {
		p.metrics.ObserveDispatch(string(VariantBulk), "busy", 0)
		return BulkResult{}, apperr.ErrDispatchBusy
	}
	ctx = context.WithoutCancel(ctx)
	start := p.now()
	t := p.timing
	n := len(recipients)
	subject := fmt.Sprintf("Apostolic Summons: Admissions Cycle %d", start.Year())

	var content string
	stages := []Stage{
		{Name: "init", Progress: 5, Line: "INITIALIZING GLOBAL WAITLIST DISPATCH..."},
		{Name: "relay-check", Progress: 15, Line: "Connecting to Hub Relays...", Delay: t.BulkCheckDelay},
		{
			Name:     "draft",
			Progress: 30,
			Line:     `Invoking Apostolic Scribe for "Summons" communique...`,
			Run: func(ctx context.Context) error {
				content = p.draft(ctx, scribe.SummonsPrompt(start.Year()), scribe.FallbackSummons, "summons")
				return nil
			},
		},
		{Name: "authenticate", Progress: 50, Line: "Summons content generated and authenticated.", Delay: t.BulkSettleDelay},
	}
	for i, email := range recipients {
		relay := Stage{
			Name:     "relay",
			Progress: 50 + (i+1)*45/n,
			Line:     fmt.Sprintf("Relaying to: %s...", email),
			Run: func(ctx context.Context) error {
				return p.relay.Send(ctx, Envelope{To: email, Subject: subject, Body: content})
			},
			Delay: t.RecipientDelay,
		}
		if t.BatchSize > 0 && i != 0 && i%t.BatchSize == 0 {
			batch := Stage{
				Name:     "batch",
				Progress: relay.Progress,
				Line:     fmt.Sprintf("Batch %d dispatch confirmed.", i/t.BatchSize),
				Delay:    relay.Delay,
			}
			relay.Delay = 0
			stages = append(stages, relay, batch)
			continue
		}
		stages = append(stages, relay)
	}
	stages = append(stages, Stage{
		Name:     "complete",
		Progress: 100,
		Line:     fmt.Sprintf("DISPATCH COMPLETE. %d seekers summoned.", n),
	})

	if err := p.run(ctx, VariantBulk, stages); err != nil {
		p.fail(VariantBulk, "CRITICAL FAILURE: WAITLIST RELAY INTERRUPTED.", err, start)
		return BulkResult{}, fmt.Errorf("dispatch: %w", apperr.ErrDispatchFailed)
	}

	res := BulkResult{Recipients: n, Subject: subject, Content: content, CompletedAt: p.now()}
	p.finish(VariantBulk, EventCompleted, t.BulkGrace, start)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, v Variant, stages []Stage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %v", r)
		}
	}()
	for _, s := range stages {
		p.advance(v, s.Progress, s.Line)
		if s.Run != nil {
			if err := s.Run(ctx); err != nil {
				return fmt.Errorf("%s: %w", s.Name, err)
			}
		}
		if s.Delay > 0 {
			p.sleep(s.Delay)
		}
	}
	return nil
}

// draft asks the generator for text, substituting fallback on error or empty output.
func (p *Pipeline) draft(ctx context.Context, prompt, fallback, kind string) string {
	text, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		p.logger.Warn("scribe failed, using fallback text",
			slog.String("kind", kind),
			slog.String("error", err.Error()))
		p.metrics.IncScribeFallback(kind)
		return fallback
	}
	text = strings.TrimSpace(text)
	if text == "" {
		p.logger.Warn("scribe returned no text, using fallback text", slog.String("kind", kind))
		p.metrics.IncScribeFallback(kind)
		return fallback
	}
	return text
}

func (p *Pipeline) acquire(v Variant) bool {
	if !p.busy.CompareAndSwap(false, true) {
		return false
	}
	p.mu.Lock()
	p.runID++
	p.state = State{Active: true, Variant: v, Logs: []string{}}
	p.mu.Unlock()
	return true
}

func (p *Pipeline) advance(v Variant, progress int, line string) {
	p.mu.Lock()
	if progress > p.state.Progress {
		p.state.Progress = progress
	}
	cur := p.state.Progress
	if line != "" {
		p.appendLogLocked(line)
	}
	p.mu.Unlock()

	p.reporter.Report(Event{Kind: EventProgress, Variant: v, Progress: cur})
	if line == "" {
		return
	}
	p.logger.Info("dispatch",
		slog.String("variant", string(v)),
		slog.Int("progress", cur),
		slog.String("line", line))
	p.reporter.Report(Event{Kind: EventLog, Variant: v, Progress: cur, Line: line})
}

func (p *Pipeline) appendLogLocked(line string) {
	logs := append(p.state.Logs, "> "+line)
	if over := len(logs) - p.timing.LogLines; over > 0 {
		logs = append([]string{}, logs[over:]...)
	}
	p.state.Logs = logs
}

func (p *Pipeline) fail(v Variant, line string, cause error, start time.Time) {
	p.logger.Error("dispatch interrupted",
		slog.String("variant", string(v)),
		slog.String("error", cause.Error()))

	p.mu.Lock()
	p.appendLogLocked(line)
	progress := p.state.Progress
	p.mu.Unlock()
	p.reporter.Report(Event{Kind: EventLog, Variant: v, Progress: progress, Line: line})

	p.finish(v, EventFailed, p.timing.FailureGrace, start)
}

// finish releases the busy flag and schedules the transient state reset.
func (p *Pipeline) finish(v Variant, kind string, grace time.Duration, start time.Time) {
	p.mu.Lock()
	p.state.Active = false
	id := p.runID
	progress := p.state.Progress
	p.mu.Unlock()
	p.busy.Store(false)

	outcome := "completed"
	if kind == EventFailed {
		outcome = "failed"
	}
	p.metrics.ObserveDispatch(string(v), outcome, p.now().Sub(start))
	p.reporter.Report(Event{Kind: kind, Variant: v, Progress: progress})

	reset := func() {
		p.mu.Lock()
		if p.runID != id || p.state.Active {
			p.mu.Unlock()
			return
		}
		p.state = State{Logs: []string{}}
		p.mu.Unlock()
		p.reporter.Report(Event{Kind: EventCleared, Variant: v})
	}
	if grace <= 0 {
		reset()
		return
	}
	time.AfterFunc(grace, reset)
}
