package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/chancery/internal/apperr"
	"github.com/starford/chancery/internal/ids"
	"github.com/starford/chancery/internal/models"
	"github.com/starford/chancery/internal/scribe"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Report(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) lines() []string {
	var out []string
	for _, e := range r.snapshot() {
		if e.Kind == EventLog {
			out = append(out, e.Line)
		}
	}
	return out
}

func (r *recorder) kinds(kind string) int {
	n := 0
	for _, e := range r.snapshot() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type relayFunc func(ctx context.Context, env Envelope) error

func (f relayFunc) Send(ctx context.Context, env Envelope) error { return f(ctx, env) }

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func instantTiming() Timing {
	t := DefaultTiming()
	t.Grace, t.BulkGrace, t.FailureGrace = 0, 0, 0
	return t
}

func newTestPipeline(rec *recorder, opts ...Option) *Pipeline {
	base := []Option{
		WithTiming(instantTiming()),
		WithSleep(func(time.Duration) {}),
		WithIDs(ids.NewSequence("msg")),
		WithReporter(rec),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithNow(func() time.Time { return fixedNow }),
	}
	return New(append(base, opts...)...)
}

func approval() Decision {
	return Decision{
		Status:     models.StatusApproved,
		FullName:   "Ada Obi",
		Email:      "ada@example.org",
		Program:    models.ProgramNexus,
		Experience: "youth ministry",
	}
}

func assertMonotonic(t *testing.T, events []Event) {
	t.Helper()
	last := 0
	for _, e := range events {
		if e.Kind != EventProgress {
			continue
		}
		assert.GreaterOrEqual(t, e.Progress, last, "progress went backwards")
		last = e.Progress
	}
	assert.Equal(t, 100, last)
}

func TestSingle_Approval(t *testing.T) {
	rec := &recorder{}
	var sent []Envelope
	var prompt string
	p := newTestPipeline(rec,
		WithGenerator(scribe.Func(func(_ context.Context, pr string) (string, error) {
			prompt = pr
			return "  Welcome to the Hub.  ", nil
		})),
		WithRelay(relayFunc(func(_ context.Context, env Envelope) error {
			sent = append(sent, env)
			return nil
		})),
	)

	c, err := p.Single(context.Background(), approval())
	require.NoError(t, err)

	assert.Equal(t, "msg-1", c.ID)
	assert.Equal(t, models.CommuniqueApproval, c.Type)
	assert.Equal(t, "Institutional Acceptance: Nexus", c.Subject)
	assert.Equal(t, "Welcome to the Hub.", c.Content)
	assert.Equal(t, fixedNow, c.Timestamp)

	assert.Contains(t, prompt, "Ada Obi")
	assert.Contains(t, prompt, "youth ministry")

	require.Len(t, sent, 1)
	assert.Equal(t, "ada@example.org", sent[0].To)
	assert.Equal(t, c.Content, sent[0].Body)

	assert.Equal(t, []string{
		"INITIALIZING APPROVED NOTIFICATION SEQUENCE...",
		"Uplinking to SMTP Registry for ada@example.org...",
		"Invoking Apostolic Scribe for Approved communique...",
		"Communique drafted. Encrypting transmission...",
		"Relaying via secure channel to Ada Obi...",
		"DISPATCH SUCCESSFUL. NOTIFICATION LOGGED.",
	}, rec.lines())
	assertMonotonic(t, rec.snapshot())
	assert.Equal(t, 1, rec.kinds(EventCompleted))
	assert.Equal(t, 1, rec.kinds(EventCleared))

	assert.False(t, p.Busy())
	assert.Equal(t, State{Logs: []string{}}, p.State())
}

func TestSingle_DeclineSubjectAndPrompt(t *testing.T) {
	var prompt string
	p := newTestPipeline(&recorder{}, WithGenerator(scribe.Func(func(_ context.Context, pr string) (string, error) {
		prompt = pr
		return "We cannot align at this time.", nil
	})))

	d := approval()
	d.Status = models.StatusDeclined
	c, err := p.Single(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, models.CommuniqueRejection, c.Type)
	assert.Equal(t, "Alignment Determination: Nexus", c.Subject)
	assert.NotContains(t, prompt, "youth ministry")
}

func TestSingle_StageDelays(t *testing.T) {
	var slept []time.Duration
	p := newTestPipeline(&recorder{}, WithSleep(func(d time.Duration) { slept = append(slept, d) }))

	_, err := p.Single(context.Background(), approval())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{
		600 * time.Millisecond,
		500 * time.Millisecond,
		800 * time.Millisecond,
	}, slept)
}

func TestSingle_GeneratorFallback(t *testing.T) {
	cases := map[string]scribe.Generator{
		"error":      scribe.Disabled{},
		"empty":      scribe.Static(""),
		"whitespace": scribe.Static(" \n\t"),
	}
	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			p := newTestPipeline(&recorder{}, WithGenerator(gen))
			c, err := p.Single(context.Background(), approval())
			require.NoError(t, err)
			assert.Equal(t, scribe.FallbackDecision, c.Content)
		})
	}
}

func TestSingle_RejectsNonTerminalStatus(t *testing.T) {
	p := newTestPipeline(&recorder{})
	d := approval()
	d.Status = models.StatusReviewed

	_, err := p.Single(context.Background(), d)
	require.ErrorIs(t, err, apperr.ErrInvalid)
	assert.False(t, p.Busy())
}

func TestSingle_RelayFailure(t *testing.T) {
	rec := &recorder{}
	timing := instantTiming()
	timing.FailureGrace = time.Hour
	p := newTestPipeline(rec,
		WithTiming(timing),
		WithRelay(relayFunc(func(context.Context, Envelope) error { return errors.New("relay down") })),
	)

	c, err := p.Single(context.Background(), approval())
	require.ErrorIs(t, err, apperr.ErrDispatchFailed)
	assert.Empty(t, c.ID)
	assert.False(t, p.Busy())

	st := p.State()
	assert.False(t, st.Active)
	require.NotEmpty(t, st.Logs)
	assert.Equal(t, "> CRITICAL FAILURE: DISPATCH INTERRUPTED.", st.Logs[len(st.Logs)-1])
	assert.Equal(t, 1, rec.kinds(EventFailed))
	assert.Equal(t, 0, rec.kinds(EventCompleted))
}

func TestSingle_GeneratorPanicIsContained(t *testing.T) {
	calls := 0
	p := newTestPipeline(&recorder{}, WithGenerator(scribe.Func(func(context.Context, string) (string, error) {
		calls++
		if calls == 1 {
			panic("scribe exploded")
		}
		return "recovered", nil
	})))

	_, err := p.Single(context.Background(), approval())
	require.ErrorIs(t, err, apperr.ErrDispatchFailed)
	assert.False(t, p.Busy())

	c, err := p.Single(context.Background(), approval())
	require.NoError(t, err)
	assert.Equal(t, "recovered", c.Content)
}

func TestSingle_IgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(&recorder{}, WithGenerator(scribe.Func(func(ctx context.Context, _ string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "drafted", nil
	})))

	c, err := p.Single(ctx, approval())
	require.NoError(t, err)
	assert.Equal(t, "drafted", c.Content)
}

func TestPipeline_BusyRejectsConcurrentRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	p := newTestPipeline(&recorder{}, WithGenerator(scribe.Func(func(context.Context, string) (string, error) {
		close(started)
		<-release
		return "ok", nil
	})))

	done := make(chan error, 1)
	go func() {
		_, err := p.Single(context.Background(), approval())
		done <- err
	}()
	<-started

	assert.True(t, p.Busy())
	assert.True(t, p.State().Active)

	_, err := p.Single(context.Background(), approval())
	require.ErrorIs(t, err, apperr.ErrDispatchBusy)
	_, err = p.Bulk(context.Background(), []string{"a@example.org"})
	require.ErrorIs(t, err, apperr.ErrDispatchBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, p.Busy())
}

func TestBulk_ProgressAndBatches(t *testing.T) {
	rec := &recorder{}
	var mu sync.Mutex
	var sent []string
	p := newTestPipeline(rec,
		WithGenerator(scribe.Static("Come.")),
		WithRelay(relayFunc(func(_ context.Context, env Envelope) error {
			mu.Lock()
			sent = append(sent, env.To)
			mu.Unlock()
			return nil
		})),
	)

	recipients := make([]string, 12)
	for i := range recipients {
		recipients[i] = fmt.Sprintf("s%d@example.org", i)
	}

	res, err := p.Bulk(context.Background(), recipients)
	require.NoError(t, err)
	assert.Equal(t, 12, res.Recipients)
	assert.Equal(t, "Come.", res.Content)
	assert.Equal(t, "Apostolic Summons: Admissions Cycle 2026", res.Subject)
	assert.Equal(t, recipients, sent)

	lines := rec.lines()
	assert.Equal(t, "INITIALIZING GLOBAL WAITLIST DISPATCH...", lines[0])
	assert.Contains(t, lines, "Relaying to: s0@example.org...")
	assert.Contains(t, lines, "Batch 1 dispatch confirmed.")
	assert.Contains(t, lines, "Batch 2 dispatch confirmed.")
	assert.NotContains(t, lines, "Batch 3 dispatch confirmed.")
	assert.Equal(t, "DISPATCH COMPLETE. 12 seekers summoned.", lines[len(lines)-1])
	assertMonotonic(t, rec.snapshot())

	var relayProgress []int
	for _, e := range rec.snapshot() {
		if e.Kind == EventLog && strings.HasPrefix(e.Line, "Relaying to: ") {
			relayProgress = append(relayProgress, e.Progress)
		}
	}
	require.Len(t, relayProgress, 12)
	assert.Equal(t, 53, relayProgress[0])
	assert.Equal(t, 95, relayProgress[11])
}

func TestBulk_Empty(t *testing.T) {
	p := newTestPipeline(&recorder{})
	_, err := p.Bulk(context.Background(), nil)
	require.ErrorIs(t, err, apperr.ErrWaitlistEmpty)
	assert.False(t, p.Busy())
}

func TestBulk_Fallback(t *testing.T) {
	p := newTestPipeline(&recorder{})
	res, err := p.Bulk(context.Background(), []string{"a@example.org"})
	require.NoError(t, err)
	assert.Equal(t, scribe.FallbackSummons, res.Content)
}

func TestBulk_RelayFailure(t *testing.T) {
	timing := instantTiming()
	timing.FailureGrace = time.Hour
	p := newTestPipeline(&recorder{},
		WithTiming(timing),
		WithRelay(relayFunc(func(_ context.Context, env Envelope) error {
			if env.To == "b@example.org" {
				return errors.New("bounced")
			}
			return nil
		})),
	)

	_, err := p.Bulk(context.Background(), []string{"a@example.org", "b@example.org"})
	require.ErrorIs(t, err, apperr.ErrDispatchFailed)
	logs := p.State().Logs
	assert.Equal(t, "> CRITICAL FAILURE: WAITLIST RELAY INTERRUPTED.", logs[len(logs)-1])
}

func TestState_LogIsCapped(t *testing.T) {
	timing := instantTiming()
	timing.BulkGrace = time.Hour
	p := newTestPipeline(&recorder{}, WithTiming(timing))

	_, err := p.Bulk(context.Background(), []string{
		"a@example.org", "b@example.org", "c@example.org", "d@example.org", "e@example.org",
	})
	require.NoError(t, err)

	st := p.State()
	assert.False(t, st.Active)
	assert.Equal(t, VariantBulk, st.Variant)
	assert.Equal(t, 100, st.Progress)
	require.Len(t, st.Logs, 9)
	for _, l := range st.Logs {
		assert.True(t, strings.HasPrefix(l, "> "), l)
	}
	assert.Equal(t, "> DISPATCH COMPLETE. 5 seekers summoned.", st.Logs[8])
}

func TestState_ClearedAfterGrace(t *testing.T) {
	timing := instantTiming()
	timing.Grace = 20 * time.Millisecond
	rec := &recorder{}
	p := newTestPipeline(rec, WithTiming(timing))

	_, err := p.Single(context.Background(), approval())
	require.NoError(t, err)
	assert.Equal(t, 100, p.State().Progress)

	require.Eventually(t, func() bool {
		st := p.State()
		return st.Progress == 0 && len(st.Logs) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, rec.kinds(EventCleared))
}

func TestState_GraceDoesNotClearNewerRun(t *testing.T) {
	timing := instantTiming()
	timing.Grace = 20 * time.Millisecond

	var calls int
	var mu sync.Mutex
	started := make(chan struct{})
	release := make(chan struct{})
	p := newTestPipeline(&recorder{},
		WithTiming(timing),
		WithGenerator(scribe.Func(func(context.Context, string) (string, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 2 {
				close(started)
				<-release
			}
			return "ok", nil
		})),
	)

	_, err := p.Single(context.Background(), approval())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := p.Single(context.Background(), approval())
		done <- err
	}()
	<-started

	time.Sleep(60 * time.Millisecond)
	st := p.State()
	assert.True(t, st.Active)
	assert.Equal(t, 40, st.Progress)

	close(release)
	require.NoError(t, <-done)
}
