// Package dispatch runs the staged notification sequences that turn an
// administrative decision into a Communique, and that summon the waitlist when
// an admissions cycle opens.
package dispatch

import (
	"time"

	"github.com/starford/chancery/internal/models"
)

// Variant distinguishes single-recipient and waitlist dispatches.
type Variant string

const (
	VariantSingle Variant = "single"
	VariantBulk   Variant = "bulk"
)

// Event kinds delivered to a Reporter. They double as SSE event names.
const (
	EventProgress  = "dispatch.progress"
	EventLog       = "dispatch.log"
	EventCompleted = "dispatch.completed"
	EventFailed    = "dispatch.failed"
	EventCleared   = "dispatch.cleared"
)

// EventState names the full State snapshot sent to a console on connect.
const EventState = "dispatch.state"

// Event is a single observable step of a dispatch run.
type Event struct {
	Kind     string  `json:"-"`
	Variant  Variant `json:"variant"`
	Progress int     `json:"progress"`
	Line     string  `json:"line,omitempty"`
}

// Reporter receives dispatch events. Report must not block.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

// Report implements Reporter.
func (f ReporterFunc) Report(e Event) { f(e) }

type nopReporter struct{}

func (nopReporter) Report(Event) {}

// State is the transient progress view shown on the console.
type State struct {
	Active   bool     `json:"active"`
	Variant  Variant  `json:"variant,omitempty"`
	Progress int      `json:"progress"`
	Logs     []string `json:"logs"`
}

// Decision carries what a single-recipient dispatch needs to know about the
// applicant and the chosen terminal status.
type Decision struct {
	Status     models.Status
	FullName   string
	Email      string
	Program    models.Program
	Experience string
}

// BulkResult summarizes a completed waitlist dispatch.
type BulkResult struct {
	Recipients  int       `json:"recipients"`
	Subject     string    `json:"subject"`
	Content     string    `json:"content"`
	CompletedAt time.Time `json:"completedAt"`
}

// Timing holds the stage pacing. Zero delays skip waiting entirely.
type Timing struct {
	CheckDelay   time.Duration
	EncryptDelay time.Duration
	RelayDelay   time.Duration

	BulkCheckDelay  time.Duration
	BulkSettleDelay time.Duration
	RecipientDelay  time.Duration

	Grace        time.Duration
	BulkGrace    time.Duration
	FailureGrace time.Duration

	// BatchSize is how many recipients make one confirmed batch.
	BatchSize int
	// LogLines caps the terminal log.
	LogLines int
}

// DefaultTiming returns the console pacing.
func DefaultTiming() Timing {
	return Timing{
		CheckDelay:      600 * time.Millisecond,
		EncryptDelay:    500 * time.Millisecond,
		RelayDelay:      800 * time.Millisecond,
		BulkCheckDelay:  800 * time.Millisecond,
		BulkSettleDelay: 600 * time.Millisecond,
		RecipientDelay:  200 * time.Millisecond,
		Grace:           1500 * time.Millisecond,
		BulkGrace:       2 * time.Second,
		FailureGrace:    2 * time.Second,
		BatchSize:       5,
		LogLines:        9,
	}
}
