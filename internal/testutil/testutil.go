// Package testutil provides shared test helpers for setting up record stores
// and admissions services.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/starford/chancery/internal/admissions"
	"github.com/starford/chancery/internal/dispatch"
	"github.com/starford/chancery/internal/ids"
	"github.com/starford/chancery/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// RecordStore creates a file-backed record store in a temporary directory.
func RecordStore(t *testing.T) *storage.Store {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return storage.NewStore(fs, Logger())
}

// InstantTiming is the default pacing with every grace period removed.
func InstantTiming() dispatch.Timing {
	timing := dispatch.DefaultTiming()
	timing.Grace, timing.BulkGrace, timing.FailureGrace = 0, 0, 0
	return timing
}

// Service builds an admissions service over store whose dispatch pipeline
// never sleeps. Extra pipeline options are applied last.
func Service(t *testing.T, store storage.Provider, pipelineOpts ...dispatch.Option) *admissions.Service {
	t.Helper()
	seq := ids.NewSequence("t")
	opts := append([]dispatch.Option{
		dispatch.WithTiming(InstantTiming()),
		dispatch.WithSleep(func(time.Duration) {}),
		dispatch.WithIDs(seq),
		dispatch.WithLogger(Logger()),
	}, pipelineOpts...)

	svc, err := admissions.New(context.Background(), store,
		admissions.WithDispatcher(dispatch.New(opts...)),
		admissions.WithIDs(seq),
		admissions.WithLogger(Logger()),
	)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}
