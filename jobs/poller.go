// Package jobs implements the submit-then-poll pattern for operations that
// complete asynchronously on the server (video synthesis). The wait loop is
// an explicit repeat-until-done operation parameterized by interval and
// clock, so it can be tested with a fake clock instead of real timers.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/LyrebirdAI/console/metrics"
)

// DefaultInterval is the delay between status polls.
const DefaultInterval = 10 * time.Second

// ErrEmptyResult is returned when the operation reports done but produced no
// artifact. The job itself did not fail; callers must not conflate this with
// a hard error.
var ErrEmptyResult = errors.New("job completed with no result")

// Status describes one observation of a long-running server-side operation.
type Status struct {
	// Done is true once the operation is terminal.
	Done bool

	// Progress is the completion percentage, or -1 when the operation
	// reports only a coarse phase.
	Progress int

	// Phase is the coarse state label (e.g. "queued", "processing") used
	// when no numeric progress is available.
	Phase string

	// ResultURI references the produced artifact once done.
	ResultURI string
}

// PollFunc fetches the current status of an operation.
type PollFunc func(ctx context.Context) (Status, error)

// Clock abstracts timer waits for testability.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

// realClock is the production Clock backed by the time package.
type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Poller repeatedly re-checks a job's status until completion.
type Poller struct {
	// Interval is the fixed delay between polls. Defaults to DefaultInterval.
	Interval time.Duration

	// Clock provides timer waits. Defaults to the real clock.
	Clock Clock

	// OnUpdate is invoked after every successful poll so the caller can
	// surface progress. Optional.
	OnUpdate func(Status)
}

// Wait blocks until the job reports done, the poll fails, or ctx is
// canceled. A poll error propagates immediately; there is no
// retry-on-poll-failure. Reported progress is clamped monotone
// non-decreasing across polls. When the job finishes without an artifact,
// the final status is returned together with ErrEmptyResult.
func (p *Poller) Wait(ctx context.Context, poll PollFunc) (Status, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clock := p.Clock
	if clock == nil {
		clock = realClock{}
	}

	lastProgress := -1

	for {
		select {
		case <-ctx.Done():
			return Status{}, ctx.Err()
		case <-clock.After(interval):
		}

		status, err := poll(ctx)
		metrics.CountJobPoll()
		if err != nil {
			return Status{}, err
		}

		// Progress never goes backwards once observed.
		if status.Progress >= 0 {
			if status.Progress < lastProgress {
				status.Progress = lastProgress
			} else {
				lastProgress = status.Progress
			}
		} else if lastProgress >= 0 {
			status.Progress = lastProgress
		}

		if p.OnUpdate != nil {
			p.OnUpdate(status)
		}

		if status.Done {
			if status.ResultURI == "" {
				return status, ErrEmptyResult
			}
			return status, nil
		}
	}
}
