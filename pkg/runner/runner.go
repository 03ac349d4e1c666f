// Package runner executes the selected units of a suite against a PV
// client, honouring retries and failure policies.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ormasoftchile/wetest/pkg/assertions"
	"github.com/ormasoftchile/wetest/pkg/compiler"
	"github.com/ormasoftchile/wetest/pkg/scenario"
	"github.com/ormasoftchile/wetest/pkg/suite"
)

// ErrAborted is returned by Run when a unit with the abort policy fails.
var ErrAborted = errors.New("run aborted")

// Pauser is asked what to do after a failing unit with the pause policy.
// Returning an error aborts the run.
type Pauser interface {
	Pause(ctx context.Context, t *compiler.TestData, r suite.Result) error
}

// PauserFunc adapts a function to Pauser.
type PauserFunc func(ctx context.Context, t *compiler.TestData, r suite.Result) error

// Pause implements Pauser.
func (f PauserFunc) Pause(ctx context.Context, t *compiler.TestData, r suite.Result) error {
	return f(ctx, t, r)
}

// Summary counts the outcome of a run.
type Summary struct {
	Total   int  `json:"total"`
	Success int  `json:"success"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"`
	Errors  int  `json:"errors"`
	Aborted bool `json:"aborted"`
}

// Runner executes units one after the other.
type Runner struct {
	pvs        PVClient
	pauser     Pauser
	sleep      func(ctx context.Context, d time.Duration) error
	retryPause time.Duration
	logger     *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithPauser sets the pause handler. The default continues at once.
func WithPauser(p Pauser) Option {
	return func(r *Runner) { r.pauser = p }
}

// WithSleep replaces the function used for delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) { r.sleep = fn }
}

// WithRetryPause sets the wait before retrying a unit whose policy is not
// continue.
func WithRetryPause(d time.Duration) Option {
	return func(r *Runner) { r.retryPause = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a Runner reading and writing PVs through pvs.
func New(pvs PVClient, opts ...Option) *Runner {
	r := &Runner{
		pvs:        pvs,
		sleep:      sleep,
		retryPause: 100 * time.Millisecond,
		logger:     zap.NewNop(),
	}
	for _, fn := range opts {
		fn(r)
	}
	return r
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes the suite in order and records every result on it. It
// returns ErrAborted when an abort policy stopped the run.
func (r *Runner) Run(ctx context.Context, s *suite.Suite) (*Summary, error) {
	sum := &Summary{}
	for _, e := range s.Entries() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		t := e.Test
		sum.Total++
		if e.State == suite.Skipped {
			s.Record(suite.Result{ID: t.ID, Status: suite.StatusSkipped, Trace: e.Reason})
			sum.Skipped++
			continue
		}

		res := r.RunTest(ctx, t, s.Record)
		s.Record(res)
		switch res.Status {
		case suite.StatusSuccess:
			sum.Success++
			continue
		case suite.StatusFailed:
			sum.Failed++
		default:
			sum.Errors++
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		switch t.OnFailure {
		case scenario.Continue:
		case scenario.Pause:
			r.logger.Info("Pausing after failure", zap.Stringer("id", t.ID))
			if r.pauser == nil {
				continue
			}
			if err := r.pauser.Pause(ctx, t, res); err != nil {
				sum.Aborted = true
				return sum, fmt.Errorf("%w: %v", ErrAborted, err)
			}
		default:
			r.logger.Warn("Aborting run after failure", zap.Stringer("id", t.ID))
			sum.Aborted = true
			return sum, ErrAborted
		}
	}
	return sum, nil
}

// RunTest executes one unit, retrying failed comparisons while retries
// remain. Intermediate statuses are passed to report.
func (r *Runner) RunTest(ctx context.Context, t *compiler.TestData, report func(suite.Result)) suite.Result {
	if report == nil {
		report = func(suite.Result) {}
	}
	log := r.logger.With(zap.Stringer("id", t.ID))
	log.Info("Running", zap.String("desc", t.Desc()))
	report(suite.Result{ID: t.ID, Status: suite.StatusRunning})

	for attempt := 1; ; attempt++ {
		start := time.Now()
		check, err := r.attempt(ctx, t)
		elapsed := time.Since(start)

		if err != nil {
			log.Error("Error", zap.Duration("elapsed", elapsed), zap.Error(err))
			return suite.Result{ID: t.ID, Status: suite.StatusError, Duration: elapsed, Trace: err.Error()}
		}
		if check == nil || check.Passed {
			log.Info("Success", zap.Duration("elapsed", elapsed))
			return suite.Result{ID: t.ID, Status: suite.StatusSuccess, Duration: elapsed}
		}

		if n := t.Attempts(); n < 0 || attempt < n {
			log.Info("Retry", zap.Int("attempt", attempt), zap.Int("attempts", n), zap.String("message", check.Message))
			report(suite.Result{ID: t.ID, Status: suite.StatusRetrying, Duration: elapsed, Trace: check.Message})
			if t.OnFailure != scenario.Continue {
				if err := r.sleep(ctx, r.retryPause); err != nil {
					return suite.Result{ID: t.ID, Status: suite.StatusError, Duration: elapsed, Trace: err.Error()}
				}
			}
			continue
		}
		log.Warn("Failure", zap.Duration("elapsed", elapsed), zap.String("message", check.Message))
		return suite.Result{ID: t.ID, Status: suite.StatusFailed, Duration: elapsed, Trace: check.Message}
	}
}

// attempt runs the unit once. A nil check means there was nothing to
// compare. Errors are not retried.
func (r *Runner) attempt(ctx context.Context, t *compiler.TestData) (*assertions.Result, error) {
	if err := t.Check(); err != nil {
		return nil, err
	}

	if t.HasSetter() && t.SetValue != nil {
		if err := r.pvs.Put(ctx, t.Setter, t.SetValue); err != nil {
			return nil, fmt.Errorf("[setter error] %w", err)
		}
	}

	if err := r.sleep(ctx, time.Duration(t.Delay*float64(time.Second))); err != nil {
		return nil, err
	}

	if !t.HasGetter() || t.GetValue == nil {
		return nil, nil
	}
	got, err := r.pvs.Get(ctx, t.Getter)
	if err != nil {
		return nil, fmt.Errorf("[getter error] %w", err)
	}
	check := assertions.Evaluate(t.Getter, t.GetValue, got, t.Margin, t.Delta)
	if check.Err != nil {
		return nil, fmt.Errorf("[getter error] %w", check.Err)
	}
	return check, nil
}
