package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner scans an inbox on a cron schedule
type Runner struct {
	cron     *cron.Cron
	scanner  *Scanner
	schedule string
	entry    cron.EntryID
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	mu   sync.RWMutex
	last *Result
	runs int
}

// NewRunner creates a runner that scans with scanner on schedule. The
// schedule accepts standard five-field cron expressions and descriptors
// such as "@every 1m".
func NewRunner(scanner *Scanner, schedule string, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("runner")

	cl := cronLogger{logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
			cron.WithLogger(cl),
		),
		scanner:  scanner,
		schedule: schedule,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	entry, err := r.cron.AddFunc(schedule, r.job)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to add cron job: %w", err)
	}
	r.entry = entry

	return r, nil
}

// Start starts the scheduler
func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info("ingest runner started",
		zap.String("inbox", r.scanner.Inbox()),
		zap.String("schedule", r.schedule),
		zap.Time("next", r.Next()),
	)
}

// Stop stops the scheduler and waits up to timeout for a running scan
func (r *Runner) Stop(timeout time.Duration) {
	r.cancel()
	ctx := r.cron.Stop()

	select {
	case <-ctx.Done():
		r.logger.Info("ingest runner stopped")
	case <-time.After(timeout):
		r.logger.Warn("timeout waiting for scan to complete")
	}
}

// RunNow scans immediately, outside the schedule
func (r *Runner) RunNow(ctx context.Context) (*Result, error) {
	return r.scan(ctx)
}

// Next returns the next scheduled scan, or the zero time before Start
func (r *Runner) Next() time.Time {
	return r.cron.Entry(r.entry).Next
}

// Last returns the result of the most recent scan and the number of scans
func (r *Runner) Last() (*Result, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last, r.runs
}

func (r *Runner) job() {
	if r.ctx.Err() != nil {
		return
	}
	if _, err := r.scan(r.ctx); err != nil {
		if errors.Is(err, ErrLocked) {
			r.logger.Info("inbox locked, skipping scan")
			return
		}
		r.logger.Error("scheduled scan failed", zap.Error(err))
	}
}

func (r *Runner) scan(ctx context.Context) (*Result, error) {
	start := time.Now()
	result, err := r.scanner.Run(ctx)
	if err != nil {
		return result, err
	}

	r.mu.Lock()
	r.last = result
	r.runs++
	r.mu.Unlock()

	if result.Processed > 0 || result.Failed > 0 {
		r.logger.Info("scan complete",
			zap.Int("processed", result.Processed),
			zap.Int("failed", result.Failed),
			zap.Duration("duration", time.Since(start)),
		)
	}
	return result, nil
}

// cronLogger routes cron's own logging through zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
