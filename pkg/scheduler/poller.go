package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"
)

// RunFunc is one scheduled pass, e.g. a submission sync
type RunFunc func(ctx context.Context) error

// Poller runs a function at every occurrence of an RRULE
type Poller struct {
	rule   *rrule.RRule
	run    RunFunc
	logger *zap.Logger
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
}

// NewPoller parses schedule, e.g. "FREQ=MINUTELY;INTERVAL=15"
func NewPoller(schedule string, run RunFunc, logger *zap.Logger) (*Poller, error) {
	rule, err := rrule.StrToRRule(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	return &Poller{
		rule:   rule,
		run:    run,
		logger: logger,
		now:    time.Now,
		after:  time.After,
	}, nil
}

// Run blocks until ctx is cancelled or the schedule has no more occurrences.
// A failed pass is logged and the next occurrence runs as usual.
func (p *Poller) Run(ctx context.Context) error {
	p.rule.DTStart(p.now())
	p.logger.Info("Starting poller", zap.String("schedule", p.rule.String()))

	for {
		next := p.rule.After(p.now(), false)
		if next.IsZero() {
			p.logger.Info("Schedule has no further occurrences, stopping poller")
			return nil
		}

		wait := next.Sub(p.now())
		if wait < 0 {
			wait = 0
		}
		p.logger.Debug("Next scheduled run", zap.Time("at", next))

		select {
		case <-ctx.Done():
			p.logger.Info("Poller context cancelled, stopping")
			return nil
		case <-p.after(wait):
		}
		if ctx.Err() != nil {
			return nil
		}

		if err := p.run(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("Scheduled run failed", zap.Error(err))
		}
	}
}
