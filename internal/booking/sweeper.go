package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper runs ExpireOverdue on a cron schedule.  Runs never overlap.
type Sweeper struct {
	engine  *Engine
	cron    *cron.Cron
	log     logrus.FieldLogger
	timeout time.Duration
}

// NewSweeper schedules the sweep.  schedule accepts standard five-field
// specs and descriptors such as "@every 5s".
func NewSweeper(e *Engine, schedule string, log logrus.FieldLogger) (*Sweeper, error) {
	s := &Sweeper{
		engine:  e,
		log:     log,
		timeout: 30 * time.Second,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := s.cron.AddFunc(schedule, s.Run); err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins scheduling in the background.
func (s *Sweeper) Start() { s.cron.Start() }

// Stop prevents new runs and waits for a running sweep up to ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Run performs one sweep.
func (s *Sweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	n, err := s.engine.ExpireOverdue(ctx)
	if err != nil {
		s.log.WithError(err).Error("reservation sweep failed")
		return
	}
	if n > 0 {
		s.log.WithField("expired", n).Info("reservation sweep")
	}
}
