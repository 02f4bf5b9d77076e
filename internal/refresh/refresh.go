// Package refresh re-downloads the session user's calendar on a cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"timetable/internal/acquire"
	appLog "timetable/internal/log"
	"timetable/internal/model"
)

// Source is the label passed to Target.Replace after a scheduled refresh.
const Source = "refreshed"

// Refresher downloads with the stored credentials.
type Refresher interface {
	RefreshStored(ctx context.Context, username string) ([]model.Lesson, error)
}

// Target receives refreshed lessons.
type Target interface {
	Username() string
	Replace(lessons []model.Lesson, source string)
}

// Scheduler runs at most one refresh at a time; a tick that fires while the
// previous refresh still runs is skipped.
type Scheduler struct {
	cron    *cron.Cron
	r       Refresher
	target  Target
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// New validates spec (standard five-field cron or a descriptor such as
// "@every 30m") and prepares a stopped scheduler. timeout bounds each run.
func New(spec string, r Refresher, target Target, timeout time.Duration) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	s := &Scheduler{cron: c, r: r, target: target, timeout: timeout}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if _, err := c.AddFunc(spec, func() {
		_ = s.RunOnce(s.ctx)
	}); err != nil {
		s.cancel()
		return nil, fmt.Errorf("refresh: invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins scheduling. Runs are cancelled when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.cancel()
		case <-s.ctx.Done():
		}
	}()
	s.cron.Start()
	appLog.Info("refresh scheduler started", "user", s.target.Username())
}

// Stop cancels a running refresh and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	appLog.Info("refresh scheduler stopped")
}

// RunOnce refreshes immediately and swaps the target's lessons on success.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	user := s.target.Username()
	lessons, err := s.r.RefreshStored(ctx, user)
	switch {
	case errors.Is(err, acquire.ErrOffline), errors.Is(err, acquire.ErrNoStoredCredentials):
		appLog.Info("scheduled refresh skipped", "user", user, "reason", err)
		return err
	case err != nil:
		appLog.Error("scheduled refresh failed", err, "user", user)
		return err
	}

	s.target.Replace(lessons, Source)
	appLog.Info("scheduled refresh applied", "user", user, "lessons", len(lessons))
	return nil
}
