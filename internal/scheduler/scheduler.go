// Package scheduler triggers the recurring full push at a configured
// time-of-day and, optionally, polling-incremental pushes on a fixed
// interval.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler wraps a robfig/cron runner translating
// adaptor.fullListingSchedule ("HH:MM:SS") into a daily cron spec, plus an
// optional fixed-interval incremental poll.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New builds a Scheduler. logger is used for job-panic recovery logging.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cronLogger{logger})))
	return &Scheduler{cron: c, logger: logger}
}

// ScheduleFullPush parses an "HH:MM:SS" time-of-day (adaptor.
// fullListingSchedule) into a 6-field "sec min hour * * *" cron spec and
// registers fn to run at that time daily.
func (s *Scheduler) ScheduleFullPush(timeOfDay string, fn func(ctx context.Context)) error {
	spec, err := dailySpec(timeOfDay)
	if err != nil {
		return err
	}
	_, err = s.cron.AddFunc(spec, func() { fn(context.Background()) })
	return err
}

// ScheduleIncremental registers fn to run every interval cron spec (e.g.
// "@every 5m"), for repositories that support GetModifiedDocIds.
func (s *Scheduler) ScheduleIncremental(spec string, fn func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() { fn(context.Background()) })
	return err
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop blocks until any running job completes, then stops scheduling new
// ones.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// dailySpec converts "HH:MM:SS" to a 6-field cron spec "SS MM HH * * *".
func dailySpec(timeOfDay string) (string, error) {
	parts := strings.Split(timeOfDay, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("scheduler: invalid time-of-day %q, want HH:MM:SS", timeOfDay)
	}
	hh, err := parseClockField(parts[0], 23)
	if err != nil {
		return "", err
	}
	mm, err := parseClockField(parts[1], 59)
	if err != nil {
		return "", err
	}
	ss, err := parseClockField(parts[2], 59)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d %d * * *", ss, mm, hh), nil
}

func parseClockField(s string, max int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > max {
		return 0, fmt.Errorf("scheduler: invalid time-of-day field %q", s)
	}
	return v, nil
}

// cronLogger adapts *zap.Logger to cron.Logger.
type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Infow(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
