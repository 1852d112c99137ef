package services

import (
	"context"
	"errors"
	"time"

	"auction-lifecycle/internal/domain"
	"auction-lifecycle/pkg/logger"

	"github.com/robfig/cron/v3"
)

// PassRunner is the trigger entrypoint of the lifecycle driver.
type PassRunner interface {
	RunPass(ctx context.Context) (*PassStats, error)
}

type CronLifecycleScheduler struct {
	cron     *cron.Cron
	runner   PassRunner
	interval time.Duration
	log      logger.Logger
}

func NewCronLifecycleScheduler(runner PassRunner, interval time.Duration, log logger.Logger) *CronLifecycleScheduler {
	return &CronLifecycleScheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log}))),
		runner:   runner,
		interval: interval,
		log:      log,
	}
}

func (s *CronLifecycleScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting lifecycle scheduler", "interval", s.interval.String())

	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.Tick(ctx)
	}))

	s.cron.Start()
	return nil
}

// Stop halts the trigger and waits for a running pass to complete.
func (s *CronLifecycleScheduler) Stop() error {
	s.log.Info("Stopping lifecycle scheduler")
	<-s.cron.Stop().Done()
	return nil
}

// Tick runs one pass and logs its statistics.
func (s *CronLifecycleScheduler) Tick(ctx context.Context) {
	s.log.Info("Starting scheduled lifecycle pass")

	stats, err := s.runner.RunPass(ctx)
	switch {
	case errors.Is(err, domain.ErrPassInFlight):
		s.log.Warn("Previous lifecycle pass still running, skipping tick")
		return
	case errors.Is(err, domain.ErrLeaseNotHeld):
		s.log.Debug("Lifecycle lease held elsewhere, skipping tick")
		return
	case err != nil:
		s.log.Error("Lifecycle pass failed", "error", err)
	}
	if stats == nil {
		return
	}

	s.log.Info("Lifecycle pass completed",
		"pass_id", stats.PassID,
		"duration_ms", stats.Duration.Milliseconds(),
		"examined", stats.Examined,
		"updated", stats.Updated,
		"transitioned", stats.Transitioned,
		"conflicts", stats.Conflicts,
		"store_failures", stats.StoreFailures,
		"notifications_sent", stats.NotificationsSent,
		"notification_failures", stats.NotificationFailures)
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
