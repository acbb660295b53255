package worker

import (
	"context"
	"fmt"
	"time"

	"stockdata-pipeline/internal/application"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var _ application.Worker = (*Scheduler)(nil)

// Tasks is the pair of operations a tick runs, in order.
type Tasks interface {
	CreateTable(ctx context.Context) error
	FetchAndStore(ctx context.Context) (application.RunResult, error)
}

// Scheduler runs create-table followed by fetch-and-store once at start and
// then on every Interval. A failed task is retried up to Retries times,
// RetryDelay apart; fetch-and-store is skipped when create-table failed.
type Scheduler struct {
	Tasks Tasks

	Interval   time.Duration
	Retries    int
	RetryDelay time.Duration
	Log        *zap.Logger
}

func (s *Scheduler) Start(ctx context.Context) {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	if s.Interval <= 0 {
		s.Interval = time.Hour
	}

	t := time.NewTicker(s.Interval)
	defer t.Stop()

	log.Info("scheduler_started",
		zap.Duration("interval", s.Interval),
		zap.Int("retries", s.Retries),
		zap.Duration("retry_delay", s.RetryDelay),
	)
	s.tick(ctx, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler_stopped")
			return
		case <-t.C:
			s.tick(ctx, log)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, log *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("scheduler.panic", zap.Any("r", r))
		}
	}()
	if err := s.RunOnce(ctx); err != nil {
		log.Error("scheduler.tick_failed", zap.Error(err))
	}
}

// RunOnce executes one scheduled tick with retries.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	if err := s.retry(ctx, log, application.TaskCreateTable, s.Tasks.CreateTable); err != nil {
		log.Warn("scheduler.task_skipped", zap.String("task", application.TaskFetchAndStore))
		return fmt.Errorf("%s: %w", application.TaskCreateTable, err)
	}
	err := s.retry(ctx, log, application.TaskFetchAndStore, func(ctx context.Context) error {
		_, err := s.Tasks.FetchAndStore(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", application.TaskFetchAndStore, err)
	}
	return nil
}

func (s *Scheduler) retry(ctx context.Context, log *zap.Logger, task string, op func(context.Context) error) error {
	retries := s.Retries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.RetryDelay), uint64(retries)),
		ctx,
	)
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op(ctx)
		if err != nil && !application.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, next time.Duration) {
		log.Warn("scheduler.retry",
			zap.String("task", task),
			zap.Int("attempt", attempt),
			zap.Duration("next_in", next),
			zap.Error(err),
		)
	})
}
