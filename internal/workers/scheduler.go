package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/carebook/routesheet/internal/queue"
)

// SchedulerConfig controls how often generation and the overdue sweep run.
type SchedulerConfig struct {
	GenerationInterval time.Duration
	SweepInterval      time.Duration
}

// Scheduler periodically enqueues generation and sweep jobs. When several
// scheduler instances run, a Redis lock keeps one run from overlapping its
// own next scheduled run.
type Scheduler struct {
	queue  queue.JobQueue
	locks  *redis.Client
	logger *zap.Logger
	cron   *cron.Cron
	cfg    SchedulerConfig
}

// NewScheduler creates a scheduler. locks may be nil, in which case runs are
// not coordinated across instances.
func NewScheduler(q queue.JobQueue, locks *redis.Client, logger *zap.Logger, cfg SchedulerConfig) *Scheduler {
	if cfg.GenerationInterval <= 0 {
		cfg.GenerationInterval = time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		queue:  q,
		locks:  locks,
		logger: logger,
		cfg:    cfg,
		cron:   cron.New(cron.WithSeconds()),
	}

	genSchedule := fmt.Sprintf("@every %ds", int(cfg.GenerationInterval.Seconds()))
	_, _ = s.cron.AddFunc(genSchedule, func() {
		s.trigger("generate", queue.JobTypeGenerateAll, cfg.GenerationInterval)
	})

	sweepSchedule := fmt.Sprintf("@every %ds", int(cfg.SweepInterval.Seconds()))
	_, _ = s.cron.AddFunc(sweepSchedule, func() {
		s.trigger("sweep", queue.JobTypeSweepOverdue, cfg.SweepInterval)
	})

	return s
}

// Start launches the cron scheduler.
func (s *Scheduler) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("scheduler_started",
		zap.Duration("generation_interval", s.cfg.GenerationInterval),
		zap.Duration("sweep_interval", s.cfg.SweepInterval))
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("scheduler_stopped")
}

func (s *Scheduler) trigger(name string, jobType queue.JobType, interval time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ok, err := s.acquireLock(ctx, name, interval)
	if err != nil {
		s.logger.Error("scheduler_lock_failed", zap.String("job", name), zap.Error(err))
		return
	}
	if !ok {
		s.logger.Debug("scheduler_run_skipped", zap.String("job", name))
		return
	}

	if err := s.queue.Enqueue(ctx, queue.NewJob(jobType)); err != nil {
		s.logger.Error("scheduler_enqueue_failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.logger.Info("scheduler_job_enqueued", zap.String("job", name))
}

// acquireLock takes the run lock for the duration of one interval. The lock
// expires on its own, so a crashed holder never blocks the schedule for good.
func (s *Scheduler) acquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if s.locks == nil {
		return true, nil
	}
	key := "routesheet:schedule:" + name
	return s.locks.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}
