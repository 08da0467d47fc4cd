package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/config"
)

// TaskFunc is one schedulable unit of work.
type TaskFunc func(ctx context.Context) error

// Scheduler runs triggered and recurring tasks on a bounded pool with the
// configured retry policy. Cron tasks use standard five-field expressions;
// a task still running when its next slot fires is skipped.
type Scheduler struct {
	cfg    config.TriggerConfig
	cron   *cron.Cron
	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewScheduler(cfg config.TriggerConfig) *Scheduler {
	pool := cfg.Scheduler.PoolSize
	if pool <= 0 {
		pool = 4
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cfg:    cfg,
		cron:   cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sem:    make(chan struct{}, pool),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins firing cron entries. Submit works before Start.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Submit runs fn asynchronously through the pool with the retry policy.
func (s *Scheduler) Submit(name string, fn TaskFunc) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(name, fn)
	}()
}

// SubmitAfter runs fn once after the given delay.
func (s *Scheduler) SubmitAfter(name string, delay time.Duration, fn TaskFunc) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-time.After(delay):
			s.execute(name, fn)
		case <-s.ctx.Done():
		}
	}()
}

// ScheduleCron registers fn on a five-field cron expression.
func (s *Scheduler) ScheduleCron(name, expr string, fn TaskFunc) error {
	_, err := s.cron.AddFunc(expr, func() {
		s.execute(name, fn)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression for task '%s': %w", name, err)
	}
	return nil
}

// ScheduleInterval registers fn to run every interval.
func (s *Scheduler) ScheduleInterval(name string, every time.Duration, fn TaskFunc) error {
	if every <= 0 {
		return fmt.Errorf("interval for task '%s' must be positive", name)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.execute(name, fn)
			case <-s.ctx.Done():
				return
			}
		}
	}()
	return nil
}

// execute runs one task through the pool with retries and the per-execution
// timeout.
func (s *Scheduler) execute(name string, fn TaskFunc) {
	select {
	case s.sem <- struct{}{}:
	case <-s.ctx.Done():
		return
	}
	defer func() { <-s.sem }()

	attempts := s.cfg.Execution.DefaultMaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		err := s.runOnce(fn)
		if err == nil {
			return
		}
		slog.Warn("Scheduled task failed", "task", name, "attempt", attempt, "error", err)

		if attempt == attempts {
			return
		}
		select {
		case <-time.After(s.cfg.Execution.DefaultRetryDelay):
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runOnce(fn TaskFunc) error {
	ctx := s.ctx
	if timeout := s.cfg.Execution.ExecutionTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

// Stop cancels in-flight work and waits for it, bounded by the configured
// await-termination window.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		s.cron.Stop()
		s.cancel()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		wait := s.cfg.Scheduler.AwaitTermination
		if wait <= 0 {
			<-done
			return
		}
		select {
		case <-done:
		case <-time.After(wait):
			slog.Warn("Scheduler termination window elapsed with tasks still running")
		}
	})
}
