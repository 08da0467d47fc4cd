package learning

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/experience"
)

// Repository is the persistence façade learning writes through. It
// deliberately exposes the concrete record type so strategies can match
// repositories by what they store.
type Repository interface {
	Save(ctx context.Context, exp *experience.Experience) error
	SaveBatch(ctx context.Context, exps []*experience.Experience) error
}

// storeRepository adapts the experience store to the learning façade.
type storeRepository struct {
	store experience.Repository
}

// NewRepository wraps an experience store.
func NewRepository(store experience.Repository) (Repository, error) {
	if store == nil {
		return nil, fmt.Errorf("experience store is required")
	}
	return &storeRepository{store: store}, nil
}

func (r *storeRepository) Save(ctx context.Context, exp *experience.Experience) error {
	return r.store.Save(ctx, exp)
}

func (r *storeRepository) SaveBatch(ctx context.Context, exps []*experience.Experience) error {
	return r.store.BatchSave(ctx, exps)
}

const defaultQueueSize = 32

// Service runs the learning loop: strategy decision, extraction, and
// persistence. Async tasks ride a dedicated single-worker pool with a
// bounded queue that drops the oldest task on overflow, so learning can
// never block a turn.
type Service struct {
	strategy   Strategy
	extractor  *Extractor
	repository Repository
	onOutcome  func(outcome string)

	mu     sync.Mutex
	queue  []*TriggerContext
	wake   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithStrategy replaces the default trigger strategy.
func WithStrategy(s Strategy) ServiceOption {
	return func(svc *Service) {
		if s != nil {
			svc.strategy = s
		}
	}
}

// WithOutcomeObserver installs a callback fired once per processed
// trigger with the outcome: "saved", "empty", or "error".
func WithOutcomeObserver(fn func(outcome string)) ServiceOption {
	return func(svc *Service) { svc.onOutcome = fn }
}

func NewService(extractor *Extractor, repository Repository, opts ...ServiceOption) (*Service, error) {
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	svc := &Service{
		strategy:   DefaultStrategy{},
		extractor:  extractor,
		repository: repository,
		wake:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc, nil
}

// OnTrigger is the hook entry point: ask the strategy, then extract
// inline or enqueue. Failures are logged, never returned to the pipeline.
func (s *Service) OnTrigger(ctx context.Context, tc *TriggerContext) {
	decision := s.strategy.Decide(tc)
	if !decision.Extract {
		return
	}
	if decision.Async {
		s.enqueue(tc)
		return
	}
	s.process(ctx, tc)
}

func (s *Service) enqueue(tc *TriggerContext) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= defaultQueueSize {
		// drop-oldest: a stale turn is worth less than a fresh one
		s.queue = s.queue[1:]
		slog.Warn("Learning queue full, dropping oldest task")
	}
	s.queue = append(s.queue, tc)
	// signal under the lock so Close cannot close the channel mid-send
	select {
	case s.wake <- struct{}{}:
	default:
	}
	s.mu.Unlock()
}

func (s *Service) worker() {
	defer s.wg.Done()
	for range s.wake {
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			tc := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			s.process(context.Background(), tc)
		}
	}
}

// process extracts and persists one trigger. All failures stop here.
func (s *Service) process(ctx context.Context, tc *TriggerContext) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Learning task panicked", "panic", r)
			s.observe("error")
		}
	}()

	exps, err := s.extractor.Extract(ctx, tc)
	if err != nil {
		slog.Warn("Experience extraction failed", "error", err)
		s.observe("error")
		return
	}
	if len(exps) == 0 {
		s.observe("empty")
		return
	}

	if err := s.repository.SaveBatch(ctx, exps); err != nil {
		slog.Warn("Experience persistence failed", "error", err, "count", len(exps))
		s.observe("error")
		return
	}
	slog.Debug("Extracted experiences", "count", len(exps))
	s.observe("saved")
}

func (s *Service) observe(outcome string) {
	if s.onOutcome != nil {
		s.onOutcome(outcome)
	}
}

// Close stops the async worker after draining the queue.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.wake)
	s.wg.Wait()

	// drain whatever was queued before close
	s.mu.Lock()
	remaining := s.queue
	s.queue = nil
	s.mu.Unlock()
	for _, tc := range remaining {
		s.process(context.Background(), tc)
	}
}
