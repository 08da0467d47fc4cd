package learning

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/experience"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/hooks"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/llm"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/state"
)

// countingRepo records saved batches.
type countingRepo struct {
	mu    sync.Mutex
	saved []*experience.Experience
}

func (r *countingRepo) Save(ctx context.Context, exp *experience.Experience) error {
	return r.SaveBatch(ctx, []*experience.Experience{exp})
}

func (r *countingRepo) SaveBatch(ctx context.Context, exps []*experience.Experience) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, exps...)
	return nil
}

func (r *countingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

type alwaysSync struct{}

func (alwaysSync) Decide(tc *TriggerContext) Decision {
	return Decision{Extract: true, Async: false}
}

type alwaysAsync struct{}

func (alwaysAsync) Decide(tc *TriggerContext) Decision {
	return Decision{Extract: true, Async: true}
}

func newService(t *testing.T, repo Repository, judgeText string, opts ...ServiceOption) *Service {
	t.Helper()
	provider := llm.NewMockProvider(&llm.Response{Text: judgeText})
	ex, err := NewExtractor(provider)
	require.NoError(t, err)
	svc, err := NewService(ex, repo, opts...)
	require.NoError(t, err)
	return svc
}

const oneRecord = `[{"type": "CODE", "title": "t", "content": "c"}]`

func TestService_SyncExtractionPersists(t *testing.T) {
	repo := &countingRepo{}
	svc := newService(t, repo, oneRecord, WithStrategy(alwaysSync{}))
	defer svc.Close()

	svc.OnTrigger(context.Background(), triggerWithCode("def f(): pass"))
	assert.Equal(t, 1, repo.count())
}

func TestService_AsyncExtractionDrainsOnClose(t *testing.T) {
	repo := &countingRepo{}
	svc := newService(t, repo, oneRecord, WithStrategy(alwaysAsync{}))

	for i := 0; i < 3; i++ {
		svc.OnTrigger(context.Background(), triggerWithCode("def f(): pass"))
	}
	svc.Close()
	assert.Equal(t, 3, repo.count())
}

func TestService_SkipsWhenStrategyDeclines(t *testing.T) {
	repo := &countingRepo{}
	svc := newService(t, repo, oneRecord)
	defer svc.Close()

	// trivial turn, default strategy declines
	svc.OnTrigger(context.Background(), &TriggerContext{State: state.New()})
	assert.Equal(t, 0, repo.count())
}

func TestService_ExtractionFailureContained(t *testing.T) {
	repo := &countingRepo{}
	svc := newService(t, repo, "not json", WithStrategy(alwaysSync{}))
	defer svc.Close()

	svc.OnTrigger(context.Background(), triggerWithCode("def f(): pass"))
	assert.Equal(t, 0, repo.count())
}

func TestService_OutcomeObserver(t *testing.T) {
	var outcomes []string
	repo := &countingRepo{}
	svc := newService(t, repo, oneRecord, WithStrategy(alwaysSync{}),
		WithOutcomeObserver(func(o string) { outcomes = append(outcomes, o) }))
	defer svc.Close()

	svc.OnTrigger(context.Background(), triggerWithCode("def f(): pass"))
	assert.Equal(t, []string{"saved"}, outcomes)
}

func TestService_OutcomeObserverSeesFailures(t *testing.T) {
	var outcomes []string
	svc := newService(t, &countingRepo{}, "not json", WithStrategy(alwaysSync{}),
		WithOutcomeObserver(func(o string) { outcomes = append(outcomes, o) }))
	defer svc.Close()

	svc.OnTrigger(context.Background(), triggerWithCode("def f(): pass"))
	assert.Equal(t, []string{"error"}, outcomes)
}

func TestService_QueueDropsOldest(t *testing.T) {
	repo := &countingRepo{}
	svc := newService(t, repo, oneRecord, WithStrategy(alwaysAsync{}))

	// saturate well past the queue bound before the worker can drain
	for i := 0; i < defaultQueueSize*3; i++ {
		svc.enqueue(triggerWithCode("def f(): pass"))
	}
	svc.Close()
	assert.LessOrEqual(t, repo.count(), defaultQueueSize*3)
	assert.Greater(t, repo.count(), 0)
}

func TestService_CloseIsIdempotent(t *testing.T) {
	svc := newService(t, &countingRepo{}, oneRecord)
	svc.Close()
	svc.Close()
}

func TestHook_FiresService(t *testing.T) {
	repo := &countingRepo{}
	svc := newService(t, repo, oneRecord, WithStrategy(alwaysSync{}))
	defer svc.Close()

	h, err := NewHook(svc)
	require.NoError(t, err)
	assert.Equal(t, []hooks.Position{hooks.AfterAgent}, h.Positions())

	st := state.New()
	st.AppendGeneratedCode("def f(): pass")

	p := hooks.NewPipeline()
	require.NoError(t, p.Register(h))
	_, err = p.Run(context.Background(), hooks.AfterAgent, st)
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	for repo.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 1, repo.count())
}

func TestNewRepository_WrapsStore(t *testing.T) {
	store := experience.NewMemoryStore()
	repo, err := NewRepository(store)
	require.NoError(t, err)

	exp := experience.New(experience.TypeCode, "t")
	require.NoError(t, repo.Save(context.Background(), exp))
	assert.Equal(t, 1, store.Count(context.Background()))

	_, err = NewRepository(nil)
	assert.Error(t, err)
}
