package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"payment-router/internal/config"
	"payment-router/internal/constants"
	"payment-router/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHealth struct {
	health models.ProcessorsHealth
}

func (s *stubHealth) SnapshotFresh() models.ProcessorsHealth { return s.health }

func (s *stubHealth) Snapshot() models.ProcessorsHealth { return s.health }

type stubExecutor struct {
	mu    sync.Mutex
	modes []constants.PaymentMode
	fail  func(processor constants.PaymentMode) error
}

func (s *stubExecutor) Attempt(ctx context.Context, processor constants.PaymentMode, payment *models.PaymentProcessorRequest) (*AttemptResult, error) {
	s.mu.Lock()
	s.modes = append(s.modes, processor)
	s.mu.Unlock()

	if s.fail != nil {
		if err := s.fail(processor); err != nil {
			return nil, err
		}
	}
	return &AttemptResult{StatusCode: 200, Body: []byte(`{"message":"ok"}`)}, nil
}

func (s *stubExecutor) calls() []constants.PaymentMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]constants.PaymentMode(nil), s.modes...)
}

type stubLedger struct {
	mu          sync.Mutex
	calls       int
	failFirst   int
	lostReplies bool // failed writes still landed
	last        constants.PaymentMode
}

func (s *stubLedger) RegisterPayment(ctx context.Context, processor constants.PaymentMode, amount float64, correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.last = processor
	if s.calls <= s.failFirst {
		return errors.New("ledger write failed")
	}
	return nil
}

func (s *stubLedger) HasPayment(ctx context.Context, correlationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lostReplies && s.calls > 0, nil
}

func (s *stubLedger) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func queueTestConfig() *config.Config {
	return &config.Config{
		RequestTimeout:         time.Second,
		HealthTimeout:          time.Second,
		MaxRetries:             0,
		MaxQueueSize:           100,
		QueueMaxRetries:        3,
		QueueBatchSize:         10,
		QueueInitialDelay:      time.Millisecond,
		QueueBackoffMultiplier: 1.0,
		QueueMaxDelay:          time.Millisecond,
		QueueIdleThreshold:     50 * time.Millisecond,
		QueueBusyInterval:      time.Millisecond,
		QueueQuietInterval:     2 * time.Millisecond,
		QueueIdleInterval:      5 * time.Millisecond,
	}
}

func TestEnqueueFailsAtCapacity(t *testing.T) {
	cfg := queueTestConfig()
	cfg.MaxQueueSize = 2

	queue := NewRetryQueue(cfg, &stubHealth{}, &stubExecutor{}, &stubLedger{})
	queue.Stop()

	_, err := queue.Enqueue("corr-1", 10)
	require.NoError(t, err)
	_, err = queue.Enqueue("corr-2", 20)
	require.NoError(t, err)

	_, err = queue.Enqueue("corr-3", 30)
	assert.ErrorIs(t, err, ErrQueueFull)

	stats := queue.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, int64(2), stats.TotalQueued)
	assert.True(t, queue.Full())
}

func TestQueueSettlesAndRegistersBeforeRemoval(t *testing.T) {
	executor := &stubExecutor{}
	ledger := &stubLedger{}
	queue := NewRetryQueue(queueTestConfig(), &stubHealth{health: models.ProcessorsHealth{Default: true}}, executor, ledger)

	id, err := queue.Enqueue("corr-1", 19.9)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := queue.Get(id)
		return !ok
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, ledger.callCount())
	assert.Equal(t, constants.DefaultProcessorKey, ledger.last)
	assert.Equal(t, []constants.PaymentMode{constants.DefaultProcessorKey}, executor.calls())

	stats := queue.Stats()
	assert.Equal(t, int64(1), stats.TotalProcessed)
	assert.Equal(t, int64(0), stats.TotalFailed)
}

func TestQueueDropsItemAfterMaxRetriesPlusOneAttempts(t *testing.T) {
	cfg := queueTestConfig()
	cfg.QueueMaxRetries = 1

	executor := &stubExecutor{fail: func(constants.PaymentMode) error {
		return errors.New("processor down")
	}}
	ledger := &stubLedger{}
	queue := NewRetryQueue(cfg, &stubHealth{health: models.ProcessorsHealth{Default: true}}, executor, ledger)

	id, err := queue.Enqueue("corr-1", 10)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return queue.Stats().TotalFailed == 1
	}, 2*time.Second, 5*time.Millisecond)

	_, ok := queue.Get(id)
	assert.False(t, ok)

	// Let a few more cycles pass; the dropped item must never be retried.
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, executor.calls(), 2, "initial attempt plus one retry")
	assert.Equal(t, 0, ledger.callCount())
}

func TestQueueRetriesLedgerWriteWithoutResending(t *testing.T) {
	executor := &stubExecutor{}
	ledger := &stubLedger{failFirst: 1}
	queue := NewRetryQueue(queueTestConfig(), &stubHealth{health: models.ProcessorsHealth{Default: true}}, executor, ledger)

	id, err := queue.Enqueue("corr-1", 10)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := queue.Get(id)
		return !ok
	}, 2*time.Second, 5*time.Millisecond)

	assert.Len(t, executor.calls(), 1, "downstream call must not repeat once settled")
	assert.Equal(t, 2, ledger.callCount())
	assert.Equal(t, int64(1), queue.Stats().TotalProcessed)
}

func TestQueueTrustsLedgerWhenFailedWriteLanded(t *testing.T) {
	executor := &stubExecutor{}
	ledger := &stubLedger{failFirst: 1, lostReplies: true}
	queue := NewRetryQueue(queueTestConfig(), &stubHealth{health: models.ProcessorsHealth{Default: true}}, executor, ledger)

	id, err := queue.Enqueue("corr-1", 10)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := queue.Get(id)
		return !ok
	}, 2*time.Second, 5*time.Millisecond)

	// The first write errored but reached the ledger; the retry must settle
	// from the HasPayment check instead of writing twice.
	assert.Len(t, executor.calls(), 1)
	assert.Equal(t, 1, ledger.callCount())
	assert.Equal(t, int64(1), queue.Stats().TotalProcessed)
}

func TestQueuePrefersHealthyFallback(t *testing.T) {
	executor := &stubExecutor{}
	ledger := &stubLedger{}
	queue := NewRetryQueue(queueTestConfig(), &stubHealth{health: models.ProcessorsHealth{Fallback: true}}, executor, ledger)

	id, err := queue.Enqueue("corr-1", 10)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := queue.Get(id)
		return !ok
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []constants.PaymentMode{constants.FallbackProcessorKey}, executor.calls())
	assert.Equal(t, constants.FallbackProcessorKey, ledger.last)
}

func TestQueueTriesBothWhenNoneHealthy(t *testing.T) {
	cfg := queueTestConfig()
	cfg.QueueMaxRetries = 0

	executor := &stubExecutor{fail: func(constants.PaymentMode) error {
		return errors.New("down")
	}}
	queue := NewRetryQueue(cfg, &stubHealth{}, executor, &stubLedger{})

	_, err := queue.Enqueue("corr-1", 10)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return queue.Stats().TotalFailed == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []constants.PaymentMode{
		constants.DefaultProcessorKey,
		constants.FallbackProcessorKey,
	}, executor.calls())
}

func TestQueueIdleShutdownAndRestart(t *testing.T) {
	queue := NewRetryQueue(queueTestConfig(), &stubHealth{health: models.ProcessorsHealth{Default: true}}, &stubExecutor{}, &stubLedger{})

	_, err := queue.Enqueue("corr-1", 10)
	require.NoError(t, err)
	assert.True(t, queue.IsRunning())

	require.Eventually(t, func() bool {
		return !queue.IsRunning()
	}, 2*time.Second, 5*time.Millisecond)

	_, err = queue.Enqueue("corr-2", 10)
	require.NoError(t, err)
	assert.True(t, queue.IsRunning())
}

func TestQueueGetAndRemove(t *testing.T) {
	queue := NewRetryQueue(queueTestConfig(), &stubHealth{}, &stubExecutor{}, &stubLedger{})
	queue.Stop()

	id, err := queue.Enqueue("corr-1", 10)
	require.NoError(t, err)

	item, ok := queue.Get(id)
	require.True(t, ok)
	assert.Equal(t, "corr-1", item.CorrelationID)
	assert.Equal(t, 0, item.Attempts)
	assert.False(t, item.Registered)

	assert.True(t, queue.Remove(id))
	_, ok = queue.Get(id)
	assert.False(t, ok)
	assert.False(t, queue.Remove(id))
	assert.Equal(t, 0, queue.Stats().Size)
}

func TestTrialOrder(t *testing.T) {
	both := []constants.PaymentMode{constants.DefaultProcessorKey, constants.FallbackProcessorKey}

	assert.Equal(t, both, trialOrder(models.ProcessorsHealth{Default: true, Fallback: true}))
	assert.Equal(t, []constants.PaymentMode{constants.DefaultProcessorKey}, trialOrder(models.ProcessorsHealth{Default: true}))
	assert.Equal(t, []constants.PaymentMode{constants.FallbackProcessorKey}, trialOrder(models.ProcessorsHealth{Fallback: true}))
	assert.Equal(t, both, trialOrder(models.ProcessorsHealth{}))
}
