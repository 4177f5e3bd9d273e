package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"payment-router/internal/config"
	"payment-router/internal/constants"
	"payment-router/internal/models"

	"github.com/google/uuid"
)

var ErrQueueFull = errors.New("queue is full")

type healthProber interface {
	SnapshotFresh() models.ProcessorsHealth
}

type paymentAttempter interface {
	Attempt(ctx context.Context, processor constants.PaymentMode, payment *models.PaymentProcessorRequest) (*AttemptResult, error)
}

type settlementRegistrar interface {
	RegisterPayment(ctx context.Context, processor constants.PaymentMode, amount float64, correlationID string) error
}

type settlementLedger interface {
	settlementRegistrar
	HasPayment(ctx context.Context, correlationID string) (bool, error)
}

type itemOutcome int

const (
	itemRetry itemOutcome = iota
	itemSettled
	itemExhausted
)

// RetryQueue holds payments that could not be settled synchronously. A single
// background worker drains it in bounded batches, re-probing health and
// reusing the executor and ledger. The worker starts on the first enqueue and
// shuts itself down after the queue has been empty for the idle threshold.
//
// The backing slice is guarded by mu. Only the worker removes items; enqueues
// append to the tail. Items kept for another cycle go back to the front,
// ahead of anything not yet attempted.
type RetryQueue struct {
	config   *config.Config
	health   healthProber
	executor paymentAttempter
	ledger   settlementLedger

	mu         sync.Mutex
	items      []*models.QueuedPayment
	byID       map[string]*models.QueuedPayment
	running    bool
	stopped    bool
	emptySince time.Time

	totalQueued    int64
	totalProcessed int64
	totalFailed    int64
	totalCycles    int64
}

func NewRetryQueue(cfg *config.Config, health healthProber, executor paymentAttempter, ledger settlementLedger) *RetryQueue {
	return &RetryQueue{
		config:   cfg,
		health:   health,
		executor: executor,
		ledger:   ledger,
		byID:     make(map[string]*models.QueuedPayment),
	}
}

// Enqueue admits a payment for background retry, starting the worker if it
// is not running. Returns ErrQueueFull at capacity without mutating the queue.
func (q *RetryQueue) Enqueue(correlationID string, amount float64) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.config.MaxQueueSize {
		return "", ErrQueueFull
	}

	item := &models.QueuedPayment{
		ID:            uuid.NewString(),
		CorrelationID: correlationID,
		Amount:        amount,
		MaxRetries:    q.config.QueueMaxRetries,
		CurrentDelay:  q.config.QueueInitialDelay,
		EnqueuedAt:    time.Now().UTC(),
	}

	q.items = append(q.items, item)
	q.byID[item.ID] = item
	q.totalQueued++
	q.emptySince = time.Time{}

	if !q.running && !q.stopped {
		q.running = true
		go q.processLoop()
	}

	return item.ID, nil
}

func (q *RetryQueue) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) >= q.config.MaxQueueSize
}

// Get returns a snapshot of a pending item.
func (q *RetryQueue) Get(id string) (*models.QueuedPayment, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.byID[id]
	if !ok {
		return nil, false
	}
	snapshot := *item
	return &snapshot, true
}

// Remove drops a pending item on behalf of a caller. An item already picked
// up by the in-flight cycle may still complete that attempt.
func (q *RetryQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.byID[id]; !ok {
		return false
	}
	delete(q.byID, id)
	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	return true
}

func (q *RetryQueue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Stop prevents the worker from scheduling further cycles. Pending items stay
// queued; a process restart loses them, which is the durability contract.
func (q *RetryQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
}

func (q *RetryQueue) Stats() models.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return models.QueueStats{
		Size:           len(q.items),
		Running:        q.running,
		TotalQueued:    q.totalQueued,
		TotalProcessed: q.totalProcessed,
		TotalFailed:    q.totalFailed,
		TotalCycles:    q.totalCycles,
	}
}

func (q *RetryQueue) processLoop() {
	for {
		processed, remaining := q.runCycle()

		q.mu.Lock()
		if q.stopped {
			q.running = false
			q.mu.Unlock()
			return
		}
		if remaining == 0 {
			if q.emptySince.IsZero() {
				q.emptySince = time.Now()
			}
			if time.Since(q.emptySince) > q.config.QueueIdleThreshold {
				q.running = false
				q.mu.Unlock()
				return
			}
		} else {
			q.emptySince = time.Time{}
		}
		q.mu.Unlock()

		switch {
		case processed > 0:
			time.Sleep(q.config.QueueBusyInterval)
		case remaining > 0:
			time.Sleep(q.config.QueueQuietInterval)
		default:
			time.Sleep(q.config.QueueIdleInterval)
		}
	}
}

// runCycle drains one bounded batch. It returns how many items reached a
// terminal state and how many remain queued afterwards.
func (q *RetryQueue) runCycle() (processed, remaining int) {
	q.mu.Lock()
	q.totalCycles++
	batch := q.config.QueueBatchSize
	if batch < 1 {
		batch = 1
	}
	if batch > len(q.items) {
		batch = len(q.items)
	}
	snapshot := make([]*models.QueuedPayment, batch)
	copy(snapshot, q.items[:batch])
	q.mu.Unlock()

	if len(snapshot) == 0 {
		q.mu.Lock()
		remaining = len(q.items)
		q.mu.Unlock()
		return 0, remaining
	}

	keep := make([]*models.QueuedPayment, 0, len(snapshot))
	done := make(map[string]bool)

	for _, item := range snapshot {
		if time.Since(item.LastAttemptAt) < item.CurrentDelay {
			keep = append(keep, item)
			continue
		}

		switch q.processItem(item) {
		case itemSettled:
			done[item.ID] = true
		case itemExhausted:
			done[item.ID] = true
		case itemRetry:
			keep = append(keep, item)
		}
	}

	inBatch := make(map[string]bool, len(snapshot))
	for _, item := range snapshot {
		inBatch[item.ID] = true
	}

	q.mu.Lock()
	// Rebuild: retried items stay in front of anything the cycle never
	// touched; enqueues that landed meanwhile sit behind both. A caller
	// may have removed items mid-cycle, so membership is checked by id
	// rather than by slice position.
	rebuilt := make([]*models.QueuedPayment, 0, len(q.items))
	for _, item := range keep {
		if _, ok := q.byID[item.ID]; ok {
			rebuilt = append(rebuilt, item)
		}
	}
	for _, item := range q.items {
		if !inBatch[item.ID] {
			rebuilt = append(rebuilt, item)
		}
	}
	q.items = rebuilt

	for id := range done {
		delete(q.byID, id)
	}
	processed = len(done)
	remaining = len(q.items)
	q.mu.Unlock()

	return processed, remaining
}

func (q *RetryQueue) processItem(item *models.QueuedPayment) itemOutcome {
	ctx, cancel := context.WithTimeout(context.Background(), q.attemptBudget())
	defer cancel()

	// A payment the downstream already accepted only needs its ledger write.
	// The failed write may in fact have landed with only its reply lost, so
	// ask the ledger before writing again.
	if item.SettledProcessor != "" {
		if ok, err := q.ledger.HasPayment(ctx, item.CorrelationID); err == nil && ok {
			q.mu.Lock()
			item.Registered = true
			q.mu.Unlock()
		}
		return q.register(ctx, item)
	}

	// Item fields are written under mu so Get snapshots never tear.
	q.mu.Lock()
	item.Attempts++
	item.LastAttemptAt = time.Now()
	attempts := item.Attempts
	q.mu.Unlock()

	health := q.health.SnapshotFresh()
	for _, processor := range trialOrder(health) {
		if _, err := q.executor.Attempt(ctx, processor, &models.PaymentProcessorRequest{
			CorrelationID: item.CorrelationID,
			Amount:        item.Amount,
			RequestedAt:   time.Now().UTC(),
		}); err != nil {
			continue
		}

		q.mu.Lock()
		item.SettledProcessor = processor
		q.mu.Unlock()
		return q.register(ctx, item)
	}

	if attempts > item.MaxRetries {
		log.Printf("payment %s permanently failed after %d attempts", item.CorrelationID, attempts)
		q.mu.Lock()
		q.totalFailed++
		q.mu.Unlock()
		return itemExhausted
	}

	q.mu.Lock()
	next := time.Duration(float64(item.CurrentDelay) * q.config.QueueBackoffMultiplier)
	if next > q.config.QueueMaxDelay {
		next = q.config.QueueMaxDelay
	}
	item.CurrentDelay = next
	q.mu.Unlock()

	return itemRetry
}

// register writes the settlement before the item can leave the queue. A
// failed write keeps the item pending; the next cycle retries only the write.
func (q *RetryQueue) register(ctx context.Context, item *models.QueuedPayment) itemOutcome {
	if !item.Registered {
		if err := q.ledger.RegisterPayment(ctx, item.SettledProcessor, item.Amount, item.CorrelationID); err != nil {
			log.Printf("failed to register settlement for %s: %v", item.CorrelationID, err)
			return itemRetry
		}
		q.mu.Lock()
		item.Registered = true
		q.mu.Unlock()
	}

	q.mu.Lock()
	q.totalProcessed++
	q.mu.Unlock()
	return itemSettled
}

func (q *RetryQueue) attemptBudget() time.Duration {
	// Room for both processors with their retry budgets plus the probe.
	attempts := time.Duration(q.config.MaxRetries+1) * 2
	return attempts*q.config.RequestTimeout + q.config.HealthTimeout
}

// trialOrder prefers healthy processors, default before fallback. When
// neither looks healthy both are still tried as a last resort.
func trialOrder(health models.ProcessorsHealth) []constants.PaymentMode {
	order := make([]constants.PaymentMode, 0, 2)
	if health.Default {
		order = append(order, constants.DefaultProcessorKey)
	}
	if health.Fallback {
		order = append(order, constants.FallbackProcessorKey)
	}
	if len(order) == 0 {
		order = append(order, constants.DefaultProcessorKey, constants.FallbackProcessorKey)
	}
	return order
}
