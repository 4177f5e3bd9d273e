package services

import (
	"context"
	"log"
	"time"

	"payment-router/internal/constants"
	"payment-router/internal/models"
)

type PaymentStatus string

const (
	StatusSettled PaymentStatus = "settled"
	StatusQueued  PaymentStatus = "queued"
)

// ProcessResult is the caller-facing outcome of one routing pass.
type ProcessResult struct {
	Status     PaymentStatus
	Processor  constants.PaymentMode
	StatusCode int
	Body       []byte
	QueueID    string
}

type healthSnapshotter interface {
	Snapshot() models.ProcessorsHealth
}

type retryEnqueuer interface {
	Enqueue(correlationID string, amount float64) (string, error)
	Full() bool
}

// PaymentService routes one inbound payment: health snapshot, attempt
// default, attempt fallback, enqueue. Terminal outcomes are settled, queued,
// or an error the handler surfaces as overload.
type PaymentService struct {
	health   healthSnapshotter
	executor paymentAttempter
	ledger   settlementRegistrar
	queue    retryEnqueuer
}

func NewPaymentService(health healthSnapshotter, executor paymentAttempter, ledger settlementRegistrar, queue retryEnqueuer) *PaymentService {
	return &PaymentService{
		health:   health,
		executor: executor,
		ledger:   ledger,
		queue:    queue,
	}
}

func (p *PaymentService) Process(ctx context.Context, correlationID string, amount float64) (*ProcessResult, error) {
	health := p.health.Snapshot()

	if !health.Default && !health.Fallback && p.queue.Full() {
		return nil, ErrQueueFull
	}

	payment := &models.PaymentProcessorRequest{
		CorrelationID: correlationID,
		Amount:        amount,
		RequestedAt:   time.Now().UTC(),
	}

	defaultTried := false
	if health.Default {
		defaultTried = true
		if res, err := p.executor.Attempt(ctx, constants.DefaultProcessorKey, payment); err == nil {
			p.register(ctx, constants.DefaultProcessorKey, amount, correlationID)
			return settled(constants.DefaultProcessorKey, res), nil
		}
	}

	if health.Fallback || defaultTried {
		if res, err := p.executor.Attempt(ctx, constants.FallbackProcessorKey, payment); err == nil {
			p.register(ctx, constants.FallbackProcessorKey, amount, correlationID)
			return settled(constants.FallbackProcessorKey, res), nil
		}
	}

	queueID, err := p.queue.Enqueue(correlationID, amount)
	if err != nil {
		return nil, err
	}

	return &ProcessResult{
		Status:  StatusQueued,
		QueueID: queueID,
	}, nil
}

// register never fails a payment the downstream already settled; a write
// error only delays the idempotent bookkeeping.
func (p *PaymentService) register(ctx context.Context, processor constants.PaymentMode, amount float64, correlationID string) {
	if err := p.ledger.RegisterPayment(ctx, processor, amount, correlationID); err != nil {
		log.Printf("failed to register %s settlement for %s: %v", processor, correlationID, err)
	}
}

func settled(processor constants.PaymentMode, res *AttemptResult) *ProcessResult {
	return &ProcessResult{
		Status:     StatusSettled,
		Processor:  processor,
		StatusCode: res.StatusCode,
		Body:       res.Body,
	}
}
