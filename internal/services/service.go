package services

import (
	"context"
	"time"

	"payment-router/internal/config"
	"payment-router/internal/constants"
	"payment-router/internal/models"
	"payment-router/internal/store"

	"github.com/valyala/fasthttp"
)

type Service struct {
	Payment interface {
		Process(ctx context.Context, correlationID string, amount float64) (*ProcessResult, error)
	}
	Summary interface {
		GetSummary(ctx context.Context, from, to *time.Time) (*models.PaymentSummaryResponse, error)
	}

	Health   *HealthTrackerService
	Queue    *RetryQueue
	Breakers map[constants.PaymentMode]*CircuitBreaker
}

func NewServices(cfg *config.Config, store *store.RedisStore) *Service {
	httpClient := &fasthttp.Client{
		MaxConnsPerHost: 512,
	}

	breakers := map[constants.PaymentMode]*CircuitBreaker{
		constants.DefaultProcessorKey:  NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		constants.FallbackProcessorKey: NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
	}

	health := NewHealthTracker(cfg, httpClient, breakers)
	executor := NewRequestExecutor(cfg, httpClient, breakers)
	queue := NewRetryQueue(cfg, health, executor, store)

	return &Service{
		Payment:  NewPaymentService(health, executor, store, queue),
		Summary:  NewSummaryService(store),
		Health:   health,
		Queue:    queue,
		Breakers: breakers,
	}
}
