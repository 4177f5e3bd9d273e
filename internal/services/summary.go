package services

import (
	"context"
	"time"

	"payment-router/internal/models"
	"payment-router/internal/store"
)

type SummaryService struct {
	store *store.RedisStore
}

func NewSummaryService(store *store.RedisStore) *SummaryService {
	return &SummaryService{store: store}
}

func (s *SummaryService) GetSummary(ctx context.Context, from, to *time.Time) (*models.PaymentSummaryResponse, error) {
	return s.store.GetSummary(ctx, from, to)
}
