package store

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"payment-router/internal/constants"
	"payment-router/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	paymentPrefix = "payment:"
	timeSetKey    = "payments:by-time"
)

// RedisStore is the settlement ledger: one hash per settled payment keyed by
// correlation id, plus a sorted set indexed by settlement time for range scans.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(url string) (*RedisStore, error) {
	if !strings.Contains(url, "://") {
		url = "redis://" + url
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return &RedisStore{client: redis.NewClient(opt)}, nil
}

// RegisterPayment records a settlement exactly once per correlation id. A
// second call for the same id is a no-op. The hash and its index entry go in
// one transaction, and the idempotency check keys on the index, so a record
// only ever counts as registered when both writes landed. Racing
// registrations write identical fields; the rare duplicate write does not
// corrupt the ledger.
func (r *RedisStore) RegisterPayment(ctx context.Context, processor constants.PaymentMode, amount float64, correlationID string) error {
	_, err := r.client.ZScore(ctx, timeSetKey, correlationID).Result()
	if err == nil {
		return nil
	}
	if err != redis.Nil {
		return fmt.Errorf("failed to check payment existence: %w", err)
	}

	settledAt := time.Now().UTC().UnixMilli()
	fields := map[string]any{
		"correlationId": correlationID,
		"processor":     string(processor),
		"amount":        amount,
		"settledAt":     settledAt,
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, paymentPrefix+correlationID, fields)
	pipe.ZAdd(ctx, timeSetKey, redis.Z{
		Score:  float64(settledAt),
		Member: correlationID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store settlement: %w", err)
	}

	return nil
}

// HasPayment reports whether a settlement is fully recorded. It keys on the
// time index like RegisterPayment's idempotency check, so a half-written
// record reads as absent.
func (r *RedisStore) HasPayment(ctx context.Context, correlationID string) (bool, error) {
	_, err := r.client.ZScore(ctx, timeSetKey, correlationID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check payment existence: %w", err)
	}
	return true, nil
}

// GetSummary groups settlements within [from, to] by processor. Nil bounds
// are open-ended. Amounts are rounded to 2 decimal places.
func (r *RedisStore) GetSummary(ctx context.Context, from, to *time.Time) (*models.PaymentSummaryResponse, error) {
	min, max := "-inf", "+inf"
	if from != nil {
		min = strconv.FormatInt(from.UTC().UnixMilli(), 10)
	}
	if to != nil {
		max = strconv.FormatInt(to.UTC().UnixMilli(), 10)
	}

	ids, err := r.client.ZRangeByScore(ctx, timeSetKey, &redis.ZRangeBy{
		Min: min,
		Max: max,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query settlement index: %w", err)
	}

	summary := &models.PaymentSummaryResponse{}
	if len(ids) == 0 {
		return summary, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.SliceCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.HMGet(ctx, paymentPrefix+id, "processor", "amount"))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read settlements: %w", err)
	}

	for _, cmd := range cmds {
		values, err := cmd.Result()
		if err != nil || len(values) != 2 || values[0] == nil || values[1] == nil {
			// Index entry without its hash: a registration racing the scan.
			continue
		}

		processor, _ := values[0].(string)
		amountStr, _ := values[1].(string)
		amount, err := strconv.ParseFloat(amountStr, 64)
		if err != nil {
			continue
		}

		switch constants.PaymentMode(processor) {
		case constants.DefaultProcessorKey:
			summary.Default.TotalRequests++
			summary.Default.TotalAmount += amount
		case constants.FallbackProcessorKey:
			summary.Fallback.TotalRequests++
			summary.Fallback.TotalAmount += amount
		}
	}

	summary.Default.TotalAmount = round2(summary.Default.TotalAmount)
	summary.Fallback.TotalAmount = round2(summary.Fallback.TotalAmount)

	return summary, nil
}

// PurgeAll removes every settlement record. Test and operations helper.
func (r *RedisStore) PurgeAll(ctx context.Context) error {
	keys, err := r.client.Keys(ctx, paymentPrefix+"*").Result()
	if err != nil {
		return fmt.Errorf("failed to list payment keys: %w", err)
	}

	keys = append(keys, timeSetKey)
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to purge payments: %w", err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
