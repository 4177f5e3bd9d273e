package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"payment-router/internal/config"
	"payment-router/internal/constants"
	"payment-router/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/valyala/fasthttp"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// AttemptResult carries the downstream response of a settled attempt.
type AttemptResult struct {
	StatusCode int
	Body       []byte
}

// RequestExecutor performs a single settlement against one processor: breaker
// gate, bounded request timeout, and retry with exponential backoff on 5xx or
// transport failure. A 4xx is terminal from the routing perspective; the
// processor gave a definitive verdict and repeating the call cannot change it.
type RequestExecutor struct {
	config     *config.Config
	httpClient *fasthttp.Client
	breakers   map[constants.PaymentMode]*CircuitBreaker
}

func NewRequestExecutor(cfg *config.Config, client *fasthttp.Client, breakers map[constants.PaymentMode]*CircuitBreaker) *RequestExecutor {
	return &RequestExecutor{
		config:     cfg,
		httpClient: client,
		breakers:   breakers,
	}
}

// Attempt sends the payment to the given processor. It records breaker
// success on 2xx and breaker failure only after the whole attempt budget is
// exhausted. The returned error is nil whenever routing may treat the
// payment as handled.
func (e *RequestExecutor) Attempt(ctx context.Context, processor constants.PaymentMode, payment *models.PaymentProcessorRequest) (*AttemptResult, error) {
	breaker := e.breakers[processor]
	if breaker.IsOpen() {
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, processor)
	}

	body, err := json.Marshal(payment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	url := e.config.Urls[processor].PaymentURL

	var result *AttemptResult
	operation := func() error {
		res, err := e.doRequest(url, body)
		if err != nil {
			return err
		}

		switch {
		case res.StatusCode < 300:
			breaker.RecordSuccess()
			result = res
			return nil
		case res.StatusCode >= 400 && res.StatusCode < 500:
			// Terminal verdict; no breaker bookkeeping either way.
			result = res
			return nil
		default:
			return fmt.Errorf("processor %s returned status %d", processor, res.StatusCode)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.config.RetryBackoffSeed

	err = backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(e.config.MaxRetries)), ctx))
	if err != nil {
		breaker.RecordFailure()
		return nil, fmt.Errorf("settlement attempt against %s failed: %w", processor, err)
	}

	return result, nil
}

func (e *RequestExecutor) doRequest(url string, body []byte) (*AttemptResult, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := e.httpClient.DoTimeout(req, resp, e.config.RequestTimeout); err != nil {
		return nil, fmt.Errorf("failed to reach processor: %w", err)
	}

	return &AttemptResult{
		StatusCode: resp.StatusCode(),
		Body:       append([]byte(nil), resp.Body()...),
	}, nil
}
