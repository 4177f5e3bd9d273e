package services

import (
	"encoding/json"
	"sync"
	"time"

	"payment-router/internal/config"
	"payment-router/internal/constants"
	"payment-router/internal/models"

	"github.com/valyala/fasthttp"
)

// HealthTrackerService keeps a TTL-bounded cache of both processors' raw
// health. The view handed to callers is masked by the circuit breakers: a
// reachable processor is still reported unhealthy while its breaker is open.
type HealthTrackerService struct {
	config     *config.Config
	httpClient *fasthttp.Client
	breakers   map[constants.PaymentMode]*CircuitBreaker

	mu        sync.Mutex
	cached    models.ProcessorsHealth
	checkedAt time.Time
}

func NewHealthTracker(cfg *config.Config, client *fasthttp.Client, breakers map[constants.PaymentMode]*CircuitBreaker) *HealthTrackerService {
	return &HealthTrackerService{
		config:     cfg,
		httpClient: client,
		breakers:   breakers,
	}
}

// Snapshot returns the breaker-masked health of both processors, probing
// them only when the cached view is older than the TTL. Two callers racing
// on a stale cache both refresh it; the refresh is idempotent.
func (h *HealthTrackerService) Snapshot() models.ProcessorsHealth {
	h.mu.Lock()
	if time.Since(h.checkedAt) < h.config.HealthTTL {
		raw := h.cached
		h.mu.Unlock()
		return h.masked(raw)
	}
	h.mu.Unlock()

	raw := h.probeBoth(h.config.HealthTimeout)

	h.mu.Lock()
	h.cached = raw
	h.checkedAt = time.Now()
	h.mu.Unlock()

	return h.masked(raw)
}

// SnapshotFresh probes both processors unconditionally with the short probe
// timeout. The queue worker uses it so a burst of retries never acts on a
// stale cache. The result still refreshes the shared cache.
func (h *HealthTrackerService) SnapshotFresh() models.ProcessorsHealth {
	raw := h.probeBoth(h.config.HealthTimeout)

	h.mu.Lock()
	h.cached = raw
	h.checkedAt = time.Now()
	h.mu.Unlock()

	return h.masked(raw)
}

func (h *HealthTrackerService) probeBoth(timeout time.Duration) models.ProcessorsHealth {
	var wg sync.WaitGroup
	var health models.ProcessorsHealth

	wg.Add(2)
	go func() {
		defer wg.Done()
		health.Default = h.probeProcessor(constants.DefaultProcessorKey, timeout)
	}()
	go func() {
		defer wg.Done()
		health.Fallback = h.probeProcessor(constants.FallbackProcessorKey, timeout)
	}()
	wg.Wait()

	return health
}

func (h *HealthTrackerService) probeProcessor(processor constants.PaymentMode, timeout time.Duration) bool {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(h.config.Urls[processor].HealthURL)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := h.httpClient.DoTimeout(req, resp, timeout); err != nil {
		return false
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return false
	}

	var healthResp models.HealthResponse
	if err := json.Unmarshal(resp.Body(), &healthResp); err != nil {
		return false
	}

	return !healthResp.Failing
}

func (h *HealthTrackerService) masked(raw models.ProcessorsHealth) models.ProcessorsHealth {
	return models.ProcessorsHealth{
		Default:  raw.Default && !h.breakers[constants.DefaultProcessorKey].IsOpen(),
		Fallback: raw.Fallback && !h.breakers[constants.FallbackProcessorKey].IsOpen(),
	}
}
