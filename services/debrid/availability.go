package debrid

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"streamresolver/internal/metrics"
	"streamresolver/models"
)

const (
	defaultBreakerThreshold = 3
	defaultBreakerOpen      = 60 * time.Second
)

// AvailabilityResolver answers "which of these hashes are cached on provider X".
// When a provider cannot verify, hashes are reported cached and flagged degraded
// so that playback is still attempted; the cascade is the real arbiter.
type AvailabilityResolver struct {
	mu        sync.Mutex
	providers map[string]Provider
	breakers  map[string]*gobreaker.CircuitBreaker[map[string]bool]
	limiters  map[string]*rate.Limiter

	breakerThreshold uint32
	breakerOpen      time.Duration
}

// NewAvailabilityResolver indexes providers by Name().
func NewAvailabilityResolver(providers []Provider) *AvailabilityResolver {
	r := &AvailabilityResolver{
		providers:        make(map[string]Provider, len(providers)),
		breakers:         make(map[string]*gobreaker.CircuitBreaker[map[string]bool]),
		limiters:         make(map[string]*rate.Limiter),
		breakerThreshold: defaultBreakerThreshold,
		breakerOpen:      defaultBreakerOpen,
	}
	for _, p := range providers {
		r.providers[strings.ToLower(p.Name())] = p
	}
	return r
}

// CheckAvailability reports the cached state of every hash on providerID. The
// result has one entry per distinct input hash, keyed by lowercase hash, unless
// ctx ends first: hashes not checked by then are left out rather than degraded.
func (r *AvailabilityResolver) CheckAvailability(ctx context.Context, providerID string, hashes []string) map[string]models.ProviderAvailabilityResult {
	providerID = strings.ToLower(strings.TrimSpace(providerID))
	unique := uniqueHashes(hashes)
	results := make(map[string]models.ProviderAvailabilityResult, len(unique))
	if len(unique) == 0 {
		return results
	}

	provider, ok := r.providers[providerID]
	if !ok {
		degrade(results, providerID, unique, fmt.Sprintf("provider %q not configured", providerID))
		return results
	}
	checker, ok := provider.(AvailabilityChecker)
	if !ok {
		degrade(results, providerID, unique, "availability check not supported")
		return results
	}

	size := checker.BatchSize()
	if size <= 0 {
		size = len(unique)
	}
	breaker := r.breakerFor(providerID)
	limiter := r.limiterFor(providerID, checker.BatchDelay())

	for start := 0; start < len(unique); start += size {
		batch := unique[start:min(start+size, len(unique))]

		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				log.Printf("[availability] %s: stopped with %d hashes unchecked: %v", providerID, len(unique)-start, ctx.Err())
				break
			}
			degrade(results, providerID, unique[start:], err.Error())
			break
		}

		cached, err := breaker.Execute(func() (map[string]bool, error) {
			return checker.CheckAvailability(ctx, batch)
		})
		if ctx.Err() != nil {
			log.Printf("[availability] %s: stopped with %d hashes unchecked: %v", providerID, len(unique)-start, ctx.Err())
			break
		}
		if err != nil {
			// A disabled endpoint or open breaker will not recover within this request.
			if errors.Is(err, ErrAvailabilityDisabled) || errors.Is(err, gobreaker.ErrOpenState) {
				log.Printf("[availability] %s: %v; assuming %d hashes cached", providerID, err, len(unique)-start)
				degrade(results, providerID, unique[start:], err.Error())
				break
			}
			log.Printf("[availability] %s: batch of %d failed: %v; assuming cached", providerID, len(batch), err)
			degrade(results, providerID, batch, err.Error())
			continue
		}

		for _, h := range batch {
			results[h] = models.ProviderAvailabilityResult{Hash: h, Cached: cached[h]}
		}
		metrics.AvailabilityChecks.WithLabelValues(providerID, metrics.ModeVerified).Add(float64(len(batch)))
	}
	return results
}

func degrade(results map[string]models.ProviderAvailabilityResult, providerID string, hashes []string, reason string) {
	for _, h := range hashes {
		results[h] = models.ProviderAvailabilityResult{Hash: h, Cached: true, Degraded: true, Error: reason}
	}
	metrics.AvailabilityChecks.WithLabelValues(providerID, metrics.ModeDegraded).Add(float64(len(hashes)))
}

func uniqueHashes(hashes []string) []string {
	seen := make(map[string]struct{}, len(hashes))
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

func (r *AvailabilityResolver) breakerFor(providerID string) *gobreaker.CircuitBreaker[map[string]bool] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[providerID]; ok {
		return cb
	}
	threshold := r.breakerThreshold
	cb := gobreaker.NewCircuitBreaker[map[string]bool](gobreaker.Settings{
		Name:        providerID,
		MaxRequests: 1,
		Timeout:     r.breakerOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[availability] breaker %s: %s -> %s", name, from, to)
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	r.breakers[providerID] = cb
	return cb
}

// limiterFor returns the provider's shared batch pacer: one batch per delay.
func (r *AvailabilityResolver) limiterFor(providerID string, delay time.Duration) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[providerID]; ok {
		return l
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	l := rate.NewLimiter(limit, 1)
	r.limiters[providerID] = l
	return l
}
