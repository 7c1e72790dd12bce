// Package streamerr defines the closed set of failure kinds used by the stream engine.
// Provider and source errors are classified once, at the boundary, and consumed uniformly.
package streamerr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"streamresolver/models"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindSourceUnavailable
	KindProviderDegraded
	KindNotCached
	KindNotEntitled
	KindRateLimited
	KindDownloadLimitReached
	KindTransientError
	KindPermanentError
	KindAllProvidersFailed
	KindLockTimeout
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	KindInvalidInput:         "invalid_input",
	KindSourceUnavailable:    "source_unavailable",
	KindProviderDegraded:     "provider_degraded",
	KindNotCached:            "not_cached",
	KindNotEntitled:          "not_entitled",
	KindRateLimited:          "rate_limited",
	KindDownloadLimitReached: "download_limit_reached",
	KindTransientError:       "transient_error",
	KindPermanentError:       "permanent_error",
	KindAllProvidersFailed:   "all_providers_failed",
	KindLockTimeout:          "lock_timeout",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Status maps a per-provider failure kind to the resolution status reported to callers.
// DownloadLimitReached is reported as RateLimited.
func (k Kind) Status() models.ResolutionStatus {
	switch k {
	case KindNotCached:
		return models.ResolutionNotCached
	case KindNotEntitled:
		return models.ResolutionNotEntitled
	case KindRateLimited, KindDownloadLimitReached:
		return models.ResolutionRateLimited
	case KindPermanentError, KindInvalidInput:
		return models.ResolutionPermanentError
	default:
		return models.ResolutionTransientError
	}
}

// Error carries a Kind alongside the failing operation and provider.
type Error struct {
	Kind     Kind
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a classified error from a format string.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithProvider returns err annotated with a provider id. Unclassified errors are classified
// from their message first.
func WithProvider(provider string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		clone := *se
		clone.Provider = provider
		return &clone
	}
	return &Error{Kind: ClassifyMessage(err.Error()), Provider: provider, Err: err}
}

// KindOf extracts the Kind of err; unclassified errors are TransientError,
// context deadlines included.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	var all *AllProvidersFailedError
	if errors.As(err, &all) {
		return KindAllProvidersFailed
	}
	return KindTransientError
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ClassifyHTTP maps a provider response to a kind. body may be empty.
func ClassifyHTTP(status int, body string) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if kind := ClassifyMessage(body); kind == KindDownloadLimitReached || kind == KindRateLimited {
			return kind
		}
		return KindNotEntitled
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 200 && status < 400:
		return ClassifyMessage(body)
	default:
		switch kind := ClassifyMessage(body); kind {
		case KindDownloadLimitReached, KindRateLimited, KindNotCached:
			return kind
		}
		return KindTransientError
	}
}

var (
	downloadLimitPhrases = []string{"active download limit", "active_limit", "download_limit", "too many active"}
	rateLimitPhrases     = []string{"rate limit", "rate_limit", "ratelimit", "too many requests", "slow down"}
	notEntitledPhrases   = []string{"premium", "unauthorized", "forbidden", "access denied", "bad_token", "badtoken", "invalid api key", "expired", "permission_denied", "auth"}
	notCachedPhrases     = []string{"not cached", "not_cached", "torrent_not_cached", "not available", "no cached", "not ready"}
)

// ClassifyMessage maps free-form provider error text to a kind.
// Download-limit phrasing is checked before generic rate-limit phrasing.
func ClassifyMessage(msg string) Kind {
	lower := strings.ToLower(msg)
	switch {
	case lower == "":
		return KindTransientError
	case containsAny(lower, downloadLimitPhrases):
		return KindDownloadLimitReached
	case containsAny(lower, rateLimitPhrases) || strings.Contains(lower, "429"):
		return KindRateLimited
	case containsAny(lower, notCachedPhrases):
		return KindNotCached
	case containsAny(lower, notEntitledPhrases) || strings.Contains(lower, "401") || strings.Contains(lower, "403"):
		return KindNotEntitled
	default:
		return KindTransientError
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// AllProvidersFailedError is the terminal cascade failure, listing every provider's outcome.
type AllProvidersFailedError struct {
	Hash     string
	Outcomes []models.ResolutionOutcome
}

func (e *AllProvidersFailedError) Error() string {
	if len(e.Outcomes) == 0 {
		return fmt.Sprintf("all providers failed for %s: no providers configured", e.Hash)
	}
	parts := make([]string, 0, len(e.Outcomes))
	for _, o := range e.Outcomes {
		if o.Reason != "" {
			parts = append(parts, fmt.Sprintf("%s=%s (%s)", o.ProviderID, o.Status, o.Reason))
		} else {
			parts = append(parts, fmt.Sprintf("%s=%s", o.ProviderID, o.Status))
		}
	}
	return fmt.Sprintf("all providers failed for %s: %s", e.Hash, strings.Join(parts, "; "))
}
