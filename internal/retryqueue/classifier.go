// Package retryqueue implements the durable retry subsystem for failed
// summarization attempts: error classification, a file-backed queue of failed
// items, exponential backoff scheduling, and manual retry handling.
package retryqueue

import (
	"context"
	"errors"
	"strings"

	"ai-news-digest/internal/domain/entity"
)

// Normalized failure reason tokens. These are used as metric label values and
// as keys in per-provider failure counts, never the raw error text.
const (
	ReasonRateLimit      = "rate_limit"
	ReasonQuota          = "quota"
	ReasonTimeout        = "timeout"
	ReasonNetwork        = "network"
	ReasonServiceError   = "service_error"
	ReasonAuth           = "auth"
	ReasonInvalidRequest = "invalid_request"
	ReasonContent        = "content"
	ReasonNoProvider     = "no_provider"
	ReasonUnknown        = "unknown"
)

// ProviderNone is the provider key recorded when a failure happened without
// any provider being attempted (e.g. the whole pool was unavailable).
const ProviderNone = "none"

// Classification is the result of classifying a provider call error.
type Classification struct {
	// Retryable reports whether the failure is transient and the item should
	// enter the retry queue.
	Retryable bool

	// Reason is the normalized failure token (e.g. ReasonRateLimit).
	Reason string
}

// reasonPattern maps a set of case-insensitive substrings to a normalized
// reason. Patterns are evaluated in order; the first match wins.
type reasonPattern struct {
	reason    string
	retryable bool
	patterns  []string
}

// Classification vocabulary. More specific reasons come before generic ones
// so that e.g. "429 Too Many Requests" resolves to rate_limit rather than a
// generic service error.
var reasonPatterns = []reasonPattern{
	{ReasonRateLimit, true, []string{
		"rate limit", "rate_limit", "too many requests", "too_many_requests",
		"429", "throttl", "requests per minute", "requests per day",
	}},
	{ReasonQuota, true, []string{
		"quota", "insufficient_quota", "usage limit", "credit", "billing",
	}},
	{ReasonAuth, false, []string{
		"401", "403", "unauthorized", "forbidden", "authentication",
		"invalid api key", "invalid_api_key", "api key", "permission",
	}},
	{ReasonInvalidRequest, false, []string{
		"400", "bad request", "bad_request", "invalid request",
		"invalid_request", "malformed", "invalid parameter", "validation",
	}},
	{ReasonContent, false, []string{
		"content policy", "content_policy", "content_filter", "flagged",
	}},
	{ReasonTimeout, true, []string{
		"timeout", "timed out", "deadline exceeded",
	}},
	{ReasonNetwork, true, []string{
		"connection", "network", "dns", "socket", "broken pipe",
		"no such host",
	}},
	{ReasonServiceError, true, []string{
		"500", "502", "503", "504", "bad gateway", "service unavailable",
		"service_unavailable", "internal server error", "overloaded",
		"unavailable", "circuit breaker",
	}},
}

// Classify inspects an error from a provider call and decides whether it is
// worth retrying. Classification is pattern-based over the error's textual
// representation (case-insensitive substring match). Anything that does not
// match the retryable vocabulary is treated as permanent.
//
// Classify never fails; a nil error yields a non-retryable unknown result.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Retryable: false, Reason: ReasonUnknown}
	}

	// Structured checks before falling back to text matching.
	if errors.Is(err, entity.ErrNoProviderAvailable) {
		return Classification{Retryable: true, Reason: ReasonNoProvider}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Classification{Retryable: true, Reason: ReasonTimeout}
	}
	if errors.Is(err, context.Canceled) {
		// Caller-initiated cancellation, not a provider fault.
		return Classification{Retryable: false, Reason: ReasonUnknown}
	}

	msg := strings.ToLower(err.Error())
	for _, rp := range reasonPatterns {
		for _, p := range rp.patterns {
			if strings.Contains(msg, p) {
				return Classification{Retryable: rp.retryable, Reason: rp.reason}
			}
		}
	}

	return Classification{Retryable: false, Reason: ReasonUnknown}
}

// IsRetryable reports whether an error from a provider call is transient.
func IsRetryable(err error) bool {
	return Classify(err).Retryable
}
