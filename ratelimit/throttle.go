package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-crm-items/core"
	goerrors "github.com/goliatone/go-errors"
)

// ThrottledError reports a provider rate limit response for one collection.
type ThrottledError struct {
	ProviderID string
	Collection string
	RetryAfter time.Duration
	Limit      int
	Remaining  int
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf(
		"ratelimit: provider %q collection %q throttled for %s",
		strings.TrimSpace(e.ProviderID),
		strings.TrimSpace(e.Collection),
		e.RetryAfter,
	)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"provider_id": strings.TrimSpace(e.ProviderID),
		"collection":  strings.TrimSpace(e.Collection),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	if e.Limit > 0 {
		metadata["limit"] = e.Limit
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ServiceErrorRateLimited).
		WithMetadata(metadata)
}

// ResponseMeta is the slice of a provider response used to detect throttling.
type ResponseMeta struct {
	StatusCode int
	Headers    map[string]string
}

// Inspect returns a ThrottledError when meta describes a rate limited call.
// Retry-After (seconds or HTTP date) wins over the provider window headers.
func Inspect(providerID string, collection string, meta ResponseMeta, now time.Time) (ThrottledError, bool) {
	remaining, hasRemaining := firstHeaderInt(meta.Headers, "x-hubspot-ratelimit-remaining", "x-ratelimit-remaining")
	if meta.StatusCode != http.StatusTooManyRequests && !(hasRemaining && remaining == 0 && meta.StatusCode >= 400) {
		return ThrottledError{}, false
	}
	limit, _ := firstHeaderInt(meta.Headers, "x-hubspot-ratelimit-max", "x-ratelimit-limit")
	retryAfter, ok := parseRetryAfter(meta.Headers, now)
	if !ok {
		if windowMillis, hasWindow := firstHeaderInt(meta.Headers, "x-hubspot-ratelimit-interval-milliseconds"); hasWindow && windowMillis > 0 {
			retryAfter = time.Duration(windowMillis) * time.Millisecond
		}
	}
	return ThrottledError{
		ProviderID: strings.TrimSpace(providerID),
		Collection: strings.TrimSpace(collection),
		RetryAfter: retryAfter,
		Limit:      limit,
		Remaining:  remaining,
	}, true
}

func parseRetryAfter(headers map[string]string, now time.Time) (time.Duration, bool) {
	raw := headerValue(headers, "retry-after")
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if retryAt, err := httpDate(raw); err == nil {
		if retryAt.After(now) {
			return retryAt.Sub(now), true
		}
	}
	return 0, false
}

func firstHeaderInt(headers map[string]string, keys ...string) (int, bool) {
	for _, key := range keys {
		value := headerValue(headers, key)
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		return parsed, true
	}
	return 0, false
}

func httpDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("ratelimit: empty date")
	}
	if parsed, err := http.ParseTime(value); err == nil {
		return parsed.UTC(), nil
	}
	if parsed, err := time.Parse(time.RFC1123, value); err == nil {
		return parsed.UTC(), nil
	}
	if parsed, err := time.Parse(time.RFC1123Z, value); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("ratelimit: invalid http date")
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
