package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTTL is the fallback TTL when the response carries no caching headers.
	DefaultTTL = 5 * time.Minute
)

// ResponseToEntry converts a fetched response into a cache entry. Only 2xx
// responses are cacheable, and "no-store" or "no-cache" responses are not.
// It reports false when the response should not be cached.
func ResponseToEntry(status int, header http.Header, body []byte, defaultTTL time.Duration) (*CacheEntry, bool) {
	if status < 200 || status > 299 {
		return nil, false
	}

	now := time.Now()
	expires, ok := parseExpiry(header, now, defaultTTL)
	if !ok || !expires.After(now) {
		return nil, false
	}

	return &CacheEntry{
		Data:        append([]byte(nil), body...),
		StatusCode:  status,
		ContentType: header.Get("Content-Type"),
		Expires:     expires,
		CachedAt:    now,
	}, true
}

// parseExpiry derives the expiry from Cache-Control max-age, then Expires,
// then defaultTTL. It reports false for responses that forbid caching.
func parseExpiry(headers http.Header, now time.Time, defaultTTL time.Duration) (time.Time, bool) {
	if cc := headers.Get("Cache-Control"); cc != "" {
		for _, directive := range strings.Split(cc, ",") {
			directive = strings.ToLower(strings.TrimSpace(directive))
			switch {
			case directive == "no-store", directive == "no-cache":
				return time.Time{}, false
			case strings.HasPrefix(directive, "max-age="):
				secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age="))
				if err == nil && secs >= 0 {
					return now.Add(time.Duration(secs) * time.Second), true
				}
			}
		}
	}

	if expiresStr := headers.Get("Expires"); expiresStr != "" {
		if expires, err := http.ParseTime(expiresStr); err == nil {
			return expires, true
		}
	}

	return now.Add(defaultTTL), true
}
