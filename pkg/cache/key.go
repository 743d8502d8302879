package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces all cache keys.
const KeyPrefix = "collector:http"

// CacheKey identifies a cached upstream response.
type CacheKey struct {
	// Endpoint is the request path (e.g., "/vendors/1001/products").
	Endpoint string

	// QueryParams are the query parameters (e.g., {"page": "2"}).
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: collector:http:endpoint:query1=val1:query2=val2
//
// Example:
//
//	collector:http:vendors/1001/products:page=2:size=70
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Sorted for determinism
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
