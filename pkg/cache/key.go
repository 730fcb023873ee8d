package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key represents a unique identifier for a cached API response.
type Key struct {
	// Endpoint is the API endpoint path (e.g., "/v1/services/")
	Endpoint string

	// PathParams are the path parameters (e.g., {"service_id": "318"})
	PathParams map[string]string

	// QueryParams are the query parameters (e.g., {"search": "plumber"})
	QueryParams url.Values

	// UserID is the user ID for authenticated endpoints (0 for public)
	UserID int64
}

// String generates a deterministic cache key string.
// Format: mp:endpoint:param1=val1:param2=val2:query1=val1:user=123456
//
// Example:
//   mp:v1/services:category=repair:page=2:user=0
func (k Key) String() string {
	parts := []string{"mp"}

	// Add endpoint (normalize path)
	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Add path params (sorted for determinism)
	if len(k.PathParams) > 0 {
		pathKeys := make([]string, 0, len(k.PathParams))
		for key := range k.PathParams {
			pathKeys = append(pathKeys, key)
		}
		sort.Strings(pathKeys)

		for _, key := range pathKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.PathParams[key]))
		}
	}

	// Add query params (sorted for determinism)
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

	// Add user ID if authenticated
	if k.UserID > 0 {
		parts = append(parts, fmt.Sprintf("user=%d", k.UserID))
	}

	return strings.Join(parts, ":")
}
