package cache

import (
	"fmt"
	"strings"
)

// keyPrefix namespaces all page keys.
const keyPrefix = "catalog:collections"

// PageKey identifies one page of the collections listing.
type PageKey struct {
	Chain  string
	Limit  int
	Offset int
}

// NormalizeChain returns the canonical form of a chain name used both in
// requests and in cache keys.
func NormalizeChain(chain string) string {
	return strings.ToLower(strings.TrimSpace(chain))
}

// String generates a deterministic cache key string.
// Format: catalog:collections:chain=<chain>:limit=<n>:offset=<n>
//
// Example:
//
//	catalog:collections:chain=ethereum:limit=50:offset=100
func (k PageKey) String() string {
	parts := []string{
		keyPrefix,
		fmt.Sprintf("chain=%s", NormalizeChain(k.Chain)),
		fmt.Sprintf("limit=%d", k.Limit),
		fmt.Sprintf("offset=%d", k.Offset),
	}
	return strings.Join(parts, ":")
}
