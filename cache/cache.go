// Package cache provides segment cache implementations for
// docdedup.SegmentTranslator.
package cache

import "github.com/ZaguanLabs/docdedup"

// DefaultKeyPrefix namespaces segment entries in shared stores.
const DefaultKeyPrefix = "docdedup:seg:"

var (
	_ docdedup.SegmentCache = (*InMemoryCache)(nil)
	_ docdedup.SegmentCache = (*RedisCache)(nil)
)
