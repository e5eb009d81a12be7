package cache

import (
	"context"
	"time"
)

// BytesCache stores serialized decisions with a TTL. A miss is (nil, false, nil).
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// DecisionKey is the cache key of a fixture's latest decision.
func DecisionKey(fixtureID string) string {
	return "decision:" + fixtureID
}
