package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultDedupeTTL = 10 * time.Minute

// ProcessedStore remembers recently seen message identifiers so carrier
// retries do not enqueue the same message twice. Entries expire; late
// duplicates past the TTL are tolerated because replayed turns are
// idempotent downstream.
type ProcessedStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProcessedStore builds a Redis-backed dedupe store.
func NewProcessedStore(client *redis.Client, ttl time.Duration) *ProcessedStore {
	if client == nil {
		panic("webhook: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	return &ProcessedStore{client: client, ttl: ttl}
}

// MarkProcessed records the message identifier, returning false when it
// was already present.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, messageSID string) (bool, error) {
	first, err := s.client.SetNX(ctx, "webhook:processed:"+messageSID, "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("webhook: failed to mark processed: %w", err)
	}
	return first, nil
}
