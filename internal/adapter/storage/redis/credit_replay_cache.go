package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vehicle-auction-engine/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

const creditReplayNamespace = "auction:credit:"

// CreditReplayCache implements ports.IdempotencyCache for funding credits.
// It holds the ledger entry a deposit or refund reference settled into, so a
// repeated gateway callback is answered without opening a transaction.
type CreditReplayCache struct {
	client *goredis.Client
}

func NewCreditReplayCache(client *goredis.Client) *CreditReplayCache {
	return &CreditReplayCache{client: client}
}

// Get returns the settled entry for a credit key, or nil on a miss.
func (c *CreditReplayCache) Get(ctx context.Context, key string) ([]byte, error) {
	if _, _, ok := domain.ParseCreditKey(key); !ok {
		return nil, fmt.Errorf("credit replay get: malformed key %q", key)
	}
	val, err := c.client.Get(ctx, creditReplayNamespace+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credit replay get %s: %w", key, err)
	}
	return val, nil
}

// Set records the settled entry. A ledger entry never changes once written,
// so the first value stored under a key wins and later writes are ignored.
func (c *CreditReplayCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if _, _, ok := domain.ParseCreditKey(key); !ok {
		return fmt.Errorf("credit replay set: malformed key %q", key)
	}
	if ttl <= 0 {
		return fmt.Errorf("credit replay set %s: ttl must be positive", key)
	}
	if err := c.client.SetNX(ctx, creditReplayNamespace+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("credit replay set %s: %w", key, err)
	}
	return nil
}
