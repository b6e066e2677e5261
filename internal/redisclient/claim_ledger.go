package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const claimKeyPrefix = "estategate:claim:redeemed:"

// ClaimLedger remembers redeemed registration claims until they would have expired anyway.
type ClaimLedger struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewClaimLedger(c *Client) *ClaimLedger {
	return &ClaimLedger{rdb: c.Raw(), now: time.Now}
}

// MarkRedeemed returns false when claimID was already redeemed.
func (l *ClaimLedger) MarkRedeemed(ctx context.Context, claimID string, until time.Time) (bool, error) {
	ttl := until.Sub(l.now())
	if ttl <= 0 {
		// past expiry the claim cannot be parsed again, a short key is enough
		ttl = time.Minute
	}

	ok, err := l.rdb.SetNX(ctx, claimKeyPrefix+claimID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx claim: %w", err)
	}
	return ok, nil
}
