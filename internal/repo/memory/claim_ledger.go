package memory

import (
	"context"
	"sync"
	"time"
)

// ClaimLedger is the in-process stand-in for the redis ledger. It forgets entries
// once their claim would have expired.
type ClaimLedger struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewClaimLedger() *ClaimLedger {
	return &ClaimLedger{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (l *ClaimLedger) MarkRedeemed(_ context.Context, claimID string, until time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, exp := range l.seen {
		if now.After(exp) {
			delete(l.seen, id)
		}
	}

	if _, dup := l.seen[claimID]; dup {
		return false, nil
	}
	if !until.After(now) {
		until = now.Add(time.Minute)
	}
	l.seen[claimID] = until
	return true, nil
}
