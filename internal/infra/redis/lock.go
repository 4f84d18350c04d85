package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bandmail/warmup-engine/internal/domain"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultLockTTL = 10 * time.Minute

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// CampaignLocker serializes batch sends per campaign with SET NX plus a
// token-checked release, so an expired holder cannot free a newer lock.
// A held lock is extended every ttl/3 until it is released, so a batch that
// runs longer than the TTL keeps it.
type CampaignLocker struct {
	client     *goredis.Client
	ttl        time.Duration
	renewEvery time.Duration
	token      func() string
}

func NewCampaignLocker(client *goredis.Client, ttl time.Duration) (*CampaignLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &CampaignLocker{
		client:     client,
		ttl:        ttl,
		renewEvery: ttl / 3,
		token:      func() string { return uuid.NewString() },
	}, nil
}

// Acquire takes the campaign lock or returns domain.ErrConflict when another
// batch holds it. The returned func stops the renewal and releases the lock.
func (l *CampaignLocker) Acquire(ctx context.Context, campaignID string) (func(context.Context) error, error) {
	key := campaignLockKey(campaignID)
	token := l.token()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire campaign lock %s: %w", campaignID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: a batch is already running for campaign %s", domain.ErrConflict, campaignID)
	}

	renewCtx, stopRenewal := context.WithCancel(context.WithoutCancel(ctx))
	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		l.renew(renewCtx, key, token)
	}()

	var once sync.Once
	release := func(ctx context.Context) error {
		var err error
		once.Do(func() {
			stopRenewal()
			<-renewed
			if runErr := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); runErr != nil {
				err = fmt.Errorf("failed to release campaign lock %s: %w", campaignID, runErr)
			}
		})
		return err
	}
	return release, nil
}

// renew pushes the key's expiry forward until ctx ends or the lock is no
// longer ours. A failed round is retried on the next tick while the key
// still has TTL left.
func (l *CampaignLocker) renew(ctx context.Context, key string, token string) {
	ticker := time.NewTicker(l.renewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extended, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
			if err != nil {
				continue
			}
			if extended == 0 {
				return
			}
		}
	}
}

func campaignLockKey(campaignID string) string {
	return "lock:campaign:" + campaignID + ":warmup"
}
