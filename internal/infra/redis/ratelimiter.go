package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bandmail/warmup-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultSendsPerSec int64 = 10
	backoffStep              = 20 * time.Millisecond
	backoffMax               = 200 * time.Millisecond
	windowSeconds            = 1
)

// Fixed one-second window shared by every API replica.
var windowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.Throttle = (*SendThrottle)(nil)

// SendThrottle limits outbound mail API calls per provider across processes.
type SendThrottle struct {
	client      *goredis.Client
	sendsPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewSendThrottle(client *goredis.Client, sendsPerSec int) (*SendThrottle, error) {
	return newSendThrottle(client, int64(sendsPerSec), time.Now, sleepWithContext)
}

func newSendThrottle(
	client *goredis.Client,
	sendsPerSec int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*SendThrottle, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if sendsPerSec <= 0 {
		sendsPerSec = defaultSendsPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &SendThrottle{
		client:      client,
		sendsPerSec: sendsPerSec,
		now:         nowFn,
		sleep:       sleepFn,
	}, nil
}

func (t *SendThrottle) Allow(ctx context.Context, provider string) (bool, error) {
	if t == nil || t.client == nil {
		return false, fmt.Errorf("send throttle is not initialized")
	}

	name := strings.ToLower(strings.TrimSpace(provider))
	if name == "" {
		return false, fmt.Errorf("provider is required")
	}

	key := fmt.Sprintf("throttle:send:%s:%d", name, t.now().UTC().Unix())
	result, err := windowScript.Run(ctx, t.client, []string{key}, t.sendsPerSec, windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate send throttle: %w", err)
	}

	return result == 1, nil
}

// Wait blocks until a send slot is free in the current window or ctx ends.
func (t *SendThrottle) Wait(ctx context.Context, provider string) error {
	backoff := backoffStep
	for {
		allowed, err := t.Allow(ctx, provider)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := t.sleep(ctx, backoff); err != nil {
			return err
		}

		backoff = min(backoff*2, backoffMax)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
