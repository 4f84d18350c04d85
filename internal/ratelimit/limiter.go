package ratelimit

import "context"

// Throttle paces outbound sends per mail provider so a warm-up batch cannot
// exceed the provider's request rate.
type Throttle interface {
	Allow(ctx context.Context, provider string) (bool, error)
	Wait(ctx context.Context, provider string) error
}
