package ratelimit

import "context"

// RateLimiter caps provider submission throughput per dispatch channel.
type RateLimiter interface {
	Allow(ctx context.Context, channel string) (bool, error)
	Wait(ctx context.Context, channel string) error
}
