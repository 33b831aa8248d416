package ratelimit

import (
	"context"

	"github.com/vallegrande/notification-engine/internal/domain"
)

// RateLimiter throttles provider calls per delivery channel.
type RateLimiter interface {
	Allow(ctx context.Context, channel domain.Channel) (bool, error)
	Wait(ctx context.Context, channel domain.Channel) error
}
