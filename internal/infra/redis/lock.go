package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultLockTTL = 30 * time.Second

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var ErrLockNotHeld = errors.New("lock not held")

// NotificationLocker gives one worker exclusive ownership of a notification id.
type NotificationLocker struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewNotificationLocker(client *goredis.Client, ttl time.Duration) (*NotificationLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &NotificationLocker{client: client, ttl: ttl}, nil
}

// TryLock reports false without error when another owner holds the id. The returned func
// releases the lock only if it is still ours.
func (l *NotificationLocker) TryLock(ctx context.Context, notificationID string) (func(context.Context) error, bool, error) {
	if notificationID == "" {
		return nil, false, fmt.Errorf("notification id is required")
	}

	key := lockKey(notificationID)
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		deleted, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("failed to release lock %q: %w", key, err)
		}
		if deleted == 0 {
			return ErrLockNotHeld
		}
		return nil
	}
	return release, true, nil
}

func lockKey(notificationID string) string {
	return "notify:lock:" + notificationID
}
