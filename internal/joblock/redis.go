package joblock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"folio/internal/logging"
)

const (
	keyPrefix   = "folio:joblock:"
	pingTimeout = 2 * time.Second
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript refreshes the expiry only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker shares job locks between hosts through Redis keys with a TTL.
// A held lock is refreshed in the background so long runs keep it.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisLocker parses redisURL and verifies connectivity.
func NewRedisLocker(ctx context.Context, redisURL string, ttl time.Duration, logger *slog.Logger) (*RedisLocker, error) {
	if ttl <= 0 {
		return nil, errors.New("redis lock ttl must be positive")
	}
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	options.DialTimeout = 3 * time.Second
	options.ReadTimeout = 2 * time.Second
	options.WriteTimeout = 2 * time.Second

	client := redis.NewClient(options)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logging.NewComponentLogger(logger, "joblock")}, nil
}

// Close releases the Redis connection pool.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// TryLock claims the key for name if nobody holds it.
func (l *RedisLocker) TryLock(ctx context.Context, name string) (func() error, bool, error) {
	key := keyPrefix + lockName(name)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, stop, done)

	release := func() error {
		close(stop)
		<-done
		releaseCtx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("redis unlock %s: %w", name, err)
		}
		return nil
	}
	return release, true, nil
}

func (l *RedisLocker) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			extended, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				logging.WarnWithContext(l.logger, "failed to refresh job lock", "lock_refresh_failed",
					logging.String("key", key),
					logging.Error(err),
				)
				continue
			}
			if extended == 0 {
				logging.WarnWithContext(l.logger, "job lock lost before release", "lock_lost",
					logging.String("key", key),
					logging.String(logging.FieldErrorHint, "raise jobs.lock_ttl if runs outlive it"),
				)
				return
			}
		}
	}
}
