package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RunLocker guards a queue against concurrent runs. Acquire returns
// ErrRunAlreadyInProgress when the queue is held.
type RunLocker interface {
	Acquire(ctx context.Context, queueID string) (release func(), err error)
}

type memoryRunLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryRunLocker returns a process-local locker.
func NewMemoryRunLocker() RunLocker {
	return &memoryRunLocker{held: make(map[string]struct{})}
}

func (l *memoryRunLocker) Acquire(_ context.Context, queueID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.held[queueID]; exists {
		return nil, ErrRunAlreadyInProgress
	}
	l.held[queueID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, queueID)
			l.mu.Unlock()
		})
	}, nil
}

// releaseScript deletes the key only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// refreshScript extends the TTL only when the key still carries our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

type redisRunLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisRunLocker returns a locker shared by every API instance using the
// same Redis. The lock is refreshed at a third of ttl while held.
func NewRedisRunLocker(client *redis.Client, prefix string, ttl time.Duration, logger zerolog.Logger) RunLocker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if prefix == "" {
		prefix = "judge"
	}
	return &redisRunLocker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With().Str("component", "run_lock").Logger(),
	}
}

func (l *redisRunLocker) key(queueID string) string {
	return fmt.Sprintf("%s:run-lock:%s", l.prefix, queueID)
}

func (l *redisRunLocker) Acquire(ctx context.Context, queueID string) (func(), error) {
	key := l.key(queueID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, &StoreError{Op: "lock", QueueID: queueID, Err: err}
	}
	if !ok {
		return nil, ErrRunAlreadyInProgress
	}

	stop := make(chan struct{})
	go l.refresh(key, token, stop)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
				l.logger.Warn().Err(err).Str("queue_id", queueID).Msg("failed to release run lock")
			}
		})
	}, nil
}

func (l *redisRunLocker) refresh(key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := refreshScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Err()
			cancel()
			if err != nil {
				l.logger.Warn().Err(err).Str("key", key).Msg("failed to refresh run lock")
			}
		}
	}
}
