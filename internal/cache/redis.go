package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/railbooking/config"
	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("timed out waiting for reservation lock")

// unlockScript deletes the lock only if this holder still owns it.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisCache struct {
	client       redis.UniversalClient
	trainRunsTTL time.Duration
	lockTTL      time.Duration
	lockWait     time.Duration
	pollInterval time.Duration
}

func NewRedisCache(cfg config.RedisConfig, trainRunsTTL time.Duration) *RedisCache {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	c := NewWithClient(client, trainRunsTTL)
	if cfg.LockTTL > 0 {
		c.lockTTL = cfg.LockTTL
	}
	if cfg.LockWait > 0 {
		c.lockWait = cfg.LockWait
	}
	return c
}

func NewWithClient(client redis.UniversalClient, trainRunsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:       client,
		trainRunsTTL: trainRunsTTL,
		lockTTL:      10 * time.Second,
		lockWait:     5 * time.Second,
		pollInterval: 20 * time.Millisecond,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetTrainRuns returns nil, nil on a cache miss.
func (c *RedisCache) GetTrainRuns(ctx context.Context) ([]domain.TrainRun, error) {
	data, err := c.client.Get(ctx, trainRunsKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var runs []domain.TrainRun
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func (c *RedisCache) SetTrainRuns(ctx context.Context, runs []domain.TrainRun) error {
	payload, err := json.Marshal(runs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, trainRunsKey(), payload, c.trainRunsTTL).Err()
}

// Lock takes the transition lock for one PNR, polling until lockWait elapses.
// The lock expires after lockTTL if its holder dies.
func (c *RedisCache) Lock(ctx context.Context, pnr string) (func(), error) {
	key := pnrLockKey(pnr)
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, c.lockWait)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		ok, err := c.client.SetNX(ctx, key, token, c.lockTTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s", ErrLockTimeout, pnr)
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				_ = unlockScript.Run(context.Background(), c.client, []string{key}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, pnr)
		case <-ticker.C:
		}
	}
}

func trainRunsKey() string {
	return "cache:train_runs"
}

func pnrLockKey(pnr string) string {
	return fmt.Sprintf("lock:reservation:%s", pnr)
}
