package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "fanout:idempotency:"

const (
	statusInProgress = "in_progress"
	statusCompleted  = "completed"
)

// entry — значение ключа в Redis.
type entry struct {
	Status      string          `json:"status"`
	RequestHash string          `json:"request_hash"`
	Response    *StoredResponse `json:"response,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RedisStore — Store поверх Redis.
//
// Захват ключа — SET NX с LockTTL, поэтому ключ упавшего запроса
// освобождается сам.
type RedisStore struct {
	rdb *goredis.Client
}

// NewRedisClient подключается к Redis и проверяет соединение.
func NewRedisClient(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// NewRedisStore создаёт новый RedisStore.
func NewRedisStore(rdb *goredis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Acquire реализует Store.
func (s *RedisStore) Acquire(ctx context.Context, req Request) (Decision, error) {
	key := redisKey(req)

	lock, err := json.Marshal(entry{
		Status:      statusInProgress,
		RequestHash: req.RequestHash,
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Decision{}, fmt.Errorf("marshal entry: %w", err)
	}

	// Ключ мог истечь между SETNX и GET, поэтому вторая попытка
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.rdb.SetNX(ctx, key, lock, req.LockTTL).Result()
		if err != nil {
			return Decision{}, fmt.Errorf("redis setnx: %w", err)
		}
		if ok {
			return Decision{Type: DecisionAcquired}, nil
		}

		raw, err := s.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return Decision{}, fmt.Errorf("redis get: %w", err)
		}

		var existing entry
		if err := json.Unmarshal(raw, &existing); err != nil {
			return Decision{}, fmt.Errorf("unmarshal entry: %w", err)
		}
		return decide(existing, req.RequestHash), nil
	}

	return Decision{Type: DecisionInProgress}, nil
}

// decide решает по существующей записи.
func decide(existing entry, requestHash string) Decision {
	if existing.RequestHash != requestHash {
		return Decision{Type: DecisionConflict}
	}
	if existing.Status == statusCompleted && existing.Response != nil {
		return Decision{Type: DecisionReplay, Response: *existing.Response}
	}
	return Decision{Type: DecisionInProgress}
}

// Complete реализует Store.
func (s *RedisStore) Complete(ctx context.Context, req Request, resp StoredResponse, ttl time.Duration) error {
	raw, err := json.Marshal(entry{
		Status:      statusCompleted,
		RequestHash: req.RequestHash,
		Response:    &resp,
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := s.rdb.Set(ctx, redisKey(req), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Release реализует Store.
func (s *RedisStore) Release(ctx context.Context, req Request) error {
	if err := s.rdb.Del(ctx, redisKey(req)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func redisKey(req Request) string {
	return keyPrefix + req.Scope + ":" + req.Key
}
