package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"market-alerts/internal/domain"
	"market-alerts/internal/infra/metrics"
)

// RedisQueue читает события из Redis list. Продюсер делает LPUSH, потребитель BRPOP.
type RedisQueue struct {
	client *redis.Client
	key    string
}

var _ domain.EventQueue = (*RedisQueue)(nil)

// NewRedisQueue создаёт очередь по указанному ключу.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

// Receive блокирующе читает сообщение. Неуспешная обработка возвращает его в очередь.
func (q *RedisQueue) Receive(ctx context.Context) ([]byte, domain.AckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		start := time.Now()
		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return nil, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			metrics.ObserveNetworkRequest("redis", "brpop", q.key, start, err)
			return nil, nil, fmt.Errorf("redis queue: brpop: %w", err)
		}
		metrics.ObserveNetworkRequest("redis", "brpop", q.key, start, nil)
		if len(res) != 2 {
			return nil, nil, errors.New("redis queue: unexpected response")
		}
		payload := []byte(res[1])
		return payload, q.ackFunc(payload), nil
	}
}

func (q *RedisQueue) ackFunc(payload []byte) domain.AckFunc {
	return func(success bool) error {
		if success {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
			return fmt.Errorf("redis queue: requeue: %w", err)
		}
		return nil
	}
}

// Close ничего не делает: клиентом Redis владеет вызывающий код.
func (q *RedisQueue) Close() error { return nil }
