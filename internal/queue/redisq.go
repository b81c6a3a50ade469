package queue

import (
	"context"
	"time"

	r "github.com/redis/go-redis/v9"
)

const readyKey = "exports:ready"

// RedisQ hands submitted job ids to the dispatcher. Keeping the handoff in
// redis means a restart does not drop jobs that were accepted but not yet
// generated.
type RedisQ struct{ rdb *r.Client }

func New(rdb *r.Client) *RedisQ { return &RedisQ{rdb} }

func (q *RedisQ) Enqueue(ctx context.Context, jobID string) error {
	return q.rdb.LPush(ctx, readyKey, jobID).Err()
}

// Dequeue blocks for up to block and returns "" when nothing is ready.
func (q *RedisQ) Dequeue(ctx context.Context, block time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, block, readyKey).Result()
	if err == r.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if len(res) == 2 {
		return res[1], nil
	}
	return "", nil
}
