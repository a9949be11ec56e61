package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nuvom/nuvom/internal/codec"
	"github.com/nuvom/nuvom/internal/job"
)

// Redis is a cross-process FIFO queue backend built on a single Redis
// list: Enqueue is LPUSH, Dequeue/PopBatch pop from the tail with BRPOP so
// multiple worker processes compete for the same list, the pattern the
// teacher's redis client wraps for its pub/sub bus generalized here to a
// blocking work queue.
type Redis struct {
	client *redis.Client
	key    string
	codec  codec.Codec
}

// NewRedis opens a client against addr (host:port) and uses key as the
// list name jobs are pushed to and popped from.
func NewRedis(addr, key string) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
		codec:  codec.Default(),
	}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Enqueue(ctx context.Context, j *job.Job) error {
	raw, err := r.codec.Encode(j)
	if err != nil {
		return err
	}
	return r.client.LPush(ctx, r.key, raw).Err()
}

func (r *Redis) Dequeue(ctx context.Context, timeout time.Duration) (*job.Job, error) {
	res, err := r.client.BRPop(ctx, timeout, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPop returns [key, value]; value is res[1].
	var j job.Job
	if err := r.codec.Decode([]byte(res[1]), &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// PopBatch waits in aggregate up to timeout for the first job (via BRPop),
// then drains whatever else is immediately available with non-blocking
// RPop calls up to n total, mirroring the memory backend's single-deadline
// batch semantics.
func (r *Redis) PopBatch(ctx context.Context, n int, timeout time.Duration) ([]*job.Job, error) {
	if n <= 0 {
		return nil, nil
	}
	first, err := r.Dequeue(ctx, timeout)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, nil
	}
	out := []*job.Job{first}
	for len(out) < n {
		raw, err := r.client.RPop(ctx, r.key).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return out, err
		}
		var j job.Job
		if err := r.codec.Decode([]byte(raw), &j); err != nil {
			return out, err
		}
		out = append(out, &j)
	}
	return out, nil
}

func (r *Redis) Size(ctx context.Context) (int, error) {
	n, err := r.client.LLen(ctx, r.key).Result()
	return int(n), err
}

func (r *Redis) Clear(ctx context.Context) (int, error) {
	n, err := r.client.LLen(ctx, r.key).Result()
	if err != nil {
		return 0, err
	}
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }
