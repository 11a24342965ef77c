package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"
)

// admitScript trims the sorted set to the window, then adds the hit only if
// the ceiling has not been reached. Scores are unix milliseconds.
var admitScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local n = redis.call('ZCARD', KEYS[1])
local allowed = 0
if n < tonumber(ARGV[3]) then
	redis.call('ZADD', KEYS[1], ARGV[2], ARGV[4])
	redis.call('PEXPIRE', KEYS[1], ARGV[5])
	n = n + 1
	allowed = 1
end
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
local score = 0
if oldest[2] then score = oldest[2] end
return {allowed, n, tostring(score)}
`)

// Redis is a Store shared by every server instance pointing at the same
// Redis database.
type Redis struct {
	client *redis.Client
	prefix string

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

var _ Store = (*Redis)(nil)

// NewRedis parses a redis:// URL and returns a Store using it.
func NewRedis(url, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return NewRedisWithClient(redis.NewClient(opts), prefix), nil
}

func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.misses.Inc()
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.hits.Inc()
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return err
	}
	r.sets.Inc()
	return nil
}

func (r *Redis) Admit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Admission, error) {
	nowMs := now.UnixMilli()
	cutoff := nowMs - window.Milliseconds()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()

	res, err := admitScript.Run(ctx, r.client, []string{r.prefix + "window:" + key},
		cutoff, nowMs, limit, member, window.Milliseconds()).Slice()
	if err != nil {
		return Admission{}, fmt.Errorf("admit script failed: %w", err)
	}
	if len(res) != 3 {
		return Admission{}, fmt.Errorf("admit script returned %d values", len(res))
	}

	allowed, _ := res[0].(int64)
	count, _ := res[1].(int64)
	adm := Admission{Allowed: allowed == 1, Count: int(count)}

	if s, ok := res[2].(string); ok {
		if ms, err := strconv.ParseFloat(s, 64); err == nil && ms > 0 {
			adm.Oldest = time.UnixMilli(int64(ms))
		}
	}
	return adm, nil
}

func (r *Redis) Stats() Stats {
	return Stats{
		Hits:   r.hits.Load(),
		Misses: r.misses.Load(),
		Sets:   r.sets.Load(),
	}
}
