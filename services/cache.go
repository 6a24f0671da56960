package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statsCacheKeyPrefix = "quests:stats:"
	statsGenKeyPrefix   = "quests:stats:gen:"
	statsGenTTL         = 24 * time.Hour
)

// StatsCache holds computed stats reports. Reports may be stale for at most the TTL;
// toggles invalidate the user's entry.
//
// Every Invalidate bumps the user's generation. Set only stores a report when the
// generation still matches the one returned by Get, so a report built before an
// invalidation never lands after it.
type StatsCache interface {
	// Get returns the cached report, or nil if not found, plus the current generation.
	Get(ctx context.Context, userID string) (*StatsReport, int64, error)
	Set(ctx context.Context, userID string, gen int64, report *StatsReport) error
	Invalidate(ctx context.Context, userID string) error
}

// NoopStatsCache disables caching.
type NoopStatsCache struct{}

func (NoopStatsCache) Get(context.Context, string) (*StatsReport, int64, error) { return nil, 0, nil }
func (NoopStatsCache) Set(context.Context, string, int64, *StatsReport) error   { return nil }
func (NoopStatsCache) Invalidate(context.Context, string) error                 { return nil }

// RedisStatsCache caches stats reports in Redis with a TTL.
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// setIfGenScript stores the report only while the generation is unchanged.
var setIfGenScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2]) or "0"
if gen ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

func NewRedisStatsCache(client *redis.Client, ttl time.Duration) *RedisStatsCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisStatsCache{client: client, ttl: ttl}
}

func (r *RedisStatsCache) Get(ctx context.Context, userID string) (*StatsReport, int64, error) {
	vals, err := r.client.MGet(ctx, statsCacheKeyPrefix+userID, statsGenKeyPrefix+userID).Result()
	if err != nil {
		return nil, 0, err
	}

	var gen int64
	if s, ok := vals[1].(string); ok {
		if gen, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, 0, err
		}
	}

	data, ok := vals[0].(string)
	if !ok {
		return nil, gen, nil
	}
	var report StatsReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, gen, err
	}
	return &report, gen, nil
}

func (r *RedisStatsCache) Set(ctx context.Context, userID string, gen int64, report *StatsReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	keys := []string{statsCacheKeyPrefix + userID, statsGenKeyPrefix + userID}
	return setIfGenScript.Run(ctx, r.client, keys,
		strconv.FormatInt(gen, 10), data, r.ttl.Milliseconds()).Err()
}

func (r *RedisStatsCache) Invalidate(ctx context.Context, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, statsCacheKeyPrefix+userID)
		pipe.Incr(ctx, statsGenKeyPrefix+userID)
		pipe.Expire(ctx, statsGenKeyPrefix+userID, statsGenTTL)
		return nil
	})
	return err
}
