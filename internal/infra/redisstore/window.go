package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript purges members scored before now-window, counts the
// rest and inserts a unique member only while the count is below the limit.
//
// KEYS[1] = window key
// ARGV[1] = now (ms), ARGV[2] = window (ms), ARGV[3] = limit, ARGV[4] = member
//
// Returns {admitted (0|1), count}. count is the pre-admission count on refusal
// and the post-admission count on admission.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. (now - window))
local count = redis.call('ZCARD', key)
if count >= limit then
  return {0, count}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, count + 1}
`)

// WindowStore implements ratelimit.WindowStore on Redis sorted sets.
type WindowStore struct {
	client *Client
}

// NewWindowStore creates a window store on client.
func NewWindowStore(client *Client) *WindowStore {
	return &WindowStore{client: client}
}

// CheckAndAdmit implements ratelimit.WindowStore with one script execution.
// Script.Run sends EVALSHA and falls back to EVAL when the script is not
// cached on the server.
func (s *WindowStore) CheckAndAdmit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (bool, int, error) {
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	result, err := s.client.execute(func() (interface{}, error) {
		return slidingWindowScript.Run(ctx, s.client.rdb, []string{key},
			nowMs, window.Milliseconds(), limit, member).Int64Slice()
	})
	if err != nil {
		return false, 0, fmt.Errorf("sliding window script: %w", err)
	}

	reply := result.([]int64)
	if len(reply) != 2 {
		return false, 0, fmt.Errorf("sliding window script: unexpected reply %v", reply)
	}
	return reply[0] == 1, int(reply[1]), nil
}
