// Package ratelimit throttles per-user actions with Redis counters using
// the INCR + EXPIRE fixed-window scheme. A Redis outage fails open so
// chat traffic is never blocked by the limiter's own backend.
package ratelimit

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule defines one throttling policy: a Redis key prefix, the maximum
// number of actions in the window, and the window duration.
type Rule struct {
	Key    string
	Limit  int
	Window time.Duration
}

var (
	// RuleMessage allows 5 forwarded messages per 10 seconds per user.
	RuleMessage = Rule{Key: "rl:msg:", Limit: 5, Window: 10 * time.Second}

	// RuleJoin allows 10 queue joins per minute per user, which also bounds
	// skip churn since every skip re-enters the queue.
	RuleJoin = Rule{Key: "rl:join:", Limit: 10, Window: time.Minute}
)

// Limiter checks rules against Redis.
type Limiter struct {
	rdb *redis.Client
}

// NewLimiter creates a Limiter backed by the given Redis client.
func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb}
}

// Allow increments the counter for userID under the rule and reports
// whether the action is within the limit. The first increment in a
// window arms the key's expiry. Fails open on Redis errors.
func (l *Limiter) Allow(ctx context.Context, userID string, rule Rule) bool {
	key := rule.Key + userID

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("[ratelimit] INCR %s: %v (failing open)", key, err)
		return true
	}

	if count == 1 {
		if err := l.rdb.Expire(ctx, key, rule.Window).Err(); err != nil {
			log.Printf("[ratelimit] EXPIRE %s: %v (failing open)", key, err)
			// The counter has no TTL now; drop it so the user is not
			// throttled forever by a stuck key.
			l.rdb.Del(ctx, key)
			return true
		}
	}

	return int(count) <= rule.Limit
}

// Remaining returns how many actions the user has left in the current
// window. A missing key means the full limit. Fails open on errors.
func (l *Limiter) Remaining(ctx context.Context, userID string, rule Rule) int {
	key := rule.Key + userID

	count, err := l.rdb.Get(ctx, key).Int()
	if err == redis.Nil {
		return rule.Limit
	}
	if err != nil {
		log.Printf("[ratelimit] GET %s: %v (failing open)", key, err)
		return rule.Limit
	}

	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
