// Package prefs persists user settings and usage stats in Redis.
// Persistence is best-effort and write-behind: the in-memory session and
// engine state stay authoritative, writes happen on background goroutines
// with a short timeout, and failures are logged and swallowed.
package prefs

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for per-user hashes.
	KeyPrefix = "prefs:"

	// writeTimeout bounds each background write so a slow Redis can never
	// back up the caller.
	writeTimeout = 2 * time.Second
)

// Profile holds the user's declared settings.
type Profile struct {
	Gender     string
	Preference string
	Language   string
	Age        int
	ShowTyping bool
}

// Stats holds the user's lifetime usage counters.
type Stats struct {
	Chats       int64
	Messages    int64
	ChatSeconds int64
}

// Store reads and writes user settings/stats in Redis.
type Store struct {
	rdb *redis.Client
}

// NewStore creates a Store backed by the given Redis client.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// SaveProfile persists the user's settings asynchronously. It returns
// immediately; a failed write is logged, never surfaced.
func (s *Store) SaveProfile(userID string, p Profile) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		err := s.rdb.HSet(ctx, KeyPrefix+userID, map[string]interface{}{
			"gender":      p.Gender,
			"preference":  p.Preference,
			"language":    p.Language,
			"age":         p.Age,
			"show_typing": strconv.FormatBool(p.ShowTyping),
		}).Err()
		if err != nil {
			log.Printf("[prefs] save profile for %s: %v", userID, err)
		}
	}()
}

// Load fetches the user's settings and stats. Returns nil when the user
// has never been persisted.
func (s *Store) Load(ctx context.Context, userID string) (*Profile, *Stats, error) {
	result, err := s.rdb.HGetAll(ctx, KeyPrefix+userID).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("prefs: load %s: %w", userID, err)
	}
	if len(result) == 0 {
		return nil, nil, nil
	}

	age, _ := strconv.Atoi(result["age"])
	showTyping := result["show_typing"] != "false"
	chats, _ := strconv.ParseInt(result["chats"], 10, 64)
	messages, _ := strconv.ParseInt(result["messages"], 10, 64)
	chatSeconds, _ := strconv.ParseInt(result["chat_seconds"], 10, 64)

	profile := &Profile{
		Gender:     result["gender"],
		Preference: result["preference"],
		Language:   result["language"],
		Age:        age,
		ShowTyping: showTyping,
	}
	stats := &Stats{Chats: chats, Messages: messages, ChatSeconds: chatSeconds}
	return profile, stats, nil
}

// ChatStarted increments the user's chat counter. Fire-and-forget; part
// of the engine's StatsRecorder contract.
func (s *Store) ChatStarted(userID string) {
	s.incr(userID, "chats", 1)
}

// ChatEnded adds the chat duration to the user's total.
func (s *Store) ChatEnded(userID string, duration time.Duration) {
	secs := int64(duration.Seconds())
	if secs < 0 {
		secs = 0
	}
	s.incr(userID, "chat_seconds", secs)
}

// MessageForwarded increments the user's message counter.
func (s *Store) MessageForwarded(userID string) {
	s.incr(userID, "messages", 1)
}

func (s *Store) incr(userID, field string, by int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := s.rdb.HIncrBy(ctx, KeyPrefix+userID, field, by).Err(); err != nil {
			log.Printf("[prefs] incr %s.%s: %v", userID, field, err)
		}
	}()
}
