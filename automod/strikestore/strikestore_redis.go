package strikestore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

var redisStrikePrefix string = "warden/strikes/"

// Stores each record as a redis hash with "count" and "reason" fields.
type RedisStrikeStore struct {
	Client *redis.Client
}

var _ StrikeStore = (*RedisStrikeStore)(nil)

func NewRedisStrikeStore(client *redis.Client) *RedisStrikeStore {
	return &RedisStrikeStore{Client: client}
}

func redisStrikeKey(chatID, userID int64) string {
	return fmt.Sprintf("%s%d/%d", redisStrikePrefix, chatID, userID)
}

func (s *RedisStrikeStore) RecordStrike(ctx context.Context, chatID, userID int64, reason string) (int, error) {
	key := redisStrikeKey(chatID, userID)

	// increment and reason update in a single MULTI/EXEC round-trip
	var incr *redis.IntCmd
	_, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, key, "count", 1)
		if reason != "" {
			pipe.HSet(ctx, key, "reason", reason)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (s *RedisStrikeStore) ResetStrikes(ctx context.Context, chatID, userID int64) error {
	key := redisStrikeKey(chatID, userID)
	exists, err := s.Client.Exists(ctx, key).Result()
	if err != nil || exists == 0 {
		return err
	}
	return s.Client.HSet(ctx, key, "count", 0).Err()
}

func (s *RedisStrikeStore) GetStrikes(ctx context.Context, chatID, userID int64) (int, error) {
	c, err := s.Client.HGet(ctx, redisStrikeKey(chatID, userID), "count").Int()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return c, nil
}

func (s *RedisStrikeStore) GetRecord(ctx context.Context, chatID, userID int64) (Record, error) {
	rec := Record{ChatID: chatID, UserID: userID}
	vals, err := s.Client.HGetAll(ctx, redisStrikeKey(chatID, userID)).Result()
	if err == redis.Nil {
		return rec, nil
	} else if err != nil {
		return rec, err
	}
	if raw, ok := vals["count"]; ok {
		c, err := strconv.Atoi(raw)
		if err != nil {
			return rec, fmt.Errorf("corrupt strike count %q: %w", raw, err)
		}
		rec.Count = c
	}
	rec.LastReason = vals["reason"]
	return rec, nil
}
