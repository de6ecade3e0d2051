package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chatrelay/internal/models"
	"chatrelay/internal/redis"
)

// RedisStore persists each session history as one JSON blob. Keys carry no
// TTL: sessions never expire server-side.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisStore{client: client}, nil
}

func historyKey(sessionID string) string {
	return "history:" + sessionID
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) ([]models.Message, error) {
	raw, err := s.client.Get(ctx, historyKey(sessionID))
	if err != nil {
		if err == redis.ErrCacheMiss {
			return []models.Message{}, nil
		}
		return nil, fmt.Errorf("load history %s: %w", sessionID, err)
	}
	var messages []models.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", sessionID, err)
	}
	return messages, nil
}

func (s *RedisStore) Set(ctx context.Context, sessionID string, messages []models.Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode history %s: %w", sessionID, err)
	}
	if err := s.client.Set(ctx, historyKey(sessionID), data, 0); err != nil {
		return fmt.Errorf("store history %s: %w", sessionID, err)
	}
	return nil
}
