package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"AppStatus/internal/agent/domain"
	"AppStatus/internal/config"
	"AppStatus/internal/shared/constants"

	"github.com/redis/go-redis/v9"
)

func NewRedisClient(cfg *config.RedisConfig, log *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(cfg.GetRedisOptions())

	ctx, cancel := context.WithTimeout(context.Background(), constants.RedisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to Redis", "error", err)
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Connected to Redis", "addr", cfg.Addr)
	return client, nil
}

type listPusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// RedisSink pushes JSON envelopes onto a redis list, newest first.
// The list is trimmed to maxLen entries when maxLen > 0.
type RedisSink struct {
	client listPusher
	key    string
	source string
	maxLen int64
}

func NewRedisSink(client listPusher, key, source string, maxLen int64) *RedisSink {
	return &RedisSink{
		client: client,
		key:    key,
		source: source,
		maxLen: maxLen,
	}
}

func (s *RedisSink) Emit(ctx context.Context, record domain.Record) error {
	data, err := json.Marshal(NewEnvelope(s.source, record))
	if err != nil {
		return fmt.Errorf("failed to marshal the record: %w", err)
	}

	slog.Debug("Pushing record to Redis",
		"key", s.key,
		"topic", record.Topic(),
		"length", len(data),
	)

	// передаем как []byte, чтобы Redis не разбирал структуру
	if err := s.client.LPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("redis LPush failed: %w", err)
	}

	if s.maxLen > 0 {
		if err := s.client.LTrim(ctx, s.key, 0, s.maxLen-1).Err(); err != nil {
			return fmt.Errorf("redis LTrim failed: %w", err)
		}
	}
	return nil
}
