package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/config"
)

const redisClientName = "quiz-backend"

// NewRedisClient connects to the Redis used for admin sessions, the realtime
// channel and the audit queue.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	return ConnectRedis(ctx, cfg.RedisURL, log)
}

// ConnectRedis parses url, tags the connections with a client name visible in
// CLIENT LIST and pings the server before returning.
func ConnectRedis(ctx context.Context, url string, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if opt.ClientName == "" {
		opt.ClientName = redisClientName
	}
	// Realtime subscribers come and go with admin tabs.
	opt.ConnMaxIdleTime = 5 * time.Minute

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opt.Addr, err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Str("client_name", opt.ClientName).
		Msg("Redis connected")

	return rdb, nil
}
