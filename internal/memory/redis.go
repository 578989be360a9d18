package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ragdb/internal/domain"
	"ragdb/internal/tokens"
)

// RedisOptions configures the Redis-backed memory.
type RedisOptions struct {
	Addr       string
	Password   string
	DB         int
	Prefix     string        // key prefix, default "ragdb:chat:"
	TTL        time.Duration // idle expiry of a session, 0 keeps it forever
	TokenLimit int
}

// Redis stores each session as a list of JSON-encoded messages.
type Redis struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	limit   int
	counter tokens.Counter
}

func NewRedis(opts RedisOptions, counter tokens.Counter) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "ragdb:chat:"
	}
	if counter == nil {
		counter = tokens.WordCounter{}
	}
	return &Redis{client: client, prefix: prefix, ttl: opts.TTL, limit: opts.TokenLimit, counter: counter}
}

func (r *Redis) key(session string) string {
	return r.prefix + session
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Append(ctx context.Context, session string, messages ...domain.Message) error {
	if len(messages) == 0 {
		return nil
	}
	values := make([]any, len(messages))
	for i, m := range messages {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		values[i] = data
	}
	key := r.key(session)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append chat history: %w", err)
	}
	return nil
}

func (r *Redis) History(ctx context.Context, session string) ([]domain.Message, error) {
	raw, err := r.client.LRange(ctx, r.key(session), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	messages := make([]domain.Message, 0, len(raw))
	for _, s := range raw {
		var m domain.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(messages, m)
	}
	return fit(messages, r.limit, r.counter), nil
}

func (r *Redis) Reset(ctx context.Context, session string) error {
	if err := r.client.Del(ctx, r.key(session)).Err(); err != nil {
		return fmt.Errorf("failed to reset chat history: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
