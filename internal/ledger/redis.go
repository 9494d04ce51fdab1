package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "cryptosim:portfolio:"

// RedisRepository stores the portfolio document under a single Redis key.
type RedisRepository struct {
	client *redis.Client
	key    string
}

// NewRedisRepository builds a repository for the given portfolio key.
func NewRedisRepository(client *redis.Client, key string) *RedisRepository {
	if key == "" {
		key = DefaultPortfolioKey
	}
	return &RedisRepository{client: client, key: redisKeyPrefix + key}
}

// Load fetches and decodes the document.
func (r *RedisRepository) Load(ctx context.Context) (Portfolio, error) {
	doc, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Portfolio{}, ErrNotFound
		}
		return Portfolio{}, fmt.Errorf("redis get portfolio: %w", err)
	}
	return Decode(doc)
}

// Save writes the document without expiry.
func (r *RedisRepository) Save(ctx context.Context, p Portfolio) error {
	doc, err := Encode(p)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, doc, 0).Err(); err != nil {
		return fmt.Errorf("redis set portfolio: %w", err)
	}
	return nil
}
