package literature

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// RedisCache is the shared Cache, letting several pipeline processes reuse
// each other's literature queries.  Freshness is enforced by the key TTL,
// jittered ±10% so a batch of same-moment writes does not expire as one
// thundering herd.
type RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
	freshness time.Duration
	logger    logging.Logger
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache constructs the Redis-backed cache.
func NewRedisCache(client redis.UniversalClient, keyPrefix string, freshness time.Duration, logger logging.Logger) *RedisCache {
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
		freshness: freshness,
		logger:    logger.Named("litcache"),
	}
}

// Get implements Cache.  A backend failure is returned as an error so the
// caller can fall through to the upstream instead of failing the stage.
func (c *RedisCache) Get(ctx context.Context, key string) ([]candidate.Article, bool, error) {
	raw, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeCacheError, "literature cache read failed")
	}

	var articles []candidate.Article
	if err := json.Unmarshal(raw, &articles); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		c.logger.Warn("dropping corrupt literature cache entry", logging.String("key", key))
		return nil, false, nil
	}
	return articles, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, articles []candidate.Article) error {
	raw, err := json.Marshal(articles)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode literature cache entry")
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, raw, jitterTTL(c.freshness)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "literature cache write failed")
	}
	return nil
}

func jitterTTL(ttl time.Duration) time.Duration {
	jitter := 0.9 + 0.2*rand.Float64()
	return time.Duration(float64(ttl) * jitter)
}
