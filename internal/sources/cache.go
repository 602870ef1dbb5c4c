package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Cikle/Alpatrader/internal/signal"
)

// Cache is a redis-backed store for the latest record batch per source so
// a failed upstream fetch can fall back to recent data instead of going
// dark. Cache failures are never fatal to a fetch.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCache connects a cache to the given redis instance.
func NewCache(addr, password string, db int, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &Cache{client: client, ttl: ttl, log: log}
}

func cacheKey(kind signal.SourceKind) string {
	return fmt.Sprintf("alpatrader:signals:%s", kind)
}

// Save stores the batch for the source, replacing any previous batch.
func (c *Cache) Save(ctx context.Context, kind signal.SourceKind, records []signal.Record) {
	if c == nil || len(records) == 0 {
		return
	}
	payload, err := json.Marshal(records)
	if err != nil {
		c.log.Warn().Err(err).Str("source", string(kind)).Msg("encode cache batch")
		return
	}
	if err := c.client.Set(ctx, cacheKey(kind), payload, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("source", string(kind)).Msg("write signal cache")
	}
}

// Recent returns the last stored batch for the source, or nil when the
// cache is cold or unreachable.
func (c *Cache) Recent(ctx context.Context, kind signal.SourceKind) []signal.Record {
	if c == nil {
		return nil
	}
	payload, err := c.client.Get(ctx, cacheKey(kind)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("source", string(kind)).Msg("read signal cache")
		}
		return nil
	}
	var records []signal.Record
	if err := json.Unmarshal(payload, &records); err != nil {
		c.log.Warn().Err(err).Str("source", string(kind)).Msg("decode cache batch")
		return nil
	}
	return records
}

// Close releases the redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
