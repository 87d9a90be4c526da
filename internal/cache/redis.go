package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spendtrack/spendtrack/internal/domain/expense"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

// ListCache is a best-effort cache-aside store for per-user expense lists.
// The database stays the source of truth: misses and redis errors both fall
// through to Postgres, and writers invalidate rather than update.
//
// A nil *ListCache is valid and disables caching, so callers don't need to
// branch on whether redis is configured.
type ListCache struct {
	redisdb *redis.Client
	ttl     time.Duration
	log     *slog.Logger
}

func New(cfg Config, ttl time.Duration, log *slog.Logger) *ListCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &ListCache{
		redisdb: redisdb,
		ttl:     ttl,
		log:     log,
	}
}

func listKey(userID int64) string {
	return "expenses:user:" + strconv.FormatInt(userID, 10)
}

func (c *ListCache) GetExpenses(ctx context.Context, userID int64) ([]expense.Expense, bool) {
	if c == nil {
		return nil, false
	}

	raw, err := c.redisdb.Get(ctx, listKey(userID)).Bytes()

	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WarnContext(ctx, "cache read failed", "user_id", userID, "err", err)
		}
		return nil, false
	}

	var items []expense.Expense

	if err := json.Unmarshal(raw, &items); err != nil {
		c.log.WarnContext(ctx, "cache payload unreadable, treating as miss", "user_id", userID, "err", err)
		return nil, false
	}

	return items, true
}

func (c *ListCache) SetExpenses(ctx context.Context, userID int64, items []expense.Expense) {
	if c == nil {
		return
	}

	raw, err := json.Marshal(items)

	if err != nil {
		return
	}

	if err := c.redisdb.Set(ctx, listKey(userID), raw, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "cache write failed", "user_id", userID, "err", err)
	}
}

// Invalidate drops the user's cached list after a write. A failed delete is
// logged because it can serve a stale list until the TTL runs out.
func (c *ListCache) Invalidate(ctx context.Context, userID int64) {
	if c == nil {
		return
	}

	if err := c.redisdb.Del(ctx, listKey(userID)).Err(); err != nil {
		c.log.WarnContext(ctx, "cache invalidation failed, list may be stale until TTL", "user_id", userID, "err", err)
	}
}

func (c *ListCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}

	return c.redisdb.Ping(ctx).Err()
}

func (c *ListCache) Close() error {
	if c == nil {
		return nil
	}

	return c.redisdb.Close()
}
