package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const bumpChannel = "ledger.bump"

// Cache stores rendered reports in Redis under a per-company version. Bumping
// the version orphans every report built before the bump.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

func versionKey(companyID int64) string {
	return "reports:version:" + strconv.FormatInt(companyID, 10)
}

// Version returns the company's current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context, companyID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(companyID)).Int64()
	if errors.Is(err, redis.Nil) {
		// SETNX so a concurrent bump is never overwritten.
		if err := c.client.SetNX(ctx, versionKey(companyID), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey(companyID)).Int64()
	}
	return ver, err
}

// BuildKey composes a report key carrying the company's current version.
func (c *Cache) BuildKey(ctx context.Context, companyID int64, parts ...string) (string, error) {
	base := strings.Join(append([]string{"reports", strconv.FormatInt(companyID, 10)}, parts...), ":")
	if c == nil || c.client == nil {
		return base, nil
	}
	ver, err := c.Version(ctx, companyID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", base, ver), nil
}

// FetchJSON loads a cached value into dest or populates it using loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	raw, err := c.FetchRaw(ctx, key, loader)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// FetchRaw returns the cached JSON payload under key, building and storing it
// with loader on a miss.
func (c *Cache) FetchRaw(ctx context.Context, key string, loader func(context.Context) (any, error)) ([]byte, error) {
	if loader == nil {
		return nil, errors.New("reports: cache loader required")
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, redis.Nil) {
			return nil, err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if c != nil && c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// Bump invalidates every cached report of the company and announces the new
// version on the bump channel.
func (c *Cache) Bump(ctx context.Context, companyID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, versionKey(companyID)).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, fmt.Sprintf("%d:%d", companyID, ver)).Err()
}

// Invalidate bumps the company's version. Failures are logged; stale reports
// then expire with the TTL.
func (c *Cache) Invalidate(ctx context.Context, companyID int64) {
	if err := c.Bump(ctx, companyID); err != nil {
		c.logger.Warn("report cache bump failed", slog.Int64("company_id", companyID), slog.Any("error", err))
	}
}
