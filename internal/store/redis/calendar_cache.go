package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"calendra/backend/internal/domain"
)

const (
	keyPrefix  = "calendra:calendar:"
	DefaultTTL = 5 * time.Minute
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

// Open connects and pings the server.
func Open(ctx context.Context, opts Options) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// CalendarCache stores JSON snapshots of calendars with a fixed TTL.
type CalendarCache struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewCalendarCache(rdb *goredis.Client, ttl time.Duration) *CalendarCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CalendarCache{rdb: rdb, ttl: ttl}
}

func cacheKey(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func (c *CalendarCache) Get(ctx context.Context, id uuid.UUID) (*domain.Calendar, bool, error) {
	b, err := c.rdb.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	cal, err := decodeSnapshot(b)
	if err != nil {
		return nil, false, err
	}
	return cal, true, nil
}

func (c *CalendarCache) Set(ctx context.Context, cal *domain.Calendar) error {
	b, err := json.Marshal(cal)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKey(cal.ID), b, c.ttl).Err()
}

func (c *CalendarCache) Delete(ctx context.Context, id uuid.UUID) error {
	return c.rdb.Del(ctx, cacheKey(id)).Err()
}

func decodeSnapshot(b []byte) (*domain.Calendar, error) {
	var cal domain.Calendar
	if err := json.Unmarshal(b, &cal); err != nil {
		return nil, fmt.Errorf("decode calendar snapshot: %w", err)
	}
	if err := cal.Validate(); err != nil {
		return nil, fmt.Errorf("decode calendar snapshot: %w", err)
	}
	return &cal, nil
}
