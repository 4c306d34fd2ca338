package moderation

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gupranay/civitai/internal/infra"
	"github.com/gupranay/civitai/internal/sqlinline"
)

// DefaultWindow is the trailing period blocked attempts are counted over.
const DefaultWindow = 24 * time.Hour

// Counter tracks blocked generation attempts per user over a sliding window.
// Entries expire individually once they fall out of the window.
type Counter interface {
	Count(ctx context.Context, userID string) (int, error)
	Increment(ctx context.Context, userID string) error
}

// RedisCounter keeps one sorted set per user, scored by attempt time in
// milliseconds. A lost increment under a race is tolerated.
type RedisCounter struct {
	client redis.Cmdable
	prefix string
	window time.Duration
	now    func() time.Time
}

// NewRedisCounter constructs a counter over client. A zero window uses DefaultWindow.
func NewRedisCounter(client redis.Cmdable, window time.Duration) *RedisCounter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisCounter{client: client, prefix: "generation:blocked:", window: window, now: time.Now}
}

func (c *RedisCounter) key(userID string) string {
	return c.prefix + userID
}

func (c *RedisCounter) cutoff() string {
	return "(" + strconv.FormatInt(c.now().Add(-c.window).UnixMilli(), 10)
}

func (c *RedisCounter) Count(ctx context.Context, userID string) (int, error) {
	n, err := c.client.ZCount(ctx, c.key(userID), c.cutoff(), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("moderation: redis count: %w", err)
	}
	return int(n), nil
}

func (c *RedisCounter) Increment(ctx context.Context, userID string) error {
	key := c.key(userID)
	now := c.now()
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(now.Add(-c.window).UnixMilli(), 10))
		pipe.Expire(ctx, key, c.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("moderation: redis increment: %w", err)
	}
	return nil
}

// SQLCounter appends every blocked attempt to the prohibited request log and
// counts rows inside the window.
type SQLCounter struct {
	sql    infra.SQLExecutor
	window time.Duration
}

// NewSQLCounter constructs a counter over the Postgres prohibited request log.
func NewSQLCounter(sql infra.SQLExecutor, window time.Duration) *SQLCounter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &SQLCounter{sql: sql, window: window}
}

func (c *SQLCounter) Count(ctx context.Context, userID string) (int, error) {
	row := c.sql.QueryRow(ctx, sqlinline.QCountProhibitedRequests, userID, c.window.Seconds())
	var count int
	if err := row.Scan(&count); err != nil {
		if infra.IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("moderation: count prohibited requests: %w", err)
	}
	return count, nil
}

func (c *SQLCounter) Increment(ctx context.Context, userID string) error {
	if _, err := c.sql.Exec(ctx, sqlinline.QInsertProhibitedRequest, userID); err != nil {
		return fmt.Errorf("moderation: record prohibited request: %w", err)
	}
	return nil
}

// EnsureSchema creates the prohibited request log when it does not exist.
func (c *SQLCounter) EnsureSchema(ctx context.Context) error {
	if _, err := c.sql.Exec(ctx, sqlinline.QCreateProhibitedRequests); err != nil {
		return fmt.Errorf("moderation: create prohibited request log: %w", err)
	}
	return nil
}

// Prune deletes log rows that have aged out of the window.
func (c *SQLCounter) Prune(ctx context.Context) (int64, error) {
	tag, err := c.sql.Exec(ctx, sqlinline.QPruneProhibitedRequests, c.window.Seconds())
	if err != nil {
		return 0, fmt.Errorf("moderation: prune prohibited requests: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MemoryCounter is a process-local counter for development and tests.
type MemoryCounter struct {
	mu       sync.Mutex
	window   time.Duration
	now      func() time.Time
	attempts map[string][]time.Time
}

// NewMemoryCounter constructs an in-process counter.
func NewMemoryCounter(window time.Duration) *MemoryCounter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryCounter{window: window, now: time.Now, attempts: make(map[string][]time.Time)}
}

// WithClock replaces the time source. Intended for tests.
func (c *MemoryCounter) WithClock(now func() time.Time) *MemoryCounter {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

func (c *MemoryCounter) Count(ctx context.Context, userID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prune(userID)), nil
}

func (c *MemoryCounter) Increment(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[userID] = append(c.prune(userID), c.now())
	return nil
}

func (c *MemoryCounter) prune(userID string) []time.Time {
	cutoff := c.now().Add(-c.window)
	kept := c.attempts[userID][:0]
	for _, at := range c.attempts[userID] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(c.attempts, userID)
		return nil
	}
	c.attempts[userID] = kept
	return kept
}

var (
	_ Counter = (*RedisCounter)(nil)
	_ Counter = (*SQLCounter)(nil)
	_ Counter = (*MemoryCounter)(nil)
)
