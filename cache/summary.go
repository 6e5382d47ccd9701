// Package cache holds the read-through cache for yearly leave summaries.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

const (
	SummaryKeyPrefix = "leave:summary:"
	DefaultTTL       = 24 * time.Hour
)

// PolicyNamespace identifies the rules a summary was computed under. A
// restart with other quotas or another mode reads a different keyspace.
func PolicyNamespace(p leave.Policy) string {
	mode, err := leave.ParseMode(string(p.Mode))
	if err != nil {
		mode = p.Mode
	}
	id := p.ID
	if id == "" {
		id = "default"
	}
	return fmt.Sprintf("%s:%s:%d:%d", id, mode, p.MonthlyQuota, p.YearlyQuota)
}

// SummaryKey returns the redis key for a member-year summary under namespace.
func SummaryKey(namespace string, memberID generic.MemberID, year int) string {
	return fmt.Sprintf("%s%s:%s:%d", SummaryKeyPrefix, namespace, memberID, year)
}

// RedisSummaryCache stores summaries as JSON with a TTL.
type RedisSummaryCache struct {
	rdb       redis.Cmdable
	ttl       time.Duration
	namespace string
}

// NewRedisSummaryCache wraps rdb for summaries computed under policy. A
// non-positive ttl selects DefaultTTL.
func NewRedisSummaryCache(rdb redis.Cmdable, ttl time.Duration, policy leave.Policy) *RedisSummaryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisSummaryCache{rdb: rdb, ttl: ttl, namespace: PolicyNamespace(policy)}
}

func (c *RedisSummaryCache) key(memberID generic.MemberID, year int) string {
	return SummaryKey(c.namespace, memberID, year)
}

// Get returns (summary, true, nil) on a hit and (zero, false, nil) on a miss.
func (c *RedisSummaryCache) Get(ctx context.Context, memberID generic.MemberID, year int) (leave.YearlySummary, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(memberID, year)).Bytes()
	if errors.Is(err, redis.Nil) {
		return leave.YearlySummary{}, false, nil
	}
	if err != nil {
		return leave.YearlySummary{}, false, err
	}

	var summary leave.YearlySummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		// Unreadable entries count as a miss; the next Set overwrites them.
		return leave.YearlySummary{}, false, nil
	}
	return summary, true, nil
}

func (c *RedisSummaryCache) Set(ctx context.Context, summary leave.YearlySummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(summary.MemberID, summary.Year), payload, c.ttl).Err()
}

func (c *RedisSummaryCache) Invalidate(ctx context.Context, memberID generic.MemberID, year int) error {
	return c.rdb.Del(ctx, c.key(memberID, year)).Err()
}

// NoopSummaryCache never hits.
type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(context.Context, generic.MemberID, int) (leave.YearlySummary, bool, error) {
	return leave.YearlySummary{}, false, nil
}

func (NoopSummaryCache) Set(context.Context, leave.YearlySummary) error { return nil }

func (NoopSummaryCache) Invalidate(context.Context, generic.MemberID, int) error { return nil }
