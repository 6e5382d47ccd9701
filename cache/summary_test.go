package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/cache"
	"github.com/warp/leave-ledger/leave"
)

func sampleSummary() leave.YearlySummary {
	return leave.YearlySummary{
		MemberID:     "m-1",
		Year:         2024,
		Mode:         leave.ModeMonthlyCarryForward,
		AsOf:         "2024-03-15",
		TotalTaken:   3,
		ValidLeaves:  2,
		LOPDays:      1,
		Remaining:    10,
		CarryForward: 0,
		Months: []leave.MonthSummary{
			{Month: time.January, MonthlyQuota: 1, Available: 1, Unused: 1},
		},
	}
}

var defaultKey = cache.SummaryKey(cache.PolicyNamespace(leave.DefaultPolicy()), "m-1", 2024)

func TestSummaryKey(t *testing.T) {
	assert.Equal(t, "leave:summary:default:monthly_carry_forward:1:12:m-1:2024", defaultKey)
}

func TestPolicyNamespace_SeparatesPolicies(t *testing.T) {
	// GIVEN the default policy and variants a restart could switch to
	base := leave.DefaultPolicy()
	twoPerMonth := base
	twoPerMonth.MonthlyQuota = 2
	counter := base
	counter.Mode = leave.ModeYearlyCounter
	unnamed := base
	unnamed.ID = ""
	unnamed.Mode = ""

	// THEN every rule change moves to another keyspace
	ns := cache.PolicyNamespace(base)
	assert.NotEqual(t, ns, cache.PolicyNamespace(twoPerMonth))
	assert.NotEqual(t, ns, cache.PolicyNamespace(counter))

	// AND an empty mode or id means the defaults
	assert.Equal(t, ns, cache.PolicyNamespace(unnamed))
}

func TestRedisSummaryCache_PolicyChangeMisses(t *testing.T) {
	// GIVEN a summary cached under the default policy
	rdb, mock := redismock.NewClientMock()
	changed := leave.DefaultPolicy()
	changed.MonthlyQuota = 2
	c := cache.NewRedisSummaryCache(rdb, time.Hour, changed)

	// WHEN a cache built for another quota reads it
	mock.ExpectGet(cache.SummaryKey(cache.PolicyNamespace(changed), "m-1", 2024)).RedisNil()
	_, ok, err := c.Get(context.Background(), "m-1", 2024)

	// THEN it looks under its own key and misses
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSummaryCache_Get(t *testing.T) {
	ctx := context.Background()
	key := defaultKey

	t.Run("hit decodes the stored summary", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		c := cache.NewRedisSummaryCache(rdb, time.Hour, leave.DefaultPolicy())

		payload, err := json.Marshal(sampleSummary())
		require.NoError(t, err)
		mock.ExpectGet(key).SetVal(string(payload))

		got, ok, err := c.Get(ctx, "m-1", 2024)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, sampleSummary(), got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss on redis nil", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		c := cache.NewRedisSummaryCache(rdb, time.Hour, leave.DefaultPolicy())
		mock.ExpectGet(key).RedisNil()

		_, ok, err := c.Get(ctx, "m-1", 2024)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("garbage is a miss", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		c := cache.NewRedisSummaryCache(rdb, time.Hour, leave.DefaultPolicy())
		mock.ExpectGet(key).SetVal("not json")

		_, ok, err := c.Get(ctx, "m-1", 2024)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("transport error is returned", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		c := cache.NewRedisSummaryCache(rdb, time.Hour, leave.DefaultPolicy())
		mock.ExpectGet(key).SetErr(errors.New("connection refused"))

		_, ok, err := c.Get(ctx, "m-1", 2024)
		assert.Error(t, err)
		assert.False(t, ok)
	})
}

func TestRedisSummaryCache_SetAndInvalidate(t *testing.T) {
	ctx := context.Background()
	rdb, mock := redismock.NewClientMock()
	c := cache.NewRedisSummaryCache(rdb, 0, leave.DefaultPolicy())

	summary := sampleSummary()
	payload, err := json.Marshal(summary)
	require.NoError(t, err)

	mock.ExpectSet(defaultKey, payload, cache.DefaultTTL).SetVal("OK")
	mock.ExpectDel(defaultKey).SetVal(1)

	require.NoError(t, c.Set(ctx, summary))
	require.NoError(t, c.Invalidate(ctx, "m-1", 2024))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoopSummaryCache(t *testing.T) {
	var c leave.SummaryCache = cache.NoopSummaryCache{}
	_, ok, err := c.Get(context.Background(), "m-1", 2024)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Set(context.Background(), sampleSummary()))
	assert.NoError(t, c.Invalidate(context.Background(), "m-1", 2024))
}
