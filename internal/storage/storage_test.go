package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navid-fn/margincore/internal/storage"
	"github.com/navid-fn/margincore/internal/storage/storagetest"
)

func TestScalarAndList(t *testing.T) {
	ctx := context.Background()
	s, _ := storagetest.New(t)

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "v"))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, s.RPush(ctx, "q", "1"))
	require.NoError(t, s.RPush(ctx, "q", "2"))

	all, err := s.LRange(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, all)

	head, ok, err := s.LPop(ctx, "q")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", head)

	_, _, _ = s.LPop(ctx, "q")
	_, ok, err = s.LPop(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSortedSetRemovalCount(t *testing.T) {
	ctx := context.Background()
	s, _ := storagetest.New(t)

	require.NoError(t, s.ZAdd(ctx, "book", 102, "A"))
	require.NoError(t, s.ZAdd(ctx, "book", 98, "B"))

	above, err := s.ZRangeByScore(ctx, "book", storage.AtLeast(99))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, above)

	below, err := s.ZRangeByScore(ctx, "book", storage.AtMost(99))
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, below)

	n, err := s.ZRem(ctx, "book", "A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.ZRem(ctx, "book", "A")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "second removal must report nothing removed")

	card, err := s.ZCard(ctx, "book")
	require.NoError(t, err)
	assert.Equal(t, int64(1), card)
}

func TestSetsAndDel(t *testing.T) {
	ctx := context.Background()
	s, _ := storagetest.New(t)

	added, err := s.SAdd(ctx, "a", "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), added)

	added, err = s.SAdd(ctx, "a", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), added)

	_, err = s.SAdd(ctx, "b", "u3")
	require.NoError(t, err)

	union, err := s.SUnion(ctx, "a", "b", "missing")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, union)

	n, err := s.Del(ctx, "a", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	card, err := s.SCard(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), card)
}

func TestHSetAndPublish(t *testing.T) {
	ctx := context.Background()
	s, mr := storagetest.New(t)

	require.NoError(t, s.HSet(ctx, "ticker:btcusdt", map[string]string{"price": "100"}))
	assert.Equal(t, "100", mr.HGet("ticker:btcusdt", "price"))

	require.NoError(t, s.Publish(ctx, "contract:limit", "{}"))
	require.NoError(t, s.Ping(ctx))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "order:limit:bid:btcusdt", storage.LimitBookKey("bid", "btcusdt"))
	assert.Equal(t, "order:stop:ask:ethusdt", storage.StopBookKey("ask", "ethusdt"))
	assert.Equal(t, "liquidation:isolated:long:btcusdt", storage.IsolatedBookKey("long", "btcusdt"))
	assert.Equal(t, "liquidation:cross:short:btcusdt", storage.CrossThresholdKey("short", "btcusdt"))
	assert.Equal(t, "trade:btcusdt:queue", storage.TradeQueueKey("btcusdt"))
	assert.Equal(t, "trade:btcusdt", storage.LastPriceKey("btcusdt"))
	assert.Equal(t, "99.5", storage.FormatPrice(99.5))
}
