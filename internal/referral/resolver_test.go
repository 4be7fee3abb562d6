package referral

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/giftstream/giftstream/internal/account"
)

type mapStore struct {
	parents map[string]string
	reads   atomic.Int64
}

func (s *mapStore) Referrer(_ context.Context, id string) (string, error) {
	s.reads.Add(1)
	parent, ok := s.parents[id]
	if !ok {
		return "", account.ErrNotFound
	}
	return parent, nil
}

// linearStore builds n0 <- n1 <- ... <- n{length}; n0 has no referrer.
func linearStore(length int) *mapStore {
	s := &mapStore{parents: map[string]string{"n0": ""}}
	for i := 1; i <= length; i++ {
		s.parents[fmt.Sprintf("n%d", i)] = fmt.Sprintf("n%d", i-1)
	}
	return s
}

func TestResolveChainOrdersByLevel(t *testing.T) {
	r := NewResolver(linearStore(3), 10)

	chain, err := r.ResolveChain(context.Background(), "n3", 0)
	require.NoError(t, err)
	require.Equal(t, []Ancestor{
		{AccountID: "n2", Level: 1},
		{AccountID: "n1", Level: 2},
		{AccountID: "n0", Level: 3},
	}, chain)
}

func TestResolveChainTruncatesAtMaxDepth(t *testing.T) {
	store := linearStore(12)
	r := NewResolver(store, 10)

	chain, err := r.ResolveChain(context.Background(), "n12", 4)
	require.NoError(t, err)
	require.Len(t, chain, 4)
	require.Equal(t, "n8", chain[3].AccountID)
	require.Equal(t, 4, chain[3].Level)
	require.EqualValues(t, 4, store.reads.Load(), "one read per hop")

	chain, err = r.ResolveChain(context.Background(), "n12", 0)
	require.NoError(t, err)
	require.Len(t, chain, 10)
}

func TestResolveChainEmptyWithoutReferrer(t *testing.T) {
	r := NewResolver(linearStore(0), 10)
	chain, err := r.ResolveChain(context.Background(), "n0", 5)
	require.NoError(t, err)
	require.Empty(t, chain)
}

func TestResolveChainStopsOnCycle(t *testing.T) {
	store := &mapStore{parents: map[string]string{"a": "b", "b": "c", "c": "a"}}
	r := NewResolver(store, 10)

	chain, err := r.ResolveChain(context.Background(), "a", 0)
	require.NoError(t, err)
	require.Equal(t, []Ancestor{{AccountID: "b", Level: 1}, {AccountID: "c", Level: 2}}, chain)
}

func TestResolveChainUnknownAccount(t *testing.T) {
	r := NewResolver(linearStore(1), 10)
	_, err := r.ResolveChain(context.Background(), "ghost", 3)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestResolveChainAgainstAccountService(t *testing.T) {
	ctx := context.Background()
	accounts := account.NewService(account.NewMemoryRepository())
	root, err := accounts.Register(ctx, account.RegisterInput{DisplayName: "root"})
	require.NoError(t, err)
	mid, err := accounts.Register(ctx, account.RegisterInput{DisplayName: "mid", ReferrerID: root.ID})
	require.NoError(t, err)
	leaf, err := accounts.Register(ctx, account.RegisterInput{DisplayName: "leaf", ReferrerID: mid.ID})
	require.NoError(t, err)

	chain, err := NewResolver(accounts, 10).ResolveChain(ctx, leaf.ID, 0)
	require.NoError(t, err)
	require.Equal(t, []Ancestor{{AccountID: mid.ID, Level: 1}, {AccountID: root.ID, Level: 2}}, chain)
}

func TestCachedResolverServesFromRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := linearStore(3)
	cached := NewCachedResolver(NewResolver(store, 10), client, time.Minute, nil)
	ctx := context.Background()

	first, err := cached.ResolveChain(ctx, "n3", 0)
	require.NoError(t, err)
	reads := store.reads.Load()

	second, err := cached.ResolveChain(ctx, "n3", 0)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, reads, store.reads.Load(), "second walk should hit the cache")
	require.True(t, mr.Exists(cachePrefix+"n3:10"))
}

func TestCachedResolverFallsBackWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	cached := NewCachedResolver(NewResolver(linearStore(2), 10), client, time.Minute, nil)
	chain, err := cached.ResolveChain(context.Background(), "n2", 0)
	require.NoError(t, err)
	require.Len(t, chain, 2)
}

func TestCachedResolverDoesNotCacheErrors(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cached := NewCachedResolver(NewResolver(linearStore(1), 10), client, time.Minute, nil)
	_, err = cached.ResolveChain(context.Background(), "ghost", 0)
	require.True(t, errors.Is(err, ErrAccountNotFound))
	require.False(t, mr.Exists(cachePrefix+"ghost:10"))
}
