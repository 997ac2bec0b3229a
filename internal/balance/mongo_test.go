package balance_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/free5gc/ocs/internal/balance"
	"github.com/free5gc/ocs/pkg/factory"
)

func newMongoStore(t *testing.T) *balance.MongoStore {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := balance.NewMongoStore(ctx, &factory.Mongodb{Name: "OcsBalanceTest", Url: "mongodb://localhost:27017"})
	if err != nil {
		t.Skipf("mongodb not reachable: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestMongoStoreReserveDebit(t *testing.T) {
	s := newMongoStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetBalance(ctx, "4790300017", 1000))
	key := balance.Key{Subscriber: "4790300017", RatingGroup: u32(10)}

	granted, err := s.Reserve(ctx, key, 1500)
	require.NoError(t, err)
	require.Equal(t, int64(1000), granted)

	granted, err = s.Reserve(ctx, key, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), granted)

	require.NoError(t, s.Debit(ctx, key, 400))
	b, err := s.Balance(ctx, "4790300017")
	require.NoError(t, err)
	require.Equal(t, int64(0), b)

	require.NoError(t, s.Release(ctx, key))
	b, err = s.Balance(ctx, "4790300017")
	require.NoError(t, err)
	require.Equal(t, int64(600), b)

	require.True(t, errors.Is(s.Lookup(ctx, "0000000000"), balance.ErrUnknownSubscriber))
}

func TestMongoStoreConcurrentReserve(t *testing.T) {
	s := newMongoStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetBalance(ctx, "4790300018", 100))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var total int64
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(rg uint32) {
			defer wg.Done()
			granted, err := s.Reserve(ctx, balance.Key{Subscriber: "4790300018", RatingGroup: &rg}, 40)
			if err != nil {
				return
			}
			mu.Lock()
			total += granted
			mu.Unlock()
		}(uint32(i))
	}
	wg.Wait()

	b, err := s.Balance(ctx, "4790300018")
	require.NoError(t, err)
	require.Equal(t, int64(100), total+b)
}

func TestMongoStoreSeedKeepsExistingAccount(t *testing.T) {
	s := newMongoStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetBalance(ctx, "4790300019", 1000))
	key := balance.Key{Subscriber: "4790300019", RatingGroup: u32(10)}

	_, err := s.Reserve(ctx, key, 500)
	require.NoError(t, err)

	// A restarting node seeds the same subscriber again.
	require.NoError(t, s.Seed(ctx, "4790300019", 1000))
	b, err := s.Balance(ctx, "4790300019")
	require.NoError(t, err)
	require.Equal(t, int64(500), b)

	require.NoError(t, s.Debit(ctx, key, 500))
	b, err = s.Balance(ctx, "4790300019")
	require.NoError(t, err)
	require.Equal(t, int64(500), b)

	// Absent subscribers are created.
	fresh := strconv.FormatInt(time.Now().UnixNano(), 10)
	require.NoError(t, s.Seed(ctx, fresh, 70))
	b, err = s.Balance(ctx, fresh)
	require.NoError(t, err)
	require.Equal(t, int64(70), b)
}
