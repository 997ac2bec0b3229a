package balance_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/free5gc/ocs/internal/balance"
	"github.com/free5gc/ocs/pkg/factory"
)

func u32(v uint32) *uint32 { return &v }

func TestMemoryStoreReserveAndSettle(t *testing.T) {
	ctx := context.Background()
	s := balance.NewMemoryStore([]*factory.Subscriber{{Msisdn: "4790300123", Balance: 2147483648}})
	key := balance.Key{Subscriber: "4790300123", RatingGroup: u32(10), ServiceIdentifier: u32(1)}

	granted, err := s.Reserve(ctx, key, 500)
	require.NoError(t, err)
	require.Equal(t, int64(500), granted)
	require.Equal(t, int64(500), s.Reserved(key))
	b, _ := s.Balance(ctx, "4790300123")
	require.Equal(t, int64(2147483148), b)

	require.NoError(t, s.Debit(ctx, key, 500))
	granted, err = s.Reserve(ctx, key, 500)
	require.NoError(t, err)
	require.Equal(t, int64(500), granted)
	b, _ = s.Balance(ctx, "4790300123")
	require.Equal(t, int64(2147483648-1000), b)

	require.NoError(t, s.Debit(ctx, key, 500))
	require.NoError(t, s.Release(ctx, key))
	b, _ = s.Balance(ctx, "4790300123")
	require.Equal(t, int64(2147483648-1000), b)
	require.Equal(t, int64(0), s.Reserved(key))
}

func TestMemoryStorePartialAndEmpty(t *testing.T) {
	ctx := context.Background()
	s := balance.NewMemoryStore([]*factory.Subscriber{{Msisdn: "1", Balance: 300}})
	key := balance.Key{Subscriber: "1"}

	granted, err := s.Reserve(ctx, key, 800)
	require.NoError(t, err)
	require.Equal(t, int64(300), granted)

	granted, err = s.Reserve(ctx, key, 800)
	require.NoError(t, err)
	require.Equal(t, int64(0), granted)

	// Unused units stay reserved until released.
	require.NoError(t, s.Debit(ctx, key, 100))
	b, _ := s.Balance(ctx, "1")
	require.Equal(t, int64(0), b)
	require.Equal(t, int64(200), s.Reserved(key))
	require.NoError(t, s.Release(ctx, key))
	b, _ = s.Balance(ctx, "1")
	require.Equal(t, int64(200), b)

	// Overuse never drives the balance negative.
	_, err = s.Reserve(ctx, key, 200)
	require.NoError(t, err)
	require.NoError(t, s.Debit(ctx, key, 1000))
	b, _ = s.Balance(ctx, "1")
	require.Equal(t, int64(0), b)
}

func TestMemoryStoreUnknownSubscriber(t *testing.T) {
	ctx := context.Background()
	s := balance.NewMemoryStore(nil)

	require.True(t, errors.Is(s.Lookup(ctx, "999"), balance.ErrUnknownSubscriber))
	_, err := s.Reserve(ctx, balance.Key{Subscriber: "999"}, 1)
	require.True(t, errors.Is(err, balance.ErrUnknownSubscriber))
}

func TestKeyReservationID(t *testing.T) {
	require.Equal(t, "rg:-/si:-", balance.Key{Subscriber: "1"}.ReservationID())
	require.Equal(t, "rg:10/si:-", balance.Key{Subscriber: "1", RatingGroup: u32(10)}.ReservationID())
	require.Equal(t, "1/rg:10/si:2",
		balance.Key{Subscriber: "1", RatingGroup: u32(10), ServiceIdentifier: u32(2)}.String())
}

func TestParseReservationID(t *testing.T) {
	key := balance.Key{Subscriber: "1", RatingGroup: u32(14), ServiceIdentifier: u32(4)}
	parsed, err := balance.ParseReservationID("1", key.ReservationID())
	require.NoError(t, err)
	require.Equal(t, key, parsed)

	parsed, err = balance.ParseReservationID("1", "rg:-/si:-")
	require.NoError(t, err)
	require.Nil(t, parsed.RatingGroup)
	require.Nil(t, parsed.ServiceIdentifier)

	_, err = balance.ParseReservationID("1", "bogus")
	require.Error(t, err)
}

func TestMemoryStoreDebitOnReport(t *testing.T) {
	ctx := context.Background()
	s := balance.NewMemoryStore([]*factory.Subscriber{{Msisdn: "1", Balance: 100000}})
	key := balance.Key{Subscriber: "1", RatingGroup: u32(10), ServiceIdentifier: u32(1)}

	_, err := s.Reserve(ctx, key, 500)
	require.NoError(t, err)

	// Reporting less than granted does not hand the remainder back.
	require.NoError(t, s.Debit(ctx, key, 100))
	_, err = s.Reserve(ctx, key, 500)
	require.NoError(t, err)
	b, _ := s.Balance(ctx, "1")
	require.Equal(t, int64(99000), b)
	require.Equal(t, int64(900), s.Reserved(key))

	require.NoError(t, s.Debit(ctx, key, 300))
	require.NoError(t, s.Release(ctx, key))
	b, _ = s.Balance(ctx, "1")
	require.Equal(t, int64(100000-400), b)
	require.Equal(t, int64(0), s.Reserved(key))
}
