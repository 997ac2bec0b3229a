// Package balance is the account side of quota reservation: it owns each
// subscriber's remaining units and the units currently reserved per rating
// context.
package balance

//go:generate mockgen -source=store.go -destination=mock_store.go -package=balance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrUnknownSubscriber = errors.New("unknown subscriber")
	ErrUnavailable       = errors.New("balance store unavailable")
)

// Key identifies one reservation. RatingGroup and ServiceIdentifier are nil when
// the gateway did not send them.
type Key struct {
	Subscriber        string
	RatingGroup       *uint32
	ServiceIdentifier *uint32
}

// ReservationID names the reservation of k within the subscriber's account.
func (k Key) ReservationID() string {
	rg, si := "-", "-"
	if k.RatingGroup != nil {
		rg = fmt.Sprint(*k.RatingGroup)
	}
	if k.ServiceIdentifier != nil {
		si = fmt.Sprint(*k.ServiceIdentifier)
	}
	return "rg:" + rg + "/si:" + si
}

// ParseReservationID is the inverse of Key.ReservationID.
func ParseReservationID(subscriber, id string) (Key, error) {
	key := Key{Subscriber: subscriber}
	rg, si, ok := strings.Cut(id, "/")
	if !ok || !strings.HasPrefix(rg, "rg:") || !strings.HasPrefix(si, "si:") {
		return key, errors.Errorf("malformed reservation id %q", id)
	}
	parse := func(s string) (*uint32, error) {
		if s == "-" {
			return nil, nil
		}
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "reservation id %q", id)
		}
		u := uint32(v)
		return &u, nil
	}
	var err error
	if key.RatingGroup, err = parse(strings.TrimPrefix(rg, "rg:")); err != nil {
		return key, err
	}
	if key.ServiceIdentifier, err = parse(strings.TrimPrefix(si, "si:")); err != nil {
		return key, err
	}
	return key, nil
}

func (k Key) String() string {
	return k.Subscriber + "/" + k.ReservationID()
}

// Store performs every mutation atomically per subscriber.
//
// Reserve moves min(units, available) from available into the reservation of
// key and returns that amount. Debit charges the used units against the
// reservation of key; usage beyond it comes out of available, never below zero.
// Unused reserved units stay held until Release returns them.
type Store interface {
	Lookup(ctx context.Context, subscriber string) error
	Reserve(ctx context.Context, key Key, units int64) (int64, error)
	Debit(ctx context.Context, key Key, used int64) error
	Release(ctx context.Context, key Key) error
	Balance(ctx context.Context, subscriber string) (int64, error)
}

// settle is the arithmetic shared by all backends. It returns the new available
// balance and what is left in the reservation.
func settle(available, reserved, used int64) (int64, int64) {
	if used <= 0 {
		return available, reserved
	}
	if used <= reserved {
		return available, reserved - used
	}
	available -= used - reserved
	if available < 0 {
		available = 0
	}
	return available, 0
}

func grant(available, units int64) int64 {
	switch {
	case units <= 0 || available <= 0:
		return 0
	case units > available:
		return available
	default:
		return units
	}
}
