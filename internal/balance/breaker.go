package balance

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/free5gc/ocs/internal/logger"
	"github.com/free5gc/ocs/pkg/factory"
)

const breakerName = "balance-store"

// Breaker fails fast with ErrUnavailable while the wrapped store keeps failing.
// Unknown subscribers are answers, not failures, and do not trip it.
type Breaker struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next Store, cfg *factory.Breaker) *Breaker {
	settings := gobreaker.Settings{Name: breakerName}
	threshold := uint32(5)
	if cfg != nil {
		settings.MaxRequests = cfg.MaxRequests
		settings.Interval = cfg.Interval
		settings.Timeout = cfg.Timeout
		if cfg.FailureThreshold > 0 {
			threshold = cfg.FailureThreshold
		}
	}
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= threshold
	}
	settings.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrUnknownSubscriber)
	}
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		switch to {
		case gobreaker.StateOpen:
			logger.BalanceLog.Warnf("Circuit breaker [%s] opened", name)
		default:
			logger.BalanceLog.Infof("Circuit breaker [%s] %s -> %s", name, from, to)
		}
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *Breaker) execute(fn func() (interface{}, error)) (interface{}, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	return v, err
}

func (b *Breaker) Lookup(ctx context.Context, subscriber string) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.next.Lookup(ctx, subscriber)
	})
	return err
}

func (b *Breaker) Reserve(ctx context.Context, key Key, units int64) (int64, error) {
	v, err := b.execute(func() (interface{}, error) {
		return b.next.Reserve(ctx, key, units)
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (b *Breaker) Debit(ctx context.Context, key Key, used int64) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.next.Debit(ctx, key, used)
	})
	return err
}

func (b *Breaker) Release(ctx context.Context, key Key) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.next.Release(ctx, key)
	})
	return err
}

func (b *Breaker) Balance(ctx context.Context, subscriber string) (int64, error) {
	v, err := b.execute(func() (interface{}, error) {
		return b.next.Balance(ctx, subscriber)
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Ping checks the wrapped store directly so health checks see a recovered
// backend before the breaker closes.
func (b *Breaker) Ping(ctx context.Context) error {
	if p, ok := b.next.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
