package balance

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/free5gc/ocs/internal/logger"
	"github.com/free5gc/ocs/pkg/factory"
)

type account struct {
	available int64
	reserved  map[string]int64
}

// MemoryStore backs the "local" data source.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*account
}

func NewMemoryStore(subscribers []*factory.Subscriber) *MemoryStore {
	s := &MemoryStore{accounts: make(map[string]*account)}
	for _, sub := range subscribers {
		s.SetBalance(sub.Msisdn, sub.Balance)
	}
	logger.BalanceLog.Infof("Local balance store with %d subscribers", len(subscribers))
	return s
}

// SetBalance creates or overwrites an account and drops its reservations.
func (s *MemoryStore) SetBalance(msisdn string, units int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[msisdn] = &account{available: units, reserved: make(map[string]int64)}
}

func (s *MemoryStore) account(subscriber string) (*account, error) {
	a, ok := s.accounts[subscriber]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSubscriber, "msisdn %s", subscriber)
	}
	return a, nil
}

func (s *MemoryStore) Lookup(ctx context.Context, subscriber string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.account(subscriber)
	return err
}

func (s *MemoryStore) Reserve(ctx context.Context, key Key, units int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrap(ErrUnavailable, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.account(key.Subscriber)
	if err != nil {
		return 0, err
	}
	granted := grant(a.available, units)
	a.available -= granted
	if granted > 0 {
		a.reserved[key.ReservationID()] += granted
	}
	return granted, nil
}

func (s *MemoryStore) Debit(ctx context.Context, key Key, used int64) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.account(key.Subscriber)
	if err != nil {
		return err
	}
	id := key.ReservationID()
	var left int64
	a.available, left = settle(a.available, a.reserved[id], used)
	if left > 0 {
		a.reserved[id] = left
	} else {
		delete(a.reserved, id)
	}
	return nil
}

func (s *MemoryStore) Release(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.account(key.Subscriber)
	if err != nil {
		return err
	}
	id := key.ReservationID()
	a.available += a.reserved[id]
	delete(a.reserved, id)
	return nil
}

func (s *MemoryStore) Balance(ctx context.Context, subscriber string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrap(ErrUnavailable, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.account(subscriber)
	if err != nil {
		return 0, err
	}
	return a.available, nil
}

// Reserved returns the units held for key.
func (s *MemoryStore) Reserved(key Key) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[key.Subscriber]; ok {
		return a.reserved[key.ReservationID()]
	}
	return 0
}
