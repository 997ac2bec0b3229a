// Package quota decides how many units to grant for one rating context.
package quota

import (
	"context"

	"github.com/free5gc/ocs/internal/balance"
	"github.com/free5gc/ocs/internal/diameter/code"
	"github.com/free5gc/ocs/internal/logger"
)

type FinalUnitAction int32

const (
	Terminate      = FinalUnitAction(code.FinalUnitActionTerminate)
	Redirect       = FinalUnitAction(code.FinalUnitActionRedirect)
	RestrictAccess = FinalUnitAction(code.FinalUnitActionRestrictAccess)
)

func (a FinalUnitAction) String() string {
	switch a {
	case Terminate:
		return "TERMINATE"
	case Redirect:
		return "REDIRECT"
	case RestrictAccess:
		return "RESTRICT_ACCESS"
	}
	return "UNKNOWN"
}

// Grant is the outcome of one reservation. ValidityTime is zero when the
// answer carries no Validity-Time.
type Grant struct {
	Units           int64
	ResultCode      uint32
	FinalUnitAction *FinalUnitAction
	ValidityTime    uint32
}

// LastGrant reports whether the gateway must apply the final unit action once
// this grant is used up.
func (g Grant) LastGrant() bool {
	return g.FinalUnitAction != nil
}

type Manager struct {
	store           balance.Store
	defaultBucket   int64
	defaultValidity uint32
}

func NewManager(store balance.Store, defaultBucket int64, defaultValidity uint32) *Manager {
	return &Manager{
		store:           store,
		defaultBucket:   defaultBucket,
		defaultValidity: defaultValidity,
	}
}

func (m *Manager) DefaultBucket() int64 {
	return m.defaultBucket
}

// Lookup fails with balance.ErrUnknownSubscriber when msisdn has no account.
func (m *Manager) Lookup(ctx context.Context, msisdn string) error {
	return m.store.Lookup(ctx, msisdn)
}

// Reserve grants up to requested units for key. A non-positive request asks for
// the default bucket and gets the default validity time.
func (m *Manager) Reserve(ctx context.Context, key balance.Key, requested int64) (Grant, error) {
	var g Grant
	units := requested
	if units <= 0 {
		units = m.defaultBucket
		g.ValidityTime = m.defaultValidity
	}

	granted, err := m.store.Reserve(ctx, key, units)
	if err != nil {
		return Grant{}, err
	}
	g.Units = granted

	switch {
	case granted == 0:
		logger.QuotaLog.Warnf("Out of quota [%s]", key)
		g.ResultCode = code.DiameterCreditLimitReached
	case granted < units:
		logger.QuotaLog.Warnf("Last granted quota [%s] %d of %d", key, granted, units)
		fua := Terminate
		g.FinalUnitAction = &fua
		g.ResultCode = code.DiameterSuccess
	default:
		logger.QuotaLog.Debugf("Granted [%s] %d", key, granted)
		g.ResultCode = code.DiameterSuccess
	}
	return g, nil
}

// Report charges used units against the reservation held for key. It is the
// single authoritative decrement for that usage.
func (m *Manager) Report(ctx context.Context, key balance.Key, used int64) error {
	logger.QuotaLog.Debugf("Used [%s] %d", key, used)
	return m.store.Debit(ctx, key, used)
}

func (m *Manager) Release(ctx context.Context, key balance.Key) error {
	return m.store.Release(ctx, key)
}
