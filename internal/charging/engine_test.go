package charging_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fiorix/go-diameter/diam"
	"github.com/fiorix/go-diameter/diam/dict"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/free5gc/ocs/internal/balance"
	"github.com/free5gc/ocs/internal/ccasession"
	"github.com/free5gc/ocs/internal/charging"
	"github.com/free5gc/ocs/internal/diameter/avps"
	"github.com/free5gc/ocs/internal/diameter/code"
	"github.com/free5gc/ocs/internal/quota"
	"github.com/free5gc/ocs/internal/sessionstore"
	"github.com/free5gc/ocs/pkg/factory"
)

const msisdn = "4790300123"

type fixture struct {
	engine   *charging.Engine
	sessions sessionstore.Store
	balances *balance.MemoryStore
}

func newFixture(t *testing.T, units int64) *fixture {
	t.Helper()
	return newFixtureWithStore(t, units, sessionstore.NewMemoryStore(time.Hour))
}

func newFixtureWithStore(t *testing.T, units int64, sessions sessionstore.Store) *fixture {
	t.Helper()
	balances := balance.NewMemoryStore([]*factory.Subscriber{{Msisdn: msisdn, Balance: units}})
	manager := quota.NewManager(balances, 40000000, 86400)
	return &fixture{
		engine:   charging.NewEngine(sessions, manager, time.Second),
		sessions: sessions,
		balances: balances,
	}
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	b, err := f.balances.Balance(context.Background(), msisdn)
	require.NoError(t, err)
	return b
}

func (f *fixture) state(t *testing.T, sessionID string) (ccasession.State, error) {
	t.Helper()
	return ccasession.New(sessionID, f.sessions, dict.Default).State(context.Background())
}

func u32(v uint32) *uint32 { return &v }

func mscc(si, rg uint32, requested, used int64) charging.RatingContext {
	return charging.RatingContext{
		ServiceIdentifier: u32(si),
		RatingGroup:       u32(rg),
		RequestedUnits:    requested,
		UsedUnits:         used,
	}
}

// raw serializes the parts of a CCR the engine keeps in the session buffer.
func raw(t *testing.T, sessionID string, typ charging.RequestType, num uint32) []byte {
	t.Helper()
	m := diam.NewRequest(code.CreditControl, code.CreditControlApplication, dict.Default)
	m.AddAVP(avps.UTF8String(code.SessionId, sessionID))
	m.AddAVP(avps.Enumerated(code.CCRequestType, int32(typ)))
	m.AddAVP(avps.Unsigned32(code.CCRequestNumber, num))
	b, err := m.Serialize()
	require.NoError(t, err)
	return b
}

func ccr(t *testing.T, sessionID string, typ charging.RequestType, num uint32,
	contexts ...charging.RatingContext,
) *charging.Request {
	return &charging.Request{
		SessionID:     sessionID,
		OriginHost:    "pgw.test",
		OriginRealm:   "test",
		RequestType:   typ,
		RequestNumber: u32(num),
		Subscriber:    charging.Subscriber{MSISDN: msisdn},
		Contexts:      contexts,
		Raw:           raw(t, sessionID, typ, num),
	}
}

func TestMultipleRatingGroups(t *testing.T) {
	f := newFixture(t, 100000)
	ctx := context.Background()

	ans, err := f.engine.Process(ctx, ccr(t, "s1", charging.Initial, 0,
		mscc(1, 10, 5000, 0), mscc(2, 12, 5000, 0), mscc(4, 14, 5000, 0)))
	require.NoError(t, err)
	require.Equal(t, code.DiameterSuccess, ans.ResultCode)
	require.Len(t, ans.Results, 3)

	expected := [][2]uint32{{1, 10}, {2, 12}, {4, 14}}
	for i, r := range ans.Results {
		require.Equal(t, expected[i][0], *r.ServiceIdentifier)
		require.Equal(t, expected[i][1], *r.RatingGroup)
		require.Equal(t, int64(5000), r.GrantedUnits)
		require.Equal(t, code.DiameterSuccess, r.ResultCode)
		require.Nil(t, r.FinalUnitAction)
	}
	require.Equal(t, int64(85000), f.balance(t))

	state, err := f.state(t, "s1")
	require.NoError(t, err)
	require.Equal(t, ccasession.Open, state)
}

func TestInitUpdateTerminate(t *testing.T) {
	const start int64 = 2147483648
	f := newFixture(t, start)
	ctx := context.Background()

	ans, err := f.engine.Process(ctx, ccr(t, "s2", charging.Initial, 0, mscc(1, 10, 500, 0)))
	require.NoError(t, err)
	require.Equal(t, int64(500), ans.Results[0].GrantedUnits)
	require.Equal(t, start-500, f.balance(t))

	ans, err = f.engine.Process(ctx, ccr(t, "s2", charging.Update, 1, mscc(1, 10, 500, 500)))
	require.NoError(t, err)
	require.Equal(t, code.DiameterSuccess, ans.ResultCode)
	require.Equal(t, int64(500), ans.Results[0].GrantedUnits)
	require.Equal(t, start-1000, f.balance(t))

	ans, err = f.engine.Process(ctx, ccr(t, "s2", charging.Termination, 2, mscc(1, 10, charging.NoUnits, 500)))
	require.NoError(t, err)
	require.Equal(t, code.DiameterSuccess, ans.ResultCode)
	require.Equal(t, int64(0), ans.Results[0].GrantedUnits)
	require.Equal(t, start-1000, f.balance(t))

	exists, err := f.sessions.Exists(ctx, "s2")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestNoCreditFinalUnit(t *testing.T) {
	const b int64 = 10000
	const bucket int64 = 500
	f := newFixture(t, b)
	ctx := context.Background()

	ans, err := f.engine.Process(ctx, ccr(t, "s3", charging.Initial, 0, mscc(1, 10, b+bucket, 0)))
	require.NoError(t, err)
	require.Equal(t, code.DiameterSuccess, ans.ResultCode)
	r := ans.Results[0]
	require.Equal(t, b, r.GrantedUnits)
	require.Equal(t, code.DiameterSuccess, r.ResultCode)
	require.NotNil(t, r.FinalUnitAction)
	require.Equal(t, quota.Terminate, *r.FinalUnitAction)

	state, err := f.state(t, "s3")
	require.NoError(t, err)
	require.Equal(t, ccasession.PendingTermination, state)

	ans, err = f.engine.Process(ctx, ccr(t, "s3", charging.Update, 1, mscc(1, 10, b, b)))
	require.NoError(t, err)
	require.Equal(t, code.DiameterSuccess, ans.ResultCode)
	require.Equal(t, int64(0), ans.Results[0].GrantedUnits)
	require.Equal(t, code.DiameterCreditLimitReached, ans.Results[0].ResultCode)

	ans, err = f.engine.Process(ctx, ccr(t, "s3", charging.Termination, 2, mscc(1, 10, charging.NoUnits, 0)))
	require.NoError(t, err)
	require.Equal(t, code.DiameterSuccess, ans.ResultCode)

	ans, err = f.engine.Process(ctx, ccr(t, "s4", charging.Initial, 0, mscc(1, 10, bucket, 0)))
	require.NoError(t, err)
	require.Equal(t, code.DiameterSuccess, ans.ResultCode)
	require.Equal(t, int64(0), ans.Results[0].GrantedUnits)
	require.Equal(t, code.DiameterCreditLimitReached, ans.Results[0].ResultCode)
	require.Equal(t, int64(0), f.balance(t))
}

func TestUnknownSubscriber(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := sessionstore.NewRedisClient(&factory.Redis{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()
	f := newFixtureWithStore(t, 1000, sessionstore.NewRedisStore(client, time.Hour))
	ctx := context.Background()

	req := ccr(t, "s5", charging.Initial, 0, mscc(1, 10, 500, 0), mscc(2, 12, 500, 0))
	req.Subscriber = charging.Subscriber{MSISDN: "4790399999"}
	ans, err := f.engine.Process(ctx, req)
	require.NoError(t, err)
	require.Equal(t, code.DiameterUserUnknown, ans.ResultCode)
	require.Len(t, ans.Results, 2)
	for _, r := range ans.Results {
		require.Equal(t, code.DiameterUserUnknown, r.ResultCode)
		require.Equal(t, int64(0), r.GrantedUnits)
	}
	require.Empty(t, mr.Keys())
}

func TestDefaultBucket(t *testing.T) {
	f := newFixture(t, 100000000)
	ctx := context.Background()

	ans, err := f.engine.Process(ctx, ccr(t, "s6", charging.Initial, 0, mscc(1, 10, charging.NoUnits, 0)))
	require.NoError(t, err)
	require.Equal(t, int64(40000000), ans.Results[0].GrantedUnits)
	require.Equal(t, uint32(86400), ans.Results[0].ValidityTime)

	// No MSCC at all: one implicit context without identifiers.
	ans, err = f.engine.Process(ctx, ccr(t, "s7", charging.Initial, 0))
	require.NoError(t, err)
	require.Len(t, ans.Results, 1)
	require.Nil(t, ans.Results[0].RatingGroup)
	require.Nil(t, ans.Results[0].ServiceIdentifier)
	require.Equal(t, int64(40000000), ans.Results[0].GrantedUnits)
	require.Equal(t, int64(20000000), f.balance(t))
}

func TestTerminationReplay(t *testing.T) {
	f := newFixture(t, 10000)
	ctx := context.Background()

	_, err := f.engine.Process(ctx, ccr(t, "s8", charging.Initial, 0, mscc(1, 10, 1000, 0)))
	require.NoError(t, err)
	term := ccr(t, "s8", charging.Termination, 1, mscc(1, 10, charging.NoUnits, 600))
	ans, err := f.engine.Process(ctx, term)
	require.NoError(t, err)
	require.Equal(t, code.DiameterSuccess, ans.ResultCode)
	require.Equal(t, int64(9400), f.balance(t))

	ans, err = f.engine.Process(ctx, term)
	require.NoError(t, err)
	require.Equal(t, code.DiameterSuccess, ans.ResultCode)
	require.Equal(t, int64(9400), f.balance(t))
}

func TestTerminationReleasesUnreportedReservations(t *testing.T) {
	f := newFixture(t, 10000)
	ctx := context.Background()

	_, err := f.engine.Process(ctx, ccr(t, "s9", charging.Initial, 0,
		mscc(1, 10, 1000, 0), mscc(2, 12, 2000, 0)))
	require.NoError(t, err)
	require.Equal(t, int64(7000), f.balance(t))

	_, err = f.engine.Process(ctx, ccr(t, "s9", charging.Termination, 1, mscc(1, 10, charging.NoUnits, 1000)))
	require.NoError(t, err)
	require.Equal(t, int64(9000), f.balance(t))
}

func TestRetransmittedUpdate(t *testing.T) {
	f := newFixture(t, 10000)
	ctx := context.Background()

	_, err := f.engine.Process(ctx, ccr(t, "s10", charging.Initial, 0, mscc(1, 10, 1000, 0)))
	require.NoError(t, err)
	update := ccr(t, "s10", charging.Update, 1, mscc(1, 10, 1000, 1000))
	first, err := f.engine.Process(ctx, update)
	require.NoError(t, err)
	left := f.balance(t)

	again, err := f.engine.Process(ctx, update)
	require.NoError(t, err)
	require.True(t, again.Retransmission)
	require.Equal(t, first.ResultCode, again.ResultCode)
	require.Equal(t, first.RequestNumber, again.RequestNumber)
	require.Equal(t, first.Results, again.Results)
	require.Equal(t, left, f.balance(t))
}

func TestRetransmissionWithUnreadableAnswer(t *testing.T) {
	f := newFixture(t, 10000)
	ctx := context.Background()

	init := ccr(t, "s11", charging.Initial, 0, mscc(1, 10, 1000, 0))
	_, err := f.engine.Process(ctx, init)
	require.NoError(t, err)
	require.NoError(t, f.sessions.SetField(ctx, "s11", ccasession.FieldBufferedAnswer, "%%%"))

	ans, err := f.engine.Process(ctx, init)
	require.NoError(t, err)
	require.Equal(t, code.DiameterUnableToComply, ans.ResultCode)
	require.Equal(t, int64(9000), f.balance(t))
}

func TestProtocolErrors(t *testing.T) {
	f := newFixture(t, 10000)
	ctx := context.Background()

	req := ccr(t, "", charging.Initial, 0)
	ans, err := f.engine.Process(ctx, req)
	require.NoError(t, err)
	require.Equal(t, code.DiameterMissingAvp, ans.ResultCode)

	req = ccr(t, "p1", charging.RequestType(9), 0)
	ans, err = f.engine.Process(ctx, req)
	require.NoError(t, err)
	require.Equal(t, code.DiameterInvalidAvpValue, ans.ResultCode)

	req = ccr(t, "p1", charging.Initial, 0)
	req.RequestNumber = nil
	ans, err = f.engine.Process(ctx, req)
	require.NoError(t, err)
	require.Equal(t, code.DiameterMissingAvp, ans.ResultCode)

	req = ccr(t, "p1", charging.Initial, 0)
	req.Subscriber = charging.Subscriber{}
	ans, err = f.engine.Process(ctx, req)
	require.NoError(t, err)
	require.Equal(t, code.DiameterMissingAvp, ans.ResultCode)

	exists, err := f.sessions.Exists(ctx, "p1")
	require.NoError(t, err)
	require.False(t, exists)
	require.Equal(t, int64(10000), f.balance(t))
}

func TestOutOfSequence(t *testing.T) {
	f := newFixture(t, 10000)
	ctx := context.Background()

	ans, err := f.engine.Process(ctx, ccr(t, "o1", charging.Update, 1, mscc(1, 10, 100, 100)))
	require.NoError(t, err)
	require.Equal(t, code.DiameterUnknownSessionId, ans.ResultCode)

	_, err = f.engine.Process(ctx, ccr(t, "o1", charging.Initial, 0, mscc(1, 10, 100, 0)))
	require.NoError(t, err)
	ans, err = f.engine.Process(ctx, ccr(t, "o1", charging.Initial, 5, mscc(1, 10, 100, 0)))
	require.NoError(t, err)
	require.Equal(t, code.DiameterUnableToComply, ans.ResultCode)
	require.Equal(t, int64(9900), f.balance(t))
}

func TestBalanceStoreFailureSendsNoAnswer(t *testing.T) {
	ctrl := gomock.NewController(t)
	balances := balance.NewMockStore(ctrl)
	sessions := sessionstore.NewMemoryStore(time.Hour)
	engine := charging.NewEngine(sessions, quota.NewManager(balances, 500, 60), time.Second)
	ctx := context.Background()

	balances.EXPECT().Lookup(gomock.Any(), msisdn).Return(nil)
	balances.EXPECT().Reserve(gomock.Any(), gomock.Any(), int64(500)).
		Return(int64(0), balance.ErrUnavailable)

	ans, err := engine.Process(ctx, ccr(t, "f1", charging.Initial, 0, mscc(1, 10, 500, 0)))
	require.Nil(t, ans)
	require.True(t, errors.Is(err, balance.ErrUnavailable))

	exists, err := sessions.Exists(ctx, "f1")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestBalanceStoreTimeoutSendsNoAnswer(t *testing.T) {
	ctrl := gomock.NewController(t)
	balances := balance.NewMockStore(ctrl)
	sessions := sessionstore.NewMemoryStore(time.Hour)
	engine := charging.NewEngine(sessions, quota.NewManager(balances, 500, 60), 20*time.Millisecond)

	balances.EXPECT().Lookup(gomock.Any(), msisdn).DoAndReturn(
		func(ctx context.Context, _ string) error {
			<-ctx.Done()
			return ctx.Err()
		})

	ans, err := engine.Process(context.Background(), ccr(t, "f2", charging.Initial, 0))
	require.Nil(t, ans)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSessionStoreFailureSendsNoAnswer(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := sessionstore.NewRedisClient(&factory.Redis{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()
	f := newFixtureWithStore(t, 10000, sessionstore.NewRedisStore(client, time.Hour))
	mr.Close()

	ans, err := f.engine.Process(context.Background(), ccr(t, "f3", charging.Initial, 0, mscc(1, 10, 100, 0)))
	require.Nil(t, ans)
	require.True(t, errors.Is(err, sessionstore.ErrUnavailable))
	require.Equal(t, int64(10000), f.balance(t))
}

// failingWrites accepts reads and rejects every write.
type failingWrites struct {
	*sessionstore.MemoryStore
}

func (failingWrites) SetField(context.Context, string, string, string) error {
	return sessionstore.ErrUnavailable
}

func TestPersistFailureAfterDebitIsInconsistent(t *testing.T) {
	f := newFixtureWithStore(t, 10000, failingWrites{sessionstore.NewMemoryStore(time.Hour)})

	ans, err := f.engine.Process(context.Background(), ccr(t, "f4", charging.Initial, 0, mscc(1, 10, 100, 0)))
	require.Nil(t, ans)
	require.True(t, errors.Is(err, charging.ErrSessionInconsistent))
	require.Equal(t, int64(9900), f.balance(t))
}

func TestTransitionListeners(t *testing.T) {
	f := newFixture(t, 10000)
	ctx := context.Background()

	var seen []charging.Transition
	f.engine.AddListener(charging.TransitionListenerFunc(func(_ context.Context, tr charging.Transition) error {
		panic("listener bug")
	}))
	f.engine.AddListener(charging.TransitionListenerFunc(func(_ context.Context, tr charging.Transition) error {
		return errors.New("listener failed")
	}))
	f.engine.AddListener(charging.TransitionListenerFunc(func(_ context.Context, tr charging.Transition) error {
		seen = append(seen, tr)
		return nil
	}))

	ans, err := f.engine.Process(ctx, ccr(t, "l1", charging.Initial, 0, mscc(1, 10, 100, 0)))
	require.NoError(t, err)
	require.Equal(t, code.DiameterSuccess, ans.ResultCode)
	_, err = f.engine.Process(ctx, ccr(t, "l1", charging.Termination, 1, mscc(1, 10, charging.NoUnits, 100)))
	require.NoError(t, err)

	require.Len(t, seen, 2)
	require.Equal(t, ccasession.Idle, seen[0].From)
	require.Equal(t, ccasession.Open, seen[0].To)
	require.Equal(t, msisdn, seen[0].Subscriber)
	require.Equal(t, ccasession.Open, seen[1].From)
	require.Equal(t, ccasession.Terminated, seen[1].To)
}

func TestSessionFieldsInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := sessionstore.NewRedisClient(&factory.Redis{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()
	f := newFixtureWithStore(t, 10000, sessionstore.NewRedisStore(client, time.Hour))

	_, err = f.engine.Process(context.Background(), ccr(t, "r1", charging.Initial, 0, mscc(1, 10, 100, 0)))
	require.NoError(t, err)

	key := sessionstore.KeyPrefixSession + "r1"
	require.Equal(t, "OPEN", mr.HGet(key, ccasession.FieldState))
	require.Equal(t, msisdn, mr.HGet(key, ccasession.FieldSubscriber))
	require.Equal(t, "false", mr.HGet(key, ccasession.FieldEventBased))
	require.Equal(t, "true", mr.HGet(key, ccasession.FieldRequestTypeSet))
	require.Equal(t, "0", mr.HGet(key, ccasession.FieldRequestNumber))
	require.Equal(t, "-1", mr.HGet(key, ccasession.FieldGatheredCCFH))
	require.Equal(t, "rg:10/si:1", mr.HGet(key, ccasession.FieldReservations))
	require.NotEmpty(t, mr.HGet(key, ccasession.FieldTimerID))
	require.NotEmpty(t, mr.HGet(key, ccasession.FieldBufferedRequest))
	require.NotEmpty(t, mr.HGet(key, ccasession.FieldBufferedAnswer))
	require.Equal(t, time.Hour, mr.TTL(key))
}

func TestUpdateDebitsOnlyReportedUsage(t *testing.T) {
	f := newFixture(t, 100000)
	ctx := context.Background()

	_, err := f.engine.Process(ctx, ccr(t, "d1", charging.Initial, 0, mscc(1, 10, 500, 0)))
	require.NoError(t, err)
	require.Equal(t, int64(99500), f.balance(t))

	ans, err := f.engine.Process(ctx, ccr(t, "d1", charging.Update, 1, mscc(1, 10, 500, 100)))
	require.NoError(t, err)
	require.Equal(t, int64(500), ans.Results[0].GrantedUnits)
	require.Equal(t, int64(99000), f.balance(t))

	_, err = f.engine.Process(ctx, ccr(t, "d1", charging.Termination, 2, mscc(1, 10, charging.NoUnits, 300)))
	require.NoError(t, err)
	require.Equal(t, int64(99600), f.balance(t))
}

func TestEventRequest(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := sessionstore.NewRedisClient(&factory.Redis{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()
	f := newFixtureWithStore(t, 10000, sessionstore.NewRedisStore(client, time.Hour))
	ctx := context.Background()

	event := ccr(t, "e1", charging.Event, 0, mscc(1, 10, 100, 0))
	first, err := f.engine.Process(ctx, event)
	require.NoError(t, err)
	require.Equal(t, code.DiameterSuccess, first.ResultCode)
	require.Equal(t, int64(100), first.Results[0].GrantedUnits)
	require.Equal(t, int64(9900), f.balance(t))

	key := sessionstore.KeyPrefixSession + "e1"
	require.Equal(t, "OPEN", mr.HGet(key, ccasession.FieldState))
	require.Equal(t, "true", mr.HGet(key, ccasession.FieldEventBased))
	eventBased, err := ccasession.New("e1", f.sessions, dict.Default).IsEventBased(ctx)
	require.NoError(t, err)
	require.True(t, eventBased)

	again, err := f.engine.Process(ctx, event)
	require.NoError(t, err)
	require.True(t, again.Retransmission)
	require.Equal(t, charging.Event, again.RequestType)
	require.Equal(t, first.ResultCode, again.ResultCode)
	require.Equal(t, first.Results, again.Results)
	require.Equal(t, int64(9900), f.balance(t))
}

// flakyReservations fails reads of the reservations field while fail is set.
type flakyReservations struct {
	*sessionstore.MemoryStore
	fail bool
}

func (s *flakyReservations) GetField(ctx context.Context, sessionID, field string) (string, bool, error) {
	if s.fail && field == ccasession.FieldReservations {
		return "", false, sessionstore.ErrUnavailable
	}
	return s.MemoryStore.GetField(ctx, sessionID, field)
}

func TestReservationsReadFailureKeepsHeldBuckets(t *testing.T) {
	store := &flakyReservations{MemoryStore: sessionstore.NewMemoryStore(time.Hour)}
	f := newFixtureWithStore(t, 100000, store)
	ctx := context.Background()

	_, err := f.engine.Process(ctx, ccr(t, "h1", charging.Initial, 0,
		mscc(1, 10, 500, 0), mscc(2, 12, 500, 0)))
	require.NoError(t, err)
	require.Equal(t, int64(99000), f.balance(t))

	store.fail = true
	ans, err := f.engine.Process(ctx, ccr(t, "h1", charging.Update, 1, mscc(1, 10, 500, 500)))
	require.Nil(t, ans)
	require.True(t, errors.Is(err, charging.ErrSessionInconsistent))
	store.fail = false

	held, err := ccasession.New("h1", store, dict.Default).Reservations(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"rg:10/si:1", "rg:12/si:2"}, held)

	_, err = f.engine.Process(ctx, ccr(t, "h1", charging.Termination, 1, mscc(1, 10, charging.NoUnits, 500)))
	require.NoError(t, err)
	require.Equal(t, int64(99000), f.balance(t))
}

// recordingWrites keeps the names of the fields written to it.
type recordingWrites struct {
	*sessionstore.MemoryStore
	fields []string
}

func (s *recordingWrites) SetField(ctx context.Context, sessionID, field, value string) error {
	s.fields = append(s.fields, field)
	return s.MemoryStore.SetField(ctx, sessionID, field, value)
}

func TestTerminationWritesOnlyState(t *testing.T) {
	store := &recordingWrites{MemoryStore: sessionstore.NewMemoryStore(time.Hour)}
	f := newFixtureWithStore(t, 10000, store)
	ctx := context.Background()

	_, err := f.engine.Process(ctx, ccr(t, "w1", charging.Initial, 0, mscc(1, 10, 100, 0)))
	require.NoError(t, err)
	require.Contains(t, store.fields, ccasession.FieldBufferedAnswer)

	store.fields = nil
	_, err = f.engine.Process(ctx, ccr(t, "w1", charging.Termination, 1, mscc(1, 10, charging.NoUnits, 100)))
	require.NoError(t, err)
	require.Equal(t, []string{ccasession.FieldState}, store.fields)

	exists, err := store.Exists(ctx, "w1")
	require.NoError(t, err)
	require.False(t, exists)
}
