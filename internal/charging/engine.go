// Package charging runs the Credit-Control session state machine: one CCR in,
// one answer out, with session state kept in the replicated store.
package charging

import (
	"context"
	"time"

	"github.com/fiorix/go-diameter/diam/dict"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/free5gc/ocs/internal/balance"
	"github.com/free5gc/ocs/internal/ccasession"
	"github.com/free5gc/ocs/internal/diameter/code"
	"github.com/free5gc/ocs/internal/logger"
	"github.com/free5gc/ocs/internal/quota"
	"github.com/free5gc/ocs/internal/sessionstore"
)

// ErrSessionInconsistent means the balance was changed but the session state
// recording it could not be written. It needs reconciliation.
var ErrSessionInconsistent = errors.New("balance mutated but session not persisted")

type Engine struct {
	store     sessionstore.Store
	quota     *quota.Manager
	parser    *dict.Parser
	timeout   time.Duration
	listeners []TransitionListener
}

func NewEngine(store sessionstore.Store, manager *quota.Manager, timeout time.Duration,
	listeners ...TransitionListener,
) *Engine {
	return &Engine{
		store:     store,
		quota:     manager,
		parser:    dict.Default,
		timeout:   timeout,
		listeners: listeners,
	}
}

// AddListener must be called before the engine serves requests.
func (e *Engine) AddListener(l TransitionListener) {
	e.listeners = append(e.listeners, l)
}

// exchange is the working state of one request.
type exchange struct {
	req        *Request
	data       *ccasession.Data
	log        *logrus.Entry
	subscriber string
	from       ccasession.State
	stored     bool
	mutated    bool
	commit     bool
}

// Process answers one CCR. A nil answer with an error means nothing may be
// sent back; the gateway is expected to retransmit.
func (e *Engine) Process(ctx context.Context, req *Request) (*Answer, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	log := logger.CcrLog.WithFields(logrus.Fields{
		"session": req.SessionID,
		"type":    req.RequestType,
	})

	if ans := validate(req); ans != nil {
		log.Warnf("Rejected CCR with result %d", ans.ResultCode)
		return ans, nil
	}

	x := &exchange{
		req:  req,
		data: ccasession.New(req.SessionID, e.store, e.parser),
		log:  log,
		from: ccasession.Idle,
	}

	if ans, err := e.replay(ctx, x); ans != nil || err != nil {
		return ans, err
	}
	if err := e.load(ctx, x); err != nil {
		return nil, err
	}

	var ans *Answer
	var to ccasession.State
	var err error
	switch req.RequestType {
	case Initial, Event:
		ans, to, err = e.open(ctx, x)
	case Update:
		ans, to, err = e.update(ctx, x)
	case Termination:
		ans, to, err = e.terminate(ctx, x)
	}
	if err != nil {
		if x.mutated {
			x.log.Errorf("Balance changed before failure: %+v", err)
		}
		return nil, err
	}
	if !x.commit {
		x.log.Infof("Answered %d without session change", ans.ResultCode)
		return ans, nil
	}

	if err := e.persist(ctx, x, ans, to); err != nil {
		if x.mutated {
			x.log.Errorf("INCONSISTENT session [%s] subscriber [%s]: %+v",
				req.SessionID, x.subscriber, err)
			return nil, errors.Wrap(ErrSessionInconsistent, err.Error())
		}
		return nil, err
	}
	e.notify(ctx, Transition{
		SessionID:   req.SessionID,
		Subscriber:  x.subscriber,
		From:        x.from,
		To:          to,
		RequestType: req.RequestType,
	})
	x.log.Infof("Answered %d, %s -> %s, granted %d", ans.ResultCode, x.from, to, ans.GrantedUnits())
	return ans, nil
}

func validate(req *Request) *Answer {
	reject := func(rc uint32) *Answer {
		a := &Answer{ResultCode: rc, RequestType: req.RequestType}
		if req.RequestNumber != nil {
			a.RequestNumber = *req.RequestNumber
		}
		return a
	}
	switch {
	case req.SessionID == "", req.RequestType == 0, req.RequestNumber == nil:
		return reject(code.DiameterMissingAvp)
	case !req.RequestType.Valid():
		return reject(code.DiameterInvalidAvpValue)
	case (req.RequestType == Initial || req.RequestType == Event) && req.Subscriber.ID() == "":
		return reject(code.DiameterMissingAvp)
	}
	return nil
}

// replay answers a retransmitted CCR from the session buffer without touching
// the balance.
func (e *Engine) replay(ctx context.Context, x *exchange) (*Answer, error) {
	buffered, err := x.data.BufferedRequest(ctx)
	if err != nil || buffered == nil {
		return nil, err
	}
	t, n, ok := requestIdentity(buffered)
	if !ok || t != x.req.RequestType || n != *x.req.RequestNumber {
		return nil, nil
	}

	x.log.Infof("Retransmitted CCR number %d", n)
	m, err := x.data.BufferedAnswer(ctx)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return &Answer{
			ResultCode:    code.DiameterUnableToComply,
			RequestType:   x.req.RequestType,
			RequestNumber: n,
		}, nil
	}
	ans, err := ParseAnswer(m)
	if err != nil {
		x.log.Errorf("Buffered answer unusable: %+v", err)
		return &Answer{
			ResultCode:    code.DiameterUnableToComply,
			RequestType:   x.req.RequestType,
			RequestNumber: n,
		}, nil
	}
	ans.Retransmission = true
	return ans, nil
}

// load reads the stored session, if any.
func (e *Engine) load(ctx context.Context, x *exchange) error {
	exists, err := x.data.Exists(ctx)
	if err != nil || !exists {
		return err
	}
	x.stored = true

	state, err := x.data.State(ctx)
	switch {
	case errors.Is(err, ccasession.ErrFieldMissing):
		// Fields without state: an earlier attempt died before its last write.
		x.log.Warnf("Session without state, handling as new")
		x.stored = false
	case err != nil:
		return err
	default:
		x.from = state
	}

	x.subscriber, err = x.data.Subscriber(ctx)
	if err != nil {
		return err
	}
	if last, ok, err := x.data.RequestNumber(ctx); err != nil {
		return err
	} else if ok && *x.req.RequestNumber < last {
		x.log.Warnf("CC-Request-Number %d below last answered %d", *x.req.RequestNumber, last)
	}
	return nil
}

func (e *Engine) key(x *exchange, rc RatingContext) balance.Key {
	return balance.Key{
		Subscriber:        x.subscriber,
		RatingGroup:       rc.RatingGroup,
		ServiceIdentifier: rc.ServiceIdentifier,
	}
}

func (x *exchange) contexts() []RatingContext {
	if len(x.req.Contexts) > 0 {
		return x.req.Contexts
	}
	return []RatingContext{{RequestedUnits: NoUnits}}
}

func (x *exchange) answer(rc uint32) *Answer {
	return &Answer{
		ResultCode:    rc,
		RequestType:   x.req.RequestType,
		RequestNumber: *x.req.RequestNumber,
	}
}

func (x *exchange) userUnknown() *Answer {
	ans := x.answer(code.DiameterUserUnknown)
	for _, rc := range x.contexts() {
		ans.Results = append(ans.Results, RatingResult{
			RatingGroup:       rc.RatingGroup,
			ServiceIdentifier: rc.ServiceIdentifier,
			ResultCode:        code.DiameterUserUnknown,
		})
	}
	return ans
}

func result(rc RatingContext, g quota.Grant) RatingResult {
	return RatingResult{
		RatingGroup:       rc.RatingGroup,
		ServiceIdentifier: rc.ServiceIdentifier,
		GrantedUnits:      g.Units,
		ResultCode:        g.ResultCode,
		FinalUnitAction:   g.FinalUnitAction,
		ValidityTime:      g.ValidityTime,
	}
}

// open handles INITIAL and EVENT.
func (e *Engine) open(ctx context.Context, x *exchange) (*Answer, ccasession.State, error) {
	if x.stored && x.from.Active() {
		x.log.Warnf("%s for session already %s", x.req.RequestType, x.from)
		return x.answer(code.DiameterUnableToComply), x.from, nil
	}
	x.from = ccasession.Idle
	x.stored = false
	x.subscriber = x.req.Subscriber.ID()

	if err := e.quota.Lookup(ctx, x.subscriber); err != nil {
		if errors.Is(err, balance.ErrUnknownSubscriber) {
			x.log.Warnf("Unknown subscriber [%s]", x.subscriber)
			return x.userUnknown(), ccasession.Idle, nil
		}
		return nil, ccasession.Idle, err
	}

	ans := x.answer(code.DiameterSuccess)
	granted := false
	for _, rc := range x.contexts() {
		g, err := e.quota.Reserve(ctx, e.key(x, rc), rc.RequestedUnits)
		if err != nil {
			if errors.Is(err, balance.ErrUnknownSubscriber) && !x.mutated {
				return x.userUnknown(), ccasession.Idle, nil
			}
			return nil, ccasession.Idle, err
		}
		x.mutated = x.mutated || g.Units > 0
		granted = granted || g.Units > 0
		ans.Results = append(ans.Results, result(rc, g))
	}

	if !granted {
		// Nothing reserved, so there is nothing for a later request to settle.
		return ans, ccasession.Idle, nil
	}
	x.commit = true
	return ans, nextState(ccasession.Idle, ans), nil
}

func (e *Engine) update(ctx context.Context, x *exchange) (*Answer, ccasession.State, error) {
	if !x.stored || !x.from.Active() {
		x.log.Warnf("UPDATE for unknown session")
		return x.answer(code.DiameterUnknownSessionId), x.from, nil
	}
	if x.subscriber == "" {
		x.subscriber = x.req.Subscriber.ID()
	}
	if x.subscriber == "" {
		return x.answer(code.DiameterMissingAvp), x.from, nil
	}

	ans := x.answer(code.DiameterSuccess)
	for _, rc := range x.contexts() {
		key := e.key(x, rc)
		if err := e.quota.Report(ctx, key, rc.UsedUnits); err != nil {
			if errors.Is(err, balance.ErrUnknownSubscriber) && !x.mutated {
				return x.userUnknown(), x.from, nil
			}
			return nil, x.from, err
		}
		x.mutated = true
		g, err := e.quota.Reserve(ctx, key, rc.RequestedUnits)
		if err != nil {
			return nil, x.from, err
		}
		ans.Results = append(ans.Results, result(rc, g))
	}
	x.commit = true
	return ans, nextState(x.from, ans), nil
}

func (e *Engine) terminate(ctx context.Context, x *exchange) (*Answer, ccasession.State, error) {
	ans := x.answer(code.DiameterSuccess)
	for _, rc := range x.req.Contexts {
		ans.Results = append(ans.Results, RatingResult{
			RatingGroup:       rc.RatingGroup,
			ServiceIdentifier: rc.ServiceIdentifier,
			ResultCode:        code.DiameterSuccess,
		})
	}
	if !x.stored {
		x.log.Infof("TERMINATION for absent session, nothing to settle")
		return ans, ccasession.Idle, nil
	}
	if x.subscriber == "" {
		x.subscriber = x.req.Subscriber.ID()
	}
	x.commit = true

	settled := make(map[string]bool)
	for _, rc := range x.req.Contexts {
		key := e.key(x, rc)
		if err := e.quota.Report(ctx, key, rc.UsedUnits); err != nil {
			if errors.Is(err, balance.ErrUnknownSubscriber) {
				x.log.Warnf("Subscriber [%s] vanished, nothing to settle", x.subscriber)
				return ans, ccasession.Terminated, nil
			}
			return nil, x.from, err
		}
		x.mutated = true
		if err := e.quota.Release(ctx, key); err != nil {
			return nil, x.from, err
		}
		settled[key.ReservationID()] = true
	}

	ids, err := x.data.Reservations(ctx)
	if err != nil {
		return nil, x.from, err
	}
	for _, id := range ids {
		if settled[id] {
			continue
		}
		key, err := balance.ParseReservationID(x.subscriber, id)
		if err != nil {
			x.log.Errorf("Skipping reservation: %+v", err)
			continue
		}
		if err := e.quota.Release(ctx, key); err != nil && !errors.Is(err, balance.ErrUnknownSubscriber) {
			return nil, x.from, err
		}
		x.mutated = true
	}
	return ans, ccasession.Terminated, nil
}

func nextState(from ccasession.State, ans *Answer) ccasession.State {
	var granted bool
	for _, r := range ans.Results {
		if r.FinalUnitAction != nil && *r.FinalUnitAction == quota.Terminate {
			return ccasession.PendingTermination
		}
		granted = granted || r.GrantedUnits > 0
	}
	if from == ccasession.PendingTermination && !granted {
		return ccasession.PendingTermination
	}
	return ccasession.Open
}

// persist writes the session with state last, so a crash part way leaves a
// session that is handled as never opened. A terminated session only gets its
// final state before it is removed.
func (e *Engine) persist(ctx context.Context, x *exchange, ans *Answer, to ccasession.State) error {
	d := x.data
	req := x.req

	if to == ccasession.Terminated {
		if err := d.SetState(ctx, to); err != nil {
			return err
		}
		return d.Remove(ctx)
	}

	// Read before the first write so a failure leaves the session untouched.
	ids, err := reservations(ctx, x, ans)
	if err != nil {
		return err
	}

	if err := d.SetSubscriber(ctx, x.subscriber); err != nil {
		return err
	}
	if err := d.SetRequestTypeSet(ctx, true); err != nil {
		return err
	}
	if req.RequestType == Initial || req.RequestType == Event {
		if err := d.SetEventBased(ctx, req.RequestType == Event); err != nil {
			return err
		}
		if err := d.SetGatheredRequestedAction(ctx, gathered(req.RequestedAction)); err != nil {
			return err
		}
		if err := d.SetGatheredCCFH(ctx, gathered(req.CCFH)); err != nil {
			return err
		}
		if err := d.SetGatheredDDFH(ctx, gathered(req.DDFH)); err != nil {
			return err
		}
	}
	if err := d.SetRequestNumber(ctx, *req.RequestNumber); err != nil {
		return err
	}
	if err := d.SetBufferedRequestBlob(ctx, req.Raw); err != nil {
		return err
	}
	if err := d.SetBufferedAnswer(ctx, ans.Message(e.parser)); err != nil {
		return err
	}
	if err := d.SetTimerID(ctx, uuid.New().String()); err != nil {
		return err
	}
	if err := d.SetTxTimerRequestBlob(ctx, req.Raw); err != nil {
		return err
	}
	if err := d.SetReservations(ctx, ids); err != nil {
		return err
	}
	return d.SetState(ctx, to)
}

// reservations merges the ids the session already held with those granted now.
func reservations(ctx context.Context, x *exchange, ans *Answer) ([]string, error) {
	set := make(map[string]bool)
	if x.stored {
		held, err := x.data.Reservations(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range held {
			set[id] = true
		}
	}
	for _, r := range ans.Results {
		if r.GrantedUnits > 0 {
			key := balance.Key{RatingGroup: r.RatingGroup, ServiceIdentifier: r.ServiceIdentifier}
			set[key.ReservationID()] = true
		}
	}
	ids := maps.Keys(set)
	slices.Sort(ids)
	return ids, nil
}

func gathered(v *int32) int {
	if v == nil {
		return ccasession.NotGathered
	}
	return int(*v)
}
