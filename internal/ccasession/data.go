// Package ccasession maps the mutable fields of one Credit-Control session onto
// the replicated session store, one store field per session field.
package ccasession

import (
	"context"
	"strconv"
	"strings"

	"github.com/fiorix/go-diameter/diam"
	"github.com/fiorix/go-diameter/diam/dict"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/free5gc/ocs/internal/logger"
	"github.com/free5gc/ocs/internal/sessionstore"
)

// ErrFieldMissing is returned when a mandatory field is absent. Resuming a
// session with a guessed value risks granting quota twice.
var ErrFieldMissing = errors.New("mandatory session field missing")

// Data is the typed view of one session. Nothing is cached: every getter reads
// the store.
type Data struct {
	sessionID string
	store     sessionstore.Store
	parser    *dict.Parser
	log       *logrus.Entry
}

func New(sessionID string, store sessionstore.Store, parser *dict.Parser) *Data {
	if parser == nil {
		parser = dict.Default
	}
	return &Data{
		sessionID: sessionID,
		store:     store,
		parser:    parser,
		log:       logger.SessLog.WithField("session", sessionID),
	}
}

func (d *Data) SessionID() string {
	return d.sessionID
}

// Exists reports whether any field of the session is stored.
func (d *Data) Exists(ctx context.Context) (bool, error) {
	return d.store.Exists(ctx, d.sessionID)
}

// Remove destroys the session.
func (d *Data) Remove(ctx context.Context) error {
	return d.store.Delete(ctx, d.sessionID)
}

func (d *Data) get(ctx context.Context, field string) (string, bool, error) {
	return d.store.GetField(ctx, d.sessionID, field)
}

func (d *Data) set(ctx context.Context, field, value string) error {
	return d.store.SetField(ctx, d.sessionID, field, value)
}

func (d *Data) mandatory(ctx context.Context, field string) (string, error) {
	v, ok, err := d.get(ctx, field)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.Wrapf(ErrFieldMissing, "%s of session %s", field, d.sessionID)
	}
	return v, nil
}

func (d *Data) boolean(ctx context.Context, field string, def bool) (bool, error) {
	v, ok, err := d.get(ctx, field)
	if err != nil || !ok {
		return def, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, errors.Wrapf(err, "parse %s of session %s", field, d.sessionID)
	}
	return b, nil
}

func (d *Data) counter(ctx context.Context, field string) (int, error) {
	v, err := d.mandatory(ctx, field)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s of session %s", field, d.sessionID)
	}
	return n, nil
}

func (d *Data) State(ctx context.Context) (State, error) {
	v, err := d.mandatory(ctx, FieldState)
	if err != nil {
		return Idle, err
	}
	return ParseState(v)
}

func (d *Data) SetState(ctx context.Context, s State) error {
	return d.set(ctx, FieldState, s.String())
}

func (d *Data) IsRequestTypeSet(ctx context.Context) (bool, error) {
	return d.boolean(ctx, FieldRequestTypeSet, false)
}

func (d *Data) SetRequestTypeSet(ctx context.Context, b bool) error {
	return d.set(ctx, FieldRequestTypeSet, strconv.FormatBool(b))
}

func (d *Data) IsEventBased(ctx context.Context) (bool, error) {
	return d.boolean(ctx, FieldEventBased, true)
}

func (d *Data) SetEventBased(ctx context.Context, b bool) error {
	return d.set(ctx, FieldEventBased, strconv.FormatBool(b))
}

func (d *Data) TimerID(ctx context.Context) (string, error) {
	return d.mandatory(ctx, FieldTimerID)
}

// SetTimerID stores id; an empty id removes the field.
func (d *Data) SetTimerID(ctx context.Context, id string) error {
	if id == "" {
		return d.store.DeleteField(ctx, d.sessionID, FieldTimerID)
	}
	return d.set(ctx, FieldTimerID, id)
}

func (d *Data) GatheredRequestedAction(ctx context.Context) (int, error) {
	return d.counter(ctx, FieldGatheredRequestedAction)
}

func (d *Data) SetGatheredRequestedAction(ctx context.Context, n int) error {
	return d.set(ctx, FieldGatheredRequestedAction, strconv.Itoa(n))
}

func (d *Data) GatheredCCFH(ctx context.Context) (int, error) {
	return d.counter(ctx, FieldGatheredCCFH)
}

func (d *Data) SetGatheredCCFH(ctx context.Context, n int) error {
	return d.set(ctx, FieldGatheredCCFH, strconv.Itoa(n))
}

func (d *Data) GatheredDDFH(ctx context.Context) (int, error) {
	return d.counter(ctx, FieldGatheredDDFH)
}

func (d *Data) SetGatheredDDFH(ctx context.Context, n int) error {
	return d.set(ctx, FieldGatheredDDFH, strconv.Itoa(n))
}

// Subscriber returns the MSISDN the session is charged to, "" when unknown.
func (d *Data) Subscriber(ctx context.Context) (string, error) {
	v, _, err := d.get(ctx, FieldSubscriber)
	return v, err
}

func (d *Data) SetSubscriber(ctx context.Context, msisdn string) error {
	return d.set(ctx, FieldSubscriber, msisdn)
}

// RequestNumber returns the last answered CC-Request-Number.
func (d *Data) RequestNumber(ctx context.Context) (uint32, bool, error) {
	v, ok, err := d.get(ctx, FieldRequestNumber)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, false, errors.Wrapf(err, "parse %s of session %s", FieldRequestNumber, d.sessionID)
	}
	return uint32(n), true, nil
}

func (d *Data) SetRequestNumber(ctx context.Context, n uint32) error {
	return d.set(ctx, FieldRequestNumber, strconv.FormatUint(uint64(n), 10))
}

// Reservations lists the balance reservations the session holds.
func (d *Data) Reservations(ctx context.Context) ([]string, error) {
	v, ok, err := d.get(ctx, FieldReservations)
	if err != nil || !ok || v == "" {
		return nil, err
	}
	return strings.Split(v, ","), nil
}

func (d *Data) SetReservations(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return d.store.DeleteField(ctx, d.sessionID, FieldReservations)
	}
	return d.set(ctx, FieldReservations, strings.Join(ids, ","))
}

// blob reads a message field. A value that is not valid base64 is logged and
// reported as absent.
func (d *Data) blob(ctx context.Context, field string) (Blob, error) {
	v, ok, err := d.get(ctx, field)
	if err != nil || !ok {
		return Blob{}, err
	}
	b, err := decodeBlob(v)
	if err != nil {
		d.log.Errorf("Decode %s failed, treating as absent: %+v", field, err)
		return Blob{}, nil
	}
	return b, nil
}

// setBlob stores raw; nil removes the field.
func (d *Data) setBlob(ctx context.Context, field string, raw []byte) error {
	if raw == nil {
		return d.store.DeleteField(ctx, d.sessionID, field)
	}
	return d.set(ctx, field, encodeBlob(raw))
}

// message reads a message field as a Diameter message, nil when absent or
// undecodable.
func (d *Data) message(ctx context.Context, field string) (*diam.Message, error) {
	b, err := d.blob(ctx, field)
	if err != nil || !b.Present {
		return nil, err
	}
	m, err := b.Message(d.parser)
	if err != nil {
		d.log.Errorf("Parse %s failed, treating as absent: %+v", field, err)
		return nil, nil
	}
	return m, nil
}

func (d *Data) setMessage(ctx context.Context, field string, m *diam.Message) error {
	if m == nil {
		return d.setBlob(ctx, field, nil)
	}
	raw, err := m.Serialize()
	if err != nil {
		return errors.Wrapf(err, "serialize %s of session %s", field, d.sessionID)
	}
	return d.setBlob(ctx, field, raw)
}

func (d *Data) BufferedRequestBlob(ctx context.Context) (Blob, error) {
	return d.blob(ctx, FieldBufferedRequest)
}

func (d *Data) SetBufferedRequestBlob(ctx context.Context, raw []byte) error {
	return d.setBlob(ctx, FieldBufferedRequest, raw)
}

func (d *Data) BufferedRequest(ctx context.Context) (*diam.Message, error) {
	return d.message(ctx, FieldBufferedRequest)
}

func (d *Data) SetBufferedRequest(ctx context.Context, m *diam.Message) error {
	return d.setMessage(ctx, FieldBufferedRequest, m)
}

func (d *Data) TxTimerRequestBlob(ctx context.Context) (Blob, error) {
	return d.blob(ctx, FieldTxTimerRequest)
}

func (d *Data) SetTxTimerRequestBlob(ctx context.Context, raw []byte) error {
	return d.setBlob(ctx, FieldTxTimerRequest, raw)
}

func (d *Data) TxTimerRequest(ctx context.Context) (*diam.Message, error) {
	return d.message(ctx, FieldTxTimerRequest)
}

func (d *Data) SetTxTimerRequest(ctx context.Context, m *diam.Message) error {
	return d.setMessage(ctx, FieldTxTimerRequest, m)
}

func (d *Data) BufferedAnswer(ctx context.Context) (*diam.Message, error) {
	return d.message(ctx, FieldBufferedAnswer)
}

func (d *Data) SetBufferedAnswer(ctx context.Context, m *diam.Message) error {
	return d.setMessage(ctx, FieldBufferedAnswer, m)
}
