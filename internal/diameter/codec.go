// Package diameter connects the charging engine to Diameter peers.
package diameter

import (
	"github.com/fiorix/go-diameter/diam"
	"github.com/pkg/errors"

	"github.com/free5gc/ocs/internal/charging"
	"github.com/free5gc/ocs/internal/diameter/avps"
	"github.com/free5gc/ocs/internal/diameter/code"
)

// Origin identifies this node in answers.
type Origin struct {
	Host  string
	Realm string
}

// DecodeCCR extracts the fields the engine needs. Absent mandatory AVPs are left
// empty for the engine to reject.
func DecodeCCR(m *diam.Message) (*charging.Request, error) {
	raw, err := m.Serialize()
	if err != nil {
		return nil, errors.Wrap(err, "serialize CCR")
	}
	req := &charging.Request{Raw: raw}

	req.SessionID, _ = avps.Text(avps.Find(m.AVP, code.SessionId))
	req.OriginHost, _ = avps.Text(avps.Find(m.AVP, code.OriginHost))
	req.OriginRealm, _ = avps.Text(avps.Find(m.AVP, code.OriginRealm))
	req.DestinationRealm, _ = avps.Text(avps.Find(m.AVP, code.DestinationRealm))

	if t, ok := avps.Uint(avps.Find(m.AVP, code.CCRequestType)); ok {
		req.RequestType = charging.RequestType(t)
	}
	if n, ok := avps.Uint(avps.Find(m.AVP, code.CCRequestNumber)); ok {
		num := uint32(n)
		req.RequestNumber = &num
	}

	for _, sub := range avps.FindAll(m.AVP, code.SubscriptionId) {
		group := avps.Group(sub)
		t, ok := avps.Int(avps.Find(group, code.SubscriptionIdType))
		if !ok {
			continue
		}
		data, _ := avps.Text(avps.Find(group, code.SubscriptionIdData))
		switch int32(t) {
		case code.EndUserE164:
			req.Subscriber.MSISDN = data
		case code.EndUserIMSI:
			req.Subscriber.IMSI = data
		}
	}

	req.RequestedAction = optionalInt(avps.Find(m.AVP, code.RequestedAction))
	req.CCFH = optionalInt(avps.Find(m.AVP, code.CreditControlFailureHandling))
	req.DDFH = optionalInt(avps.Find(m.AVP, code.DirectDebitingFailureHandling))

	for _, mscc := range avps.FindAll(m.AVP, code.MultipleServicesCreditControl) {
		req.Contexts = append(req.Contexts, ratingContext(avps.Group(mscc)))
	}
	// Single-bucket gateways put the units at command level.
	if len(req.Contexts) == 0 {
		rsu := avps.Find(m.AVP, code.RequestedServiceUnit)
		usu := avps.FindAll(m.AVP, code.UsedServiceUnit)
		if rsu != nil || len(usu) > 0 {
			req.Contexts = append(req.Contexts, charging.RatingContext{
				RequestedUnits: requestedUnits(rsu),
				UsedUnits:      usedUnits(usu),
			})
		}
	}
	return req, nil
}

func ratingContext(group []*diam.AVP) charging.RatingContext {
	var rc charging.RatingContext
	if v, ok := avps.Uint(avps.Find(group, code.RatingGroup)); ok {
		rg := uint32(v)
		rc.RatingGroup = &rg
	}
	if v, ok := avps.Uint(avps.Find(group, code.ServiceIdentifier)); ok {
		si := uint32(v)
		rc.ServiceIdentifier = &si
	}
	rc.RequestedUnits = requestedUnits(avps.Find(group, code.RequestedServiceUnit))
	rc.UsedUnits = usedUnits(avps.FindAll(group, code.UsedServiceUnit))
	return rc
}

func requestedUnits(rsu *diam.AVP) int64 {
	if v, ok := avps.Int(avps.Find(avps.Group(rsu), code.CCTotalOctets)); ok && v > 0 {
		return v
	}
	return charging.NoUnits
}

func usedUnits(usu []*diam.AVP) int64 {
	var total int64
	for _, u := range usu {
		if v, ok := avps.Int(avps.Find(avps.Group(u), code.CCTotalOctets)); ok {
			total += v
		}
	}
	return total
}

func optionalInt(a *diam.AVP) *int32 {
	v, ok := avps.Int(a)
	if !ok {
		return nil
	}
	i := int32(v)
	return &i
}

// EncodeCCA builds the answer to req.
func EncodeCCA(req *diam.Message, ans *charging.Answer, origin Origin) *diam.Message {
	a := req.Answer(ans.ResultCode)
	if sid := avps.Find(req.AVP, code.SessionId); sid != nil {
		a.AddAVP(sid)
	}
	a.AddAVP(avps.Identity(code.OriginHost, origin.Host))
	a.AddAVP(avps.Identity(code.OriginRealm, origin.Realm))
	a.AddAVP(avps.Unsigned32(code.AuthApplicationId, code.CreditControlApplication))
	for _, x := range ans.AVPs() {
		a.AddAVP(x)
	}
	return a
}
