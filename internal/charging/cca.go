package charging

import (
	"github.com/fiorix/go-diameter/diam"
	"github.com/fiorix/go-diameter/diam/dict"
	"github.com/pkg/errors"

	"github.com/free5gc/ocs/internal/diameter/avps"
	"github.com/free5gc/ocs/internal/diameter/code"
	"github.com/free5gc/ocs/internal/quota"
)

// AVPs returns the answer body that follows Result-Code and the
// session/origin AVPs: request type and number, then one MSCC per result in
// request order.
func (a *Answer) AVPs() []*diam.AVP {
	list := make([]*diam.AVP, 0, len(a.Results)+2)
	if a.RequestType != 0 {
		list = append(list, avps.Enumerated(code.CCRequestType, int32(a.RequestType)))
		list = append(list, avps.Unsigned32(code.CCRequestNumber, a.RequestNumber))
	}
	for _, r := range a.Results {
		list = append(list, r.avp())
	}
	return list
}

func (r RatingResult) avp() *diam.AVP {
	units := r.GrantedUnits
	if units < 0 {
		units = 0
	}
	group := []*diam.AVP{
		avps.Grouped(code.GrantedServiceUnit, avps.Unsigned64(code.CCTotalOctets, uint64(units))),
	}
	if r.RatingGroup != nil {
		group = append(group, avps.Unsigned32(code.RatingGroup, *r.RatingGroup))
	}
	if r.ServiceIdentifier != nil {
		group = append(group, avps.Unsigned32(code.ServiceIdentifier, *r.ServiceIdentifier))
	}
	if r.ValidityTime > 0 {
		group = append(group, avps.Unsigned32(code.ValidityTime, r.ValidityTime))
	}
	group = append(group, avps.Unsigned32(code.ResultCode, r.ResultCode))
	if r.FinalUnitAction != nil {
		group = append(group, avps.Grouped(code.FinalUnitIndication,
			avps.Enumerated(code.FinalUnitAction, int32(*r.FinalUnitAction))))
	}
	return avps.Grouped(code.MultipleServicesCreditControl, group...)
}

// Message builds a standalone CCA for buffering.
func (a *Answer) Message(parser *dict.Parser) *diam.Message {
	m := diam.NewRequest(code.CreditControl, code.CreditControlApplication, parser).Answer(a.ResultCode)
	for _, x := range a.AVPs() {
		m.AddAVP(x)
	}
	return m
}

// ParseAnswer reads back an answer built by Message.
func ParseAnswer(m *diam.Message) (*Answer, error) {
	rc, ok := avps.Uint(avps.Find(m.AVP, code.ResultCode))
	if !ok {
		return nil, errors.New("answer without Result-Code")
	}
	a := &Answer{ResultCode: uint32(rc)}
	if t, ok := avps.Uint(avps.Find(m.AVP, code.CCRequestType)); ok {
		a.RequestType = RequestType(t)
	}
	if n, ok := avps.Uint(avps.Find(m.AVP, code.CCRequestNumber)); ok {
		a.RequestNumber = uint32(n)
	}
	for _, mscc := range avps.FindAll(m.AVP, code.MultipleServicesCreditControl) {
		group := avps.Group(mscc)
		var r RatingResult
		if v, ok := avps.Uint(avps.Find(avps.Group(avps.Find(group, code.GrantedServiceUnit)), code.CCTotalOctets)); ok {
			r.GrantedUnits = int64(v)
		}
		if v, ok := avps.Uint(avps.Find(group, code.RatingGroup)); ok {
			rg := uint32(v)
			r.RatingGroup = &rg
		}
		if v, ok := avps.Uint(avps.Find(group, code.ServiceIdentifier)); ok {
			si := uint32(v)
			r.ServiceIdentifier = &si
		}
		if v, ok := avps.Uint(avps.Find(group, code.ValidityTime)); ok {
			r.ValidityTime = uint32(v)
		}
		if v, ok := avps.Uint(avps.Find(group, code.ResultCode)); ok {
			r.ResultCode = uint32(v)
		}
		if v, ok := avps.Int(avps.Find(avps.Group(avps.Find(group, code.FinalUnitIndication)), code.FinalUnitAction)); ok {
			fua := quota.FinalUnitAction(v)
			r.FinalUnitAction = &fua
		}
		a.Results = append(a.Results, r)
	}
	return a, nil
}

// requestIdentity returns CC-Request-Type and CC-Request-Number of a buffered CCR.
func requestIdentity(m *diam.Message) (RequestType, uint32, bool) {
	t, ok := avps.Uint(avps.Find(m.AVP, code.CCRequestType))
	if !ok {
		return 0, 0, false
	}
	n, ok := avps.Uint(avps.Find(m.AVP, code.CCRequestNumber))
	if !ok {
		return 0, 0, false
	}
	return RequestType(t), uint32(n), true
}
