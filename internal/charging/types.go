package charging

import (
	"fmt"

	"github.com/free5gc/ocs/internal/diameter/code"
	"github.com/free5gc/ocs/internal/quota"
)

type RequestType uint32

const (
	Initial     = RequestType(code.InitialRequest)
	Update      = RequestType(code.UpdateRequest)
	Termination = RequestType(code.TerminationRequest)
	Event       = RequestType(code.EventRequest)
)

func (t RequestType) String() string {
	switch t {
	case Initial:
		return "INITIAL"
	case Update:
		return "UPDATE"
	case Termination:
		return "TERMINATION"
	case Event:
		return "EVENT"
	}
	return fmt.Sprintf("RequestType(%d)", uint32(t))
}

func (t RequestType) Valid() bool {
	return t >= Initial && t <= Event
}

// Subscriber carries the identities found in Subscription-Id.
type Subscriber struct {
	MSISDN string
	IMSI   string
}

// ID is the account identity used against the balance store.
func (s Subscriber) ID() string {
	if s.MSISDN != "" {
		return s.MSISDN
	}
	return s.IMSI
}

// NoUnits marks an absent Requested-Service-Unit.
const NoUnits int64 = -1

// RatingContext is one MSCC group of a request.
type RatingContext struct {
	RatingGroup       *uint32
	ServiceIdentifier *uint32
	RequestedUnits    int64
	UsedUnits         int64
}

// Request is a decoded CCR. Raw is the serialized request, kept to recognize
// retransmissions.
type Request struct {
	SessionID        string
	OriginHost       string
	OriginRealm      string
	DestinationRealm string
	RequestType      RequestType
	RequestNumber    *uint32
	Subscriber       Subscriber

	RequestedAction *int32
	CCFH            *int32
	DDFH            *int32

	Contexts []RatingContext
	Raw      []byte
}

// RatingResult is one MSCC group of an answer.
type RatingResult struct {
	RatingGroup       *uint32
	ServiceIdentifier *uint32
	GrantedUnits      int64
	ResultCode        uint32
	FinalUnitAction   *quota.FinalUnitAction
	ValidityTime      uint32
}

type Answer struct {
	ResultCode    uint32
	RequestType   RequestType
	RequestNumber uint32
	Results       []RatingResult

	// Retransmission is set when the answer was replayed from the session buffer.
	Retransmission bool
}

func (a *Answer) GrantedUnits() int64 {
	var total int64
	for _, r := range a.Results {
		total += r.GrantedUnits
	}
	return total
}
