// Package code holds the Diameter Credit-Control numbers used by the OCS.
package code

// Application and command
const (
	CreditControlApplication uint32 = 4
	CreditControl            uint32 = 272
)

// AVP codes
const (
	AuthApplicationId             uint32 = 258
	OriginHost                    uint32 = 264
	OriginRealm                   uint32 = 296
	DestinationRealm              uint32 = 283
	SessionId                     uint32 = 263
	ResultCode                    uint32 = 268
	CCRequestNumber               uint32 = 415
	CCRequestType                 uint32 = 416
	CCTotalOctets                 uint32 = 421
	CreditControlFailureHandling  uint32 = 427
	DirectDebitingFailureHandling uint32 = 428
	FinalUnitIndication           uint32 = 430
	GrantedServiceUnit            uint32 = 431
	RatingGroup                   uint32 = 432
	RequestedAction               uint32 = 436
	RequestedServiceUnit          uint32 = 437
	ServiceIdentifier             uint32 = 439
	SubscriptionId                uint32 = 443
	SubscriptionIdData            uint32 = 444
	UsedServiceUnit               uint32 = 446
	ValidityTime                  uint32 = 448
	FinalUnitAction               uint32 = 449
	SubscriptionIdType            uint32 = 450
	MultipleServicesCreditControl uint32 = 456
)

// CC-Request-Type values
const (
	InitialRequest     uint32 = 1
	UpdateRequest      uint32 = 2
	TerminationRequest uint32 = 3
	EventRequest       uint32 = 4
)

// Subscription-Id-Type values
const (
	EndUserE164 int32 = 0
	EndUserIMSI int32 = 1
)

// Final-Unit-Action values
const (
	FinalUnitActionTerminate      int32 = 0
	FinalUnitActionRedirect       int32 = 1
	FinalUnitActionRestrictAccess int32 = 2
)

// Result codes
const (
	DiameterSuccess            uint32 = 2001
	DiameterCreditLimitReached uint32 = 4012
	DiameterUnableToComply     uint32 = 5012
	DiameterUnknownSessionId   uint32 = 5002
	DiameterInvalidAvpValue    uint32 = 5004
	DiameterMissingAvp         uint32 = 5005
	DiameterUserUnknown        uint32 = 5030
)
