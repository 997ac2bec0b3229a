package ccasession

// Session field names in the replicated store.
const (
	FieldState                   = "state"
	FieldRequestTypeSet          = "requestTypeSet"
	FieldEventBased              = "eventBased"
	FieldTimerID                 = "timerId"
	FieldBufferedRequest         = "bufferedRequest"
	FieldTxTimerRequest          = "txTimerRequest"
	FieldGatheredRequestedAction = "gatheredRequestedAction"
	FieldGatheredCCFH            = "gatheredCCFH"
	FieldGatheredDDFH            = "gatheredDDFH"

	FieldSubscriber     = "subscriber"
	FieldRequestNumber  = "requestNumber"
	FieldBufferedAnswer = "bufferedAnswer"
	FieldReservations   = "reservations"
)

// NotGathered marks a counter whose AVP never arrived.
const NotGathered = -1
