package models

import (
	"fmt"
	"time"
)

// OutcomeKind classifies a single (file, endpoint) delivery attempt.
type OutcomeKind int

const (
	OutcomeDelivered OutcomeKind = iota
	OutcomeRejectedByServer
	OutcomeTransportFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeRejectedByServer:
		return "rejected"
	case OutcomeTransportFailure:
		return "transport_failure"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// DispatchOutcome is the result of sending one file to one endpoint.
type DispatchOutcome struct {
	FilePath    string
	Endpoint    WebhookEndpoint
	Kind        OutcomeKind
	StatusCode  int   // set for Delivered and RejectedByServer
	Err         error // set for TransportFailure and RejectedByServer
	Duration    time.Duration
	AttemptedAt time.Time
}

// Delivered reports whether the endpoint accepted the file.
func (o DispatchOutcome) Delivered() bool {
	return o.Kind == OutcomeDelivered
}

// ErrorMessage returns the error text or an empty string.
func (o DispatchOutcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// AllDelivered is true iff at least one attempt was made and every attempt was delivered.
func AllDelivered(outcomes []DispatchOutcome) bool {
	if len(outcomes) == 0 {
		return false
	}
	for _, o := range outcomes {
		if !o.Delivered() {
			return false
		}
	}
	return true
}
