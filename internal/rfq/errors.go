package rfq

import (
	"errors"
	"fmt"
)

// Error kind strings carried in the API envelope so callers can
// distinguish failure classes without parsing messages.
const (
	KindValidation        = "validation"
	KindInvalidTransition = "invalid_transition"
	KindNoAcceptedQuotes  = "no_accepted_quotes"
	KindStaleState        = "stale_state"
	KindNotFound          = "not_found"
)

// ValidationError reports malformed input on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// InvalidTransitionError reports a lifecycle transition not permitted
// from the current status.
type InvalidTransitionError struct {
	Status Status
	Event  Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an RFQ in %s status", e.Event, e.Status)
}

// StaleStateError reports that a status write raced with a concurrent
// modification: the lock version read before the transition no longer
// matched at write time. The caller decides whether to re-read and retry.
type StaleStateError struct {
	RFQID string
}

func (e *StaleStateError) Error() string {
	return "RFQ " + e.RFQID + " was modified concurrently, reload and retry"
}

// NotFoundError reports a missing RFQ, quote, or line item reference.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " " + e.ID + " not found"
}

// ErrNoAcceptedQuotes is returned by client-quote generation when the RFQ
// has no quote in accepted status.
var ErrNoAcceptedQuotes = errors.New("RFQ has no accepted quotes")

// ErrorKind returns the envelope kind for a domain error, or "" for
// errors outside the taxonomy.
func ErrorKind(err error) string {
	var ve *ValidationError
	var te *InvalidTransitionError
	var se *StaleStateError
	var ne *NotFoundError
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &te):
		return KindInvalidTransition
	case errors.Is(err, ErrNoAcceptedQuotes):
		return KindNoAcceptedQuotes
	case errors.As(err, &se):
		return KindStaleState
	case errors.As(err, &ne):
		return KindNotFound
	}
	return ""
}
