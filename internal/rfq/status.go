package rfq

// Status is the lifecycle status of an RFQ. Values match the DB CHECK
// constraint on rfqs.status.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusSent            Status = "sent"
	StatusPartiallyQuoted Status = "partially_quoted"
	StatusFullyQuoted     Status = "fully_quoted"
	StatusQuoteAccepted   Status = "quote_accepted"
	StatusCancelled       Status = "cancelled"
	StatusExpired         Status = "expired"
)

// Event is a lifecycle trigger applied to an RFQ.
type Event string

const (
	EventSend           Event = "send"
	EventQuoteSubmitted Event = "quote_submitted"
	EventAcceptQuote    Event = "accept_quote"
	EventRejectQuote    Event = "reject_quote"
	EventCancel         Event = "cancel"
	EventExpire         Event = "expire"
)

// Quote statuses (quotes.status CHECK constraint).
const (
	QuoteSubmitted = "submitted"
	QuoteAccepted  = "accepted"
	QuoteRejected  = "rejected"
)

// Supplier response statuses (supplier_rfqs.response_status CHECK
// constraint).
const (
	ResponsePending   = "pending"
	ResponseSubmitted = "submitted"
	ResponseAccepted  = "accepted"
	ResponseRejected  = "rejected"
	ResponseDeclined  = "declined"
)

// transitions is the single auditable transition table. An event absent
// from a status's row is rejected with InvalidTransitionError. Send is
// permitted on an already-sent RFQ so newly added suppliers can be
// invited; per-supplier idempotence is handled by SuppliersToSend.
// Accept and reject stay available from quote_accepted: an RFQ can
// carry several accepted quotes, one per supplier invitation, and
// competing submitted quotes remain subject to explicit resolution
// after the first acceptance.
var transitions = map[Status]map[Event]bool{
	StatusDraft: {
		EventSend:   true,
		EventCancel: true,
		EventExpire: true,
	},
	StatusSent: {
		EventSend:           true,
		EventQuoteSubmitted: true,
		EventRejectQuote:    true,
		EventCancel:         true,
		EventExpire:         true,
	},
	StatusPartiallyQuoted: {
		EventSend:           true,
		EventQuoteSubmitted: true,
		EventAcceptQuote:    true,
		EventRejectQuote:    true,
		EventCancel:         true,
		EventExpire:         true,
	},
	StatusFullyQuoted: {
		EventQuoteSubmitted: true,
		EventAcceptQuote:    true,
		EventRejectQuote:    true,
		EventCancel:         true,
		EventExpire:         true,
	},
	StatusQuoteAccepted: {
		EventAcceptQuote: true,
		EventRejectQuote: true,
	},
	StatusCancelled: {},
	StatusExpired:   {},
}

// Terminal reports whether the RFQ's lifecycle is closed: no sending,
// submission, cancellation or expiry remains. quote_accepted is
// terminal in this sense even though its outstanding quotes can still
// be accepted or rejected.
func (s Status) Terminal() bool {
	return s == StatusQuoteAccepted || s == StatusCancelled || s == StatusExpired
}

// Valid reports whether s is a known RFQ status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanFire reports whether event e is permitted from status s.
func CanFire(s Status, e Event) bool {
	return transitions[s][e]
}

// checkTransition returns an InvalidTransitionError when e is not
// permitted from s.
func checkTransition(s Status, e Event) error {
	if !CanFire(s, e) {
		return &InvalidTransitionError{Status: s, Event: e}
	}
	return nil
}
