package rfq

import (
	"time"

	"studioops/internal/models"
)

// ValidateSend checks that an RFQ may be sent to the given supplier
// selection. The selection may mix registered supplier ids and free-text
// vendor invitations; it must not be empty, and the RFQ must carry at
// least one line item.
func ValidateSend(status Status, lineItemCount, selectionCount int) error {
	if err := checkTransition(status, EventSend); err != nil {
		return err
	}
	if selectionCount == 0 {
		return &ValidationError{Field: "suppliers", Message: "selection must not be empty"}
	}
	if lineItemCount == 0 {
		return &ValidationError{Field: "line_items", Message: "RFQ must have at least one line item before sending"}
	}
	return nil
}

// SuppliersToSend filters a supplier selection down to the ids that have
// not already been sent this RFQ. Already-sent suppliers are skipped
// rather than re-invited, so repeating a send call is a per-supplier
// no-op while still covering newly added suppliers.
func SuppliersToSend(invited []models.SupplierRFQ, selection []string) []string {
	sent := make(map[string]bool, len(invited))
	for _, inv := range invited {
		if inv.SupplierID != "" && inv.SentAt != nil {
			sent[inv.SupplierID] = true
		}
	}
	var out []string
	seen := make(map[string]bool, len(selection))
	for _, id := range selection {
		if id == "" || sent[id] || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// DeriveQuoteCoverage computes the post-submission status of a sent RFQ
// from its invited suppliers' response statuses. Declined invitations
// count as resolved when deciding full coverage; an RFQ where every
// invitation is resolved but none submitted stays sent.
func DeriveQuoteCoverage(invited []models.SupplierRFQ) Status {
	submitted, resolved := 0, 0
	for _, inv := range invited {
		switch inv.ResponseStatus {
		case ResponseSubmitted, ResponseAccepted, ResponseRejected:
			submitted++
			resolved++
		case ResponseDeclined:
			resolved++
		}
	}
	switch {
	case len(invited) == 0 || submitted == 0:
		return StatusSent
	case resolved == len(invited):
		return StatusFullyQuoted
	default:
		return StatusPartiallyQuoted
	}
}

// ApplyQuoteSubmitted returns the RFQ status after a supplier submits a
// quote, or an InvalidTransitionError if submissions are not accepted in
// the current status.
func ApplyQuoteSubmitted(status Status, invited []models.SupplierRFQ) (Status, error) {
	if err := checkTransition(status, EventQuoteSubmitted); err != nil {
		return status, err
	}
	return DeriveQuoteCoverage(invited), nil
}

// ValidateAccept checks that a quote may be accepted: the RFQ must be
// in a quoted or quote_accepted status and the quote itself still
// submitted. Competing submitted quotes are left untouched by
// acceptance; each can be accepted or rejected explicitly afterwards,
// so a multi-supplier RFQ ends up with one accepted quote per
// invitation.
func ValidateAccept(status Status, quoteStatus string) error {
	if err := checkTransition(status, EventAcceptQuote); err != nil {
		return err
	}
	if quoteStatus != QuoteSubmitted {
		return &ValidationError{Field: "quote", Message: "only a submitted quote can be accepted"}
	}
	return nil
}

// ValidateReject checks that a quote may be rejected.
func ValidateReject(status Status, quoteStatus string) error {
	if err := checkTransition(status, EventRejectQuote); err != nil {
		return err
	}
	if quoteStatus != QuoteSubmitted {
		return &ValidationError{Field: "quote", Message: "only a submitted quote can be rejected"}
	}
	return nil
}

// ValidateCancel checks that an RFQ may be cancelled. Cancellation is
// irreversible and unavailable once a terminal status is reached.
func ValidateCancel(status Status) error {
	return checkTransition(status, EventCancel)
}

// ValidateDelete checks the delete guard: an RFQ that left draft must be
// cancelled before it can be deleted.
func ValidateDelete(status Status) error {
	if status != StatusDraft && status != StatusCancelled {
		return &InvalidTransitionError{Status: status, Event: "delete"}
	}
	return nil
}

// ExpiryStatus lazily derives expiration: a non-terminal RFQ whose
// response deadline or validity window has passed reads as expired.
// Timestamps are RFC 3339 or date-only strings; unparsable or empty
// values never expire an RFQ.
func ExpiryStatus(status Status, responseDeadline, validUntil string, now time.Time) Status {
	if status.Terminal() {
		return status
	}
	if deadlinePassed(responseDeadline, now) || deadlinePassed(validUntil, now) {
		return StatusExpired
	}
	return status
}

func deadlinePassed(value string, now time.Time) bool {
	if value == "" {
		return false
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return now.After(t)
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		// Date-only deadlines cover the whole day.
		return now.After(t.Add(24 * time.Hour))
	}
	return false
}
