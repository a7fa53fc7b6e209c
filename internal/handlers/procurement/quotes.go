package procurement

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"studioops/internal/models"
	"studioops/internal/response"
	"studioops/internal/rfq"
	"studioops/internal/validation"
)

// SubmitQuote records a supplier's quote against an RFQ. A supplier may
// resubmit; each submission is stored as a new version and only the
// latest valid version per supplier enters comparison.
func (h *Handler) SubmitQuote(w http.ResponseWriter, r *http.Request, rfqID string) {
	rec, err := h.loadRFQ(rfqID)
	if err != nil {
		response.DomainErr(w, err)
		return
	}

	var q models.Quote
	if err := response.DecodeBody(r, &q); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	// Resolve the invitation the quote belongs to.
	var srID int
	var responseStatus string
	err = h.DB.QueryRow(`SELECT id, response_status FROM supplier_rfqs WHERE id=? AND rfq_id=?`, q.SupplierRFQID, rfqID).
		Scan(&srID, &responseStatus)
	if err == sql.ErrNoRows {
		response.DomainErr(w, &rfq.NotFoundError{Entity: "invitation", ID: fmt.Sprint(q.SupplierRFQID)})
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if responseStatus == rfq.ResponseAccepted || responseStatus == rfq.ResponseRejected {
		response.DomainErr(w, &rfq.ValidationError{Field: "supplier_rfq_id", Message: "invitation is already resolved"})
		return
	}

	if err := h.validateQuoteBody(rfqID, &q); err != nil {
		response.DomainErr(w, err)
		return
	}

	invited, err := h.loadSupplierRFQs(rfqID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	// Compute the post-submission status as if this invitation already
	// counts as submitted.
	for i := range invited {
		if invited[i].ID == srID {
			invited[i].ResponseStatus = rfq.ResponseSubmitted
		}
	}
	newStatus, err := rfq.ApplyQuoteSubmitted(rfq.Status(rec.Status), invited)
	if err != nil {
		response.DomainErr(w, err)
		return
	}

	var version int
	h.DB.QueryRow(`SELECT COALESCE(MAX(version),0)+1 FROM quotes WHERE supplier_rfq_id=?`, srID).Scan(&version)

	q.ID = h.NextIDFunc("QTE", "quotes", 4)
	q.Version = version
	q.Status = rfq.QuoteSubmitted
	q.SubmittedAt = h.nowString()

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO quotes (id, supplier_rfq_id, quote_number, version, status, total_amount, shipping_cost, lead_time_days, valid_until, submitted_at, notes)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		q.ID, srID, q.QuoteNumber, q.Version, q.Status, q.TotalAmount, q.ShippingCost, q.LeadTimeDays, q.ValidUntil, q.SubmittedAt, q.Notes); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	for i, l := range q.LineItems {
		res, err := tx.Exec(`INSERT INTO quote_line_items (quote_id, rfq_line_item_id, unit_price, quantity, total_price, lead_time_days, availability, notes)
			VALUES (?,?,?,?,?,?,?,?)`,
			q.ID, l.RFQLineItemID, l.UnitPrice, l.Quantity, l.TotalPrice, l.LeadTimeDays, l.Availability, l.Notes)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		lid, _ := res.LastInsertId()
		q.LineItems[i].ID = int(lid)
		q.LineItems[i].QuoteID = q.ID
	}
	if _, err := tx.Exec(`UPDATE supplier_rfqs SET response_status=? WHERE id=?`, rfq.ResponseSubmitted, srID); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	res, err := tx.Exec(`UPDATE rfqs SET status=?, updated_at=?, lock_version=lock_version+1 WHERE id=? AND lock_version=?`,
		string(newStatus), h.nowString(), rfqID, rec.LockVersion)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.DomainErr(w, &rfq.StaleStateError{RFQID: rfqID})
		return
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.LogAudit(r, "quote_submitted", "rfq", rfqID, fmt.Sprintf("Quote %s v%d submitted (total %.2f)", q.ID, q.Version, q.TotalAmount))
	w.WriteHeader(201)
	response.JSON(w, q)
}

// validateQuoteBody checks a submitted quote's shape, bounds, arithmetic
// consistency and that every priced line targets a line item of this RFQ.
func (h *Handler) validateQuoteBody(rfqID string, q *models.Quote) error {
	ve := &validation.ValidationErrors{}
	if len(q.LineItems) == 0 {
		return &rfq.ValidationError{Field: "line_items", Message: "quote must price at least one line item"}
	}
	validation.ValidateNonNegativeFloat(ve, "shipping_cost", q.ShippingCost)
	validation.ValidateMaxPrice(ve, "total_amount", q.TotalAmount)
	validation.ValidateLeadTime(ve, "lead_time_days", q.LeadTimeDays)
	if q.ValidUntil != "" {
		validation.ValidateDate(ve, "valid_until", q.ValidUntil)
	}
	for i, l := range q.LineItems {
		field := fmt.Sprintf("line_items[%d]", i)
		validation.ValidateMaxPrice(ve, field+".unit_price", l.UnitPrice)
		validation.ValidateMaxQuantity(ve, field+".quantity", l.Quantity)
		validation.ValidateLeadTime(ve, field+".lead_time_days", l.LeadTimeDays)
	}
	if ve.HasErrors() {
		return &rfq.ValidationError{Field: ve.Errors[0].Field, Message: ve.Errors[0].Message}
	}

	if err := rfq.ValidateQuoteTotals(*q); err != nil {
		return err
	}

	lines, err := h.loadLineItems(rfqID)
	if err != nil {
		return err
	}
	known := make(map[int]bool, len(lines))
	for _, l := range lines {
		known[l.ID] = true
	}
	seen := make(map[int]bool, len(q.LineItems))
	for i, l := range q.LineItems {
		field := fmt.Sprintf("line_items[%d].rfq_line_item_id", i)
		if !known[l.RFQLineItemID] {
			return &rfq.ValidationError{Field: field, Message: "does not reference a line item of this RFQ"}
		}
		if seen[l.RFQLineItemID] {
			return &rfq.ValidationError{Field: field, Message: "line item priced more than once"}
		}
		seen[l.RFQLineItemID] = true
	}
	return nil
}

// ListQuotes returns the full version history of quotes against an RFQ,
// newest first.
func (h *Handler) ListQuotes(w http.ResponseWriter, r *http.Request, rfqID string) {
	if _, err := h.loadRFQ(rfqID); err != nil {
		response.DomainErr(w, err)
		return
	}
	quotes, err := h.loadQuoteHistory(rfqID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	for i := range quotes {
		lines, err := h.loadQuoteLines(quotes[i].ID)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		quotes[i].LineItems = lines
	}
	response.JSON(w, quotes)
}

// loadQuote reads a quote by id along with its owning invitation and RFQ.
func (h *Handler) loadQuote(id string) (models.Quote, string, error) {
	var q models.Quote
	var rfqID string
	err := h.DB.QueryRow(`SELECT `+quoteColumns+`, sr.rfq_id FROM quotes q
		JOIN supplier_rfqs sr ON q.supplier_rfq_id=sr.id WHERE q.id=?`, id).
		Scan(&q.ID, &q.SupplierRFQID, &q.QuoteNumber, &q.Version, &q.Status,
			&q.TotalAmount, &q.ShippingCost, &q.LeadTimeDays, &q.ValidUntil, &q.SubmittedAt, &q.Notes, &rfqID)
	if err == sql.ErrNoRows {
		return q, "", &rfq.NotFoundError{Entity: "quote", ID: id}
	}
	return q, rfqID, err
}

// AcceptQuote accepts one supplier quote. The RFQ moves to (or stays
// in) quote_accepted; competing submitted quotes stay submitted until
// each is accepted or rejected explicitly, so an RFQ split across
// suppliers can carry one accepted quote per invitation.
func (h *Handler) AcceptQuote(w http.ResponseWriter, r *http.Request, quoteID string) {
	q, rfqID, err := h.loadQuote(quoteID)
	if err != nil {
		response.DomainErr(w, err)
		return
	}
	rec, err := h.loadRFQ(rfqID)
	if err != nil {
		response.DomainErr(w, err)
		return
	}
	if err := rfq.ValidateAccept(rfq.Status(rec.Status), q.Status); err != nil {
		response.DomainErr(w, err)
		return
	}

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	// The partial unique index on accepted quotes rejects a second
	// acceptance for the same invitation.
	if _, err := tx.Exec(`UPDATE quotes SET status=? WHERE id=?`, rfq.QuoteAccepted, quoteID); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			response.DomainErr(w, &rfq.ValidationError{Field: "quote", Message: "invitation already has an accepted quote"})
			return
		}
		response.Err(w, err.Error(), 500)
		return
	}
	if _, err := tx.Exec(`UPDATE supplier_rfqs SET response_status=? WHERE id=?`, rfq.ResponseAccepted, q.SupplierRFQID); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	res, err := tx.Exec(`UPDATE rfqs SET status=?, updated_at=?, lock_version=lock_version+1 WHERE id=? AND lock_version=?`,
		string(rfq.StatusQuoteAccepted), h.nowString(), rfqID, rec.LockVersion)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.DomainErr(w, &rfq.StaleStateError{RFQID: rfqID})
		return
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.LogAudit(r, "accept_quote", "rfq", rfqID, "Accepted quote "+quoteID)
	h.GetRFQ(w, r, rfqID)
}

// RejectQuote rejects one supplier quote. The invitation reads rejected
// and the RFQ's coverage status is re-derived.
func (h *Handler) RejectQuote(w http.ResponseWriter, r *http.Request, quoteID string) {
	q, rfqID, err := h.loadQuote(quoteID)
	if err != nil {
		response.DomainErr(w, err)
		return
	}
	rec, err := h.loadRFQ(rfqID)
	if err != nil {
		response.DomainErr(w, err)
		return
	}
	if err := rfq.ValidateReject(rfq.Status(rec.Status), q.Status); err != nil {
		response.DomainErr(w, err)
		return
	}

	h.DB.Exec(`UPDATE quotes SET status=? WHERE id=?`, rfq.QuoteRejected, quoteID)
	h.DB.Exec(`UPDATE supplier_rfqs SET response_status=? WHERE id=?`, rfq.ResponseRejected, q.SupplierRFQID)

	// Rejecting a competitor after an acceptance only resolves that
	// quote; the RFQ stays quote_accepted.
	if rec.Status != string(rfq.StatusQuoteAccepted) {
		invited, err := h.loadSupplierRFQs(rfqID)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		newStatus := rfq.DeriveQuoteCoverage(invited)
		if string(newStatus) != rec.Status {
			if err := h.transitionRFQ(rec, newStatus, ""); err != nil {
				response.DomainErr(w, err)
				return
			}
		}
	}

	h.LogAudit(r, "reject_quote", "rfq", rfqID, "Rejected quote "+quoteID)
	h.GetRFQ(w, r, rfqID)
}

// DeclineSupplierRFQ marks an invitation declined without a quote.
func (h *Handler) DeclineSupplierRFQ(w http.ResponseWriter, r *http.Request, srID string) {
	var rfqID, responseStatus string
	err := h.DB.QueryRow(`SELECT rfq_id, response_status FROM supplier_rfqs WHERE id=?`, srID).Scan(&rfqID, &responseStatus)
	if err == sql.ErrNoRows {
		response.DomainErr(w, &rfq.NotFoundError{Entity: "invitation", ID: srID})
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if responseStatus != rfq.ResponsePending {
		response.DomainErr(w, &rfq.ValidationError{Field: "response_status", Message: "only a pending invitation can be declined"})
		return
	}
	rec, err := h.loadRFQ(rfqID)
	if err != nil {
		response.DomainErr(w, err)
		return
	}
	if rfq.Status(rec.Status).Terminal() {
		response.DomainErr(w, &rfq.InvalidTransitionError{Status: rfq.Status(rec.Status), Event: "decline"})
		return
	}

	h.DB.Exec(`UPDATE supplier_rfqs SET response_status=? WHERE id=?`, rfq.ResponseDeclined, srID)

	invited, err := h.loadSupplierRFQs(rfqID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	newStatus := rfq.DeriveQuoteCoverage(invited)
	if string(newStatus) != rec.Status {
		if err := h.transitionRFQ(rec, newStatus, ""); err != nil {
			response.DomainErr(w, err)
			return
		}
	}

	h.LogAudit(r, "decline", "rfq", rfqID, "Supplier declined invitation "+srID)
	response.JSON(w, map[string]string{"status": "declined"})
}
