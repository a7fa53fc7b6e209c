package procurement

import (
	"database/sql"
	"net/http"
	"time"

	"studioops/internal/audit"
	"studioops/internal/models"
	"studioops/internal/rfq"
	"studioops/internal/websocket"
)

// Handler holds dependencies for procurement handlers.
type Handler struct {
	DB         *sql.DB
	Hub        *websocket.Hub
	NextIDFunc func(prefix, table string, digits int) string

	StudioName   string
	StudioEmail  string
	ExportRowCap int

	// NowFunc overrides the clock in tests. Nil means time.Now.
	NowFunc func() time.Time
}

func (h *Handler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now()
}

func (h *Handler) nowString() string {
	return h.now().Format(time.RFC3339)
}

// LogAudit records an audit row attributed to the requesting user and
// their client IP, and broadcasts the change.
func (h *Handler) LogAudit(r *http.Request, action, module, recordID, summary string) {
	audit.Log(h.DB, h.Hub, audit.Username(r), audit.ClientIP(r), action, module, recordID, summary)
}

func (h *Handler) username(r *http.Request) string {
	return audit.Username(r)
}

// loadRFQ reads the RFQ header row. Lazy expiry is applied: a non-terminal
// RFQ whose deadline has passed is flipped to expired before it is
// returned, so every reader observes the derived status.
func (h *Handler) loadRFQ(id string) (models.RFQ, error) {
	var rec models.RFQ
	err := h.DB.QueryRow(`SELECT id, number, title, COALESCE(description,''), status, COALESCE(project_id,''),
		created_by, created_at, updated_at, sent_at, COALESCE(response_deadline,''), COALESCE(valid_until,''), lock_version
		FROM rfqs WHERE id=?`, id).
		Scan(&rec.ID, &rec.Number, &rec.Title, &rec.Description, &rec.Status, &rec.ProjectID,
			&rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt, &rec.SentAt, &rec.ResponseDeadline, &rec.ValidUntil, &rec.LockVersion)
	if err == sql.ErrNoRows {
		return rec, &rfq.NotFoundError{Entity: "RFQ", ID: id}
	}
	if err != nil {
		return rec, err
	}

	effective := rfq.ExpiryStatus(rfq.Status(rec.Status), rec.ResponseDeadline, rec.ValidUntil, h.now())
	if string(effective) != rec.Status {
		res, err := h.DB.Exec(`UPDATE rfqs SET status=?, updated_at=?, lock_version=lock_version+1 WHERE id=? AND lock_version=?`,
			string(effective), h.nowString(), rec.ID, rec.LockVersion)
		if err != nil {
			return rec, err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			rec.Status = string(effective)
			rec.LockVersion++
		} else {
			// Raced with another writer; re-read the settled row.
			return h.loadRFQ(id)
		}
	}
	return rec, nil
}

// loadLineItems reads an RFQ's line items in display order.
func (h *Handler) loadLineItems(rfqID string) ([]models.RFQLineItem, error) {
	rows, err := h.DB.Query(`SELECT id, rfq_id, description, quantity, COALESCE(specifications,''), sort_order
		FROM rfq_line_items WHERE rfq_id=? ORDER BY sort_order, id`, rfqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []models.RFQLineItem{}
	for rows.Next() {
		var li models.RFQLineItem
		if err := rows.Scan(&li.ID, &li.RFQID, &li.Description, &li.Quantity, &li.Specifications, &li.SortOrder); err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

// loadSupplierRFQs reads an RFQ's supplier invitations joined with the
// supplier directory for display names.
func (h *Handler) loadSupplierRFQs(rfqID string) ([]models.SupplierRFQ, error) {
	rows, err := h.DB.Query(`SELECT sr.id, sr.rfq_id, COALESCE(sr.supplier_id,''), COALESCE(s.name,''),
		COALESCE(sr.vendor_name,''), COALESCE(sr.vendor_email,''), COALESCE(sr.access_token,''),
		sr.sent_at, sr.viewed_at, sr.response_status
		FROM supplier_rfqs sr LEFT JOIN suppliers s ON sr.supplier_id=s.id
		WHERE sr.rfq_id=? ORDER BY sr.id`, rfqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.SupplierRFQ{}
	for rows.Next() {
		var sr models.SupplierRFQ
		if err := rows.Scan(&sr.ID, &sr.RFQID, &sr.SupplierID, &sr.SupplierName,
			&sr.VendorName, &sr.VendorEmail, &sr.AccessToken,
			&sr.SentAt, &sr.ViewedAt, &sr.ResponseStatus); err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

// loadQuoteLines reads the priced lines of one quote.
func (h *Handler) loadQuoteLines(quoteID string) ([]models.QuoteLineItem, error) {
	rows, err := h.DB.Query(`SELECT id, quote_id, rfq_line_item_id, unit_price, quantity, total_price,
		lead_time_days, COALESCE(availability,''), COALESCE(notes,'')
		FROM quote_line_items WHERE quote_id=? ORDER BY id`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []models.QuoteLineItem{}
	for rows.Next() {
		var l models.QuoteLineItem
		if err := rows.Scan(&l.ID, &l.QuoteID, &l.RFQLineItemID, &l.UnitPrice, &l.Quantity, &l.TotalPrice,
			&l.LeadTimeDays, &l.Availability, &l.Notes); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func scanQuote(rows *sql.Rows) (models.Quote, error) {
	var q models.Quote
	err := rows.Scan(&q.ID, &q.SupplierRFQID, &q.QuoteNumber, &q.Version, &q.Status,
		&q.TotalAmount, &q.ShippingCost, &q.LeadTimeDays, &q.ValidUntil, &q.SubmittedAt, &q.Notes)
	return q, err
}

const quoteColumns = `q.id, q.supplier_rfq_id, COALESCE(q.quote_number,''), q.version, q.status,
	q.total_amount, q.shipping_cost, q.lead_time_days, COALESCE(q.valid_until,''), q.submitted_at, COALESCE(q.notes,'')`

// loadQuoteHistory reads every quote version submitted against an RFQ,
// newest first.
func (h *Handler) loadQuoteHistory(rfqID string) ([]models.Quote, error) {
	rows, err := h.DB.Query(`SELECT `+quoteColumns+` FROM quotes q
		WHERE q.supplier_rfq_id IN (SELECT id FROM supplier_rfqs WHERE rfq_id=?)
		ORDER BY q.submitted_at DESC, q.id DESC`, rfqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	quotes := []models.Quote{}
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// loadComparisonQuotes reads the quotes under comparison for an RFQ: the
// latest valid (submitted or accepted) version per supplier invitation,
// with line items attached, ordered by submission time so best-price
// tie-breaks are reproducible.
func (h *Handler) loadComparisonQuotes(rfqID string) ([]models.Quote, error) {
	rows, err := h.DB.Query(`SELECT `+quoteColumns+` FROM quotes q
		WHERE q.supplier_rfq_id IN (SELECT id FROM supplier_rfqs WHERE rfq_id=?)
		AND q.status IN ('submitted','accepted')
		AND q.version = (
			SELECT MAX(q2.version) FROM quotes q2
			WHERE q2.supplier_rfq_id = q.supplier_rfq_id AND q2.status IN ('submitted','accepted')
		)
		ORDER BY q.submitted_at, q.id`, rfqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	quotes := []models.Quote{}
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range quotes {
		lines, err := h.loadQuoteLines(quotes[i].ID)
		if err != nil {
			return nil, err
		}
		quotes[i].LineItems = lines
	}
	return quotes, nil
}

// transitionRFQ writes a new status under the optimistic lock read with
// the RFQ. Zero rows affected means another writer got there first.
func (h *Handler) transitionRFQ(rec models.RFQ, newStatus rfq.Status, extraSet string, extraArgs ...interface{}) error {
	query := `UPDATE rfqs SET status=?, updated_at=?, lock_version=lock_version+1`
	args := []interface{}{string(newStatus), h.nowString()}
	if extraSet != "" {
		query += ", " + extraSet
		args = append(args, extraArgs...)
	}
	query += ` WHERE id=? AND lock_version=?`
	args = append(args, rec.ID, rec.LockVersion)

	res, err := h.DB.Exec(query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &rfq.StaleStateError{RFQID: rec.ID}
	}
	return nil
}
