package procurement

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"studioops/internal/models"
	"studioops/internal/response"
	"studioops/internal/rfq"
)

// CreateClientQuote generates the client-facing quote document for an
// RFQ from its accepted supplier quotes. Additive only: the RFQ and its
// quotes are left untouched.
func (h *Handler) CreateClientQuote(w http.ResponseWriter, r *http.Request, rfqID string) {
	rec, err := h.loadRFQ(rfqID)
	if err != nil {
		response.DomainErr(w, err)
		return
	}

	rows, err := h.DB.Query(`SELECT q.id, q.total_amount FROM quotes q
		JOIN supplier_rfqs sr ON q.supplier_rfq_id=sr.id
		WHERE sr.rfq_id=? AND q.status=? ORDER BY q.submitted_at, q.id`, rfqID, rfq.QuoteAccepted)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	var quoteIDs []string
	var total float64
	for rows.Next() {
		var id string
		var amount float64
		if err := rows.Scan(&id, &amount); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		quoteIDs = append(quoteIDs, id)
		total += amount
	}
	if err := rows.Err(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if len(quoteIDs) == 0 {
		response.DomainErr(w, rfq.ErrNoAcceptedQuotes)
		return
	}

	idsJSON, _ := json.Marshal(quoteIDs)
	cq := models.ClientQuote{
		ID:          h.NextIDFunc("CQ", "client_quotes", 4),
		RFQID:       rfqID,
		ProjectID:   rec.ProjectID,
		QuoteIDs:    quoteIDs,
		TotalAmount: total,
		CreatedBy:   h.username(r),
		CreatedAt:   h.nowString(),
	}
	_, err = h.DB.Exec(`INSERT INTO client_quotes (id, rfq_id, project_id, quote_ids, total_amount, created_by, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		cq.ID, cq.RFQID, cq.ProjectID, string(idsJSON), cq.TotalAmount, cq.CreatedBy, cq.CreatedAt)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.LogAudit(r, "create", "client_quote", cq.ID, fmt.Sprintf("Client quote from %d accepted quote(s), total %.2f", len(quoteIDs), total))
	w.WriteHeader(201)
	response.JSON(w, cq)
}

func scanClientQuote(scan func(dest ...interface{}) error) (models.ClientQuote, error) {
	var cq models.ClientQuote
	var idsJSON string
	err := scan(&cq.ID, &cq.RFQID, &cq.ProjectID, &idsJSON, &cq.TotalAmount, &cq.CreatedBy, &cq.CreatedAt)
	if err != nil {
		return cq, err
	}
	if err := json.Unmarshal([]byte(idsJSON), &cq.QuoteIDs); err != nil {
		cq.QuoteIDs = []string{}
	}
	return cq, nil
}

// ListClientQuotes returns all client quotes, optionally filtered by RFQ.
func (h *Handler) ListClientQuotes(w http.ResponseWriter, r *http.Request) {
	query := `SELECT id, rfq_id, COALESCE(project_id,''), quote_ids, total_amount, created_by, created_at FROM client_quotes`
	var args []interface{}
	if rid := r.URL.Query().Get("rfq_id"); rid != "" {
		query += " WHERE rfq_id=?"
		args = append(args, rid)
	}
	query += " ORDER BY created_at DESC"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	items := []models.ClientQuote{}
	for rows.Next() {
		cq, err := scanClientQuote(rows.Scan)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		items = append(items, cq)
	}
	response.JSON(w, items)
}

// GetClientQuote returns a single client quote.
func (h *Handler) GetClientQuote(w http.ResponseWriter, r *http.Request, id string) {
	row := h.DB.QueryRow(`SELECT id, rfq_id, COALESCE(project_id,''), quote_ids, total_amount, created_by, created_at FROM client_quotes WHERE id=?`, id)
	cq, err := scanClientQuote(row.Scan)
	if err == sql.ErrNoRows {
		response.DomainErr(w, &rfq.NotFoundError{Entity: "client quote", ID: id})
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, cq)
}
