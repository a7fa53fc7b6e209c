package procurement

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"studioops/internal/models"
	"studioops/internal/response"
	"studioops/internal/rfq"
	"studioops/internal/validation"
)

// ListRFQs returns RFQs, optionally filtered by status or project and
// paginated with page/limit query parameters.
func (h *Handler) ListRFQs(w http.ResponseWriter, r *http.Request) {
	var conds []string
	var args []interface{}
	if s := r.URL.Query().Get("status"); s != "" {
		conds = append(conds, "status=?")
		args = append(args, s)
	}
	if p := r.URL.Query().Get("project_id"); p != "" {
		conds = append(conds, "project_id=?")
		args = append(args, p)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := h.DB.QueryRow(`SELECT COUNT(*) FROM rfqs`+where, args...).Scan(&total); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	query := `SELECT id, number, title, COALESCE(description,''), status, COALESCE(project_id,''),
		created_by, created_at, updated_at, sent_at, COALESCE(response_deadline,''), COALESCE(valid_until,''), lock_version
		FROM rfqs` + where + " ORDER BY created_at DESC"

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	limit := 0
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, (page-1)*limit)
	}

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	items := []models.RFQ{}
	now := h.now()
	for rows.Next() {
		var rec models.RFQ
		if err := rows.Scan(&rec.ID, &rec.Number, &rec.Title, &rec.Description, &rec.Status, &rec.ProjectID,
			&rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt, &rec.SentAt, &rec.ResponseDeadline, &rec.ValidUntil, &rec.LockVersion); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		// Listings report the derived status without persisting it; the
		// detail read settles the row.
		rec.Status = string(rfq.ExpiryStatus(rfq.Status(rec.Status), rec.ResponseDeadline, rec.ValidUntil, now))
		items = append(items, rec)
	}
	response.JSONMeta(w, items, total, page, limit)
}

// GetRFQ returns a single RFQ with line items, supplier invitations and
// the quotes under comparison.
func (h *Handler) GetRFQ(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.loadRFQ(id)
	if err != nil {
		response.DomainErr(w, err)
		return
	}
	if rec.LineItems, err = h.loadLineItems(id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if rec.Suppliers, err = h.loadSupplierRFQs(id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if rec.Quotes, err = h.loadComparisonQuotes(id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, rec)
}

func (h *Handler) validateRFQBody(rec *models.RFQ) error {
	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "title", rec.Title)
	validation.ValidateMaxLength(ve, "title", rec.Title, validation.MaxStringLength)
	validation.ValidateMaxLength(ve, "description", rec.Description, validation.MaxStringLength)
	if rec.ResponseDeadline != "" {
		validation.ValidateDate(ve, "response_deadline", rec.ResponseDeadline)
	}
	if rec.ValidUntil != "" {
		validation.ValidateDate(ve, "valid_until", rec.ValidUntil)
	}
	for i, li := range rec.LineItems {
		field := fmt.Sprintf("line_items[%d]", i)
		validation.RequireField(ve, field+".description", li.Description)
		validation.ValidatePositiveInt(ve, field+".quantity", li.Quantity)
		validation.ValidateMaxQuantity(ve, field+".quantity", li.Quantity)
	}
	if ve.HasErrors() {
		return &rfq.ValidationError{Field: ve.Errors[0].Field, Message: ve.Errors[0].Message}
	}
	return nil
}

// CreateRFQ creates a new draft RFQ with its line items.
func (h *Handler) CreateRFQ(w http.ResponseWriter, r *http.Request) {
	var rec models.RFQ
	if err := response.DecodeBody(r, &rec); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	if err := h.validateRFQBody(&rec); err != nil {
		response.DomainErr(w, err)
		return
	}
	if rec.ProjectID != "" {
		var exists string
		if err := h.DB.QueryRow(`SELECT id FROM projects WHERE id=?`, rec.ProjectID).Scan(&exists); err != nil {
			response.DomainErr(w, &rfq.NotFoundError{Entity: "project", ID: rec.ProjectID})
			return
		}
	}

	rec.ID = h.NextIDFunc("RFQ", "rfqs", 4)
	rec.Number = rec.ID
	rec.Status = string(rfq.StatusDraft)
	rec.CreatedBy = h.username(r)
	now := h.nowString()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.LockVersion = 0

	_, err := h.DB.Exec(`INSERT INTO rfqs (id, number, title, description, status, project_id, created_by, created_at, updated_at, response_deadline, valid_until, lock_version)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,0)`,
		rec.ID, rec.Number, rec.Title, rec.Description, rec.Status, rec.ProjectID, rec.CreatedBy, rec.CreatedAt, rec.UpdatedAt, rec.ResponseDeadline, rec.ValidUntil)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	for i, li := range rec.LineItems {
		res, err := h.DB.Exec(`INSERT INTO rfq_line_items (rfq_id, description, quantity, specifications, sort_order) VALUES (?,?,?,?,?)`,
			rec.ID, li.Description, li.Quantity, li.Specifications, i)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		lid, _ := res.LastInsertId()
		rec.LineItems[i].ID = int(lid)
		rec.LineItems[i].RFQID = rec.ID
		rec.LineItems[i].SortOrder = i
	}

	h.LogAudit(r, "create", "rfq", rec.ID, "Created RFQ: "+rec.Title)
	w.WriteHeader(201)
	response.JSON(w, rec)
}

// UpdateRFQ updates a draft RFQ's header and replaces its line items.
// Once an RFQ has been sent its requested items are fixed; suppliers
// quoted against them.
func (h *Handler) UpdateRFQ(w http.ResponseWriter, r *http.Request, id string) {
	existing, err := h.loadRFQ(id)
	if err != nil {
		response.DomainErr(w, err)
		return
	}
	if existing.Status != string(rfq.StatusDraft) {
		response.DomainErr(w, &rfq.InvalidTransitionError{Status: rfq.Status(existing.Status), Event: "update"})
		return
	}

	var rec models.RFQ
	if err := response.DecodeBody(r, &rec); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	if err := h.validateRFQBody(&rec); err != nil {
		response.DomainErr(w, err)
		return
	}

	// Header update and line replacement commit together; a failed line
	// insert must not leave the RFQ without its items.
	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE rfqs SET title=?, description=?, project_id=?, response_deadline=?, valid_until=?, updated_at=?, lock_version=lock_version+1
		WHERE id=? AND lock_version=?`,
		rec.Title, rec.Description, rec.ProjectID, rec.ResponseDeadline, rec.ValidUntil, h.nowString(), id, existing.LockVersion)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.DomainErr(w, &rfq.StaleStateError{RFQID: id})
		return
	}

	if _, err := tx.Exec(`DELETE FROM rfq_line_items WHERE rfq_id=?`, id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	for i, li := range rec.LineItems {
		if _, err := tx.Exec(`INSERT INTO rfq_line_items (rfq_id, description, quantity, specifications, sort_order) VALUES (?,?,?,?,?)`,
			id, li.Description, li.Quantity, li.Specifications, i); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.LogAudit(r, "update", "rfq", id, "Updated RFQ")
	h.GetRFQ(w, r, id)
}

// DeleteRFQ deletes an RFQ. Only draft and cancelled RFQs may be
// deleted; anything sent must be cancelled first so the record of the
// solicitation survives.
func (h *Handler) DeleteRFQ(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.loadRFQ(id)
	if err != nil {
		response.DomainErr(w, err)
		return
	}
	if err := rfq.ValidateDelete(rfq.Status(rec.Status)); err != nil {
		response.DomainErr(w, err)
		return
	}

	if _, err := h.DB.Exec(`DELETE FROM rfqs WHERE id=?`, id); err != nil {
		// client_quotes references restrict deletion.
		response.Err(w, err.Error(), 500)
		return
	}
	h.LogAudit(r, "delete", "rfq", id, "Deleted RFQ")
	response.JSON(w, map[string]string{"status": "deleted"})
}

// SendRFQ dispatches an RFQ to a supplier selection. The selection mixes
// registered supplier ids and free-text vendor contacts; suppliers
// already sent this RFQ are skipped, so a repeated send only reaches
// newly added recipients.
func (h *Handler) SendRFQ(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.loadRFQ(id)
	if err != nil {
		response.DomainErr(w, err)
		return
	}

	var body struct {
		SupplierIDs []string `json:"supplier_ids"`
		Vendors     []struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"vendors"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	lines, err := h.loadLineItems(id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if err := rfq.ValidateSend(rfq.Status(rec.Status), len(lines), len(body.SupplierIDs)+len(body.Vendors)); err != nil {
		response.DomainErr(w, err)
		return
	}

	ve := &validation.ValidationErrors{}
	for i, v := range body.Vendors {
		field := fmt.Sprintf("vendors[%d]", i)
		validation.RequireField(ve, field+".name", v.Name)
		validation.RequireField(ve, field+".email", v.Email)
		validation.ValidateEmail(ve, field+".email", v.Email)
	}
	if ve.HasErrors() {
		response.DomainErr(w, &rfq.ValidationError{Field: ve.Errors[0].Field, Message: ve.Errors[0].Message})
		return
	}

	invited, err := h.loadSupplierRFQs(id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	now := h.nowString()
	newCount := 0
	for _, supplierID := range rfq.SuppliersToSend(invited, body.SupplierIDs) {
		var name string
		if err := h.DB.QueryRow(`SELECT name FROM suppliers WHERE id=?`, supplierID).Scan(&name); err != nil {
			response.DomainErr(w, &rfq.NotFoundError{Entity: "supplier", ID: supplierID})
			return
		}
		if _, err := h.DB.Exec(`INSERT INTO supplier_rfqs (rfq_id, supplier_id, access_token, sent_at, response_status) VALUES (?,?,?,?,?)`,
			id, supplierID, uuid.NewString(), now, rfq.ResponsePending); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		newCount++
	}
	for _, v := range body.Vendors {
		// Free-text vendors are deduped by email against prior sends.
		already := false
		for _, inv := range invited {
			if inv.VendorEmail != "" && strings.EqualFold(inv.VendorEmail, v.Email) && inv.SentAt != nil {
				already = true
				break
			}
		}
		if already {
			continue
		}
		if _, err := h.DB.Exec(`INSERT INTO supplier_rfqs (rfq_id, vendor_name, vendor_email, access_token, sent_at, response_status) VALUES (?,?,?,?,?,?)`,
			id, v.Name, v.Email, uuid.NewString(), now, rfq.ResponsePending); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		newCount++
	}

	if rec.Status == string(rfq.StatusDraft) {
		if err := h.transitionRFQ(rec, rfq.StatusSent, "sent_at=?", now); err != nil {
			response.DomainErr(w, err)
			return
		}
	}

	h.LogAudit(r, "send", "rfq", id, fmt.Sprintf("Sent RFQ to %d supplier(s)", newCount))
	h.GetRFQ(w, r, id)
}

// CancelRFQ cancels an RFQ. Cancellation is terminal.
func (h *Handler) CancelRFQ(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.loadRFQ(id)
	if err != nil {
		response.DomainErr(w, err)
		return
	}
	if err := rfq.ValidateCancel(rfq.Status(rec.Status)); err != nil {
		response.DomainErr(w, err)
		return
	}
	if err := h.transitionRFQ(rec, rfq.StatusCancelled, ""); err != nil {
		response.DomainErr(w, err)
		return
	}
	h.LogAudit(r, "cancel", "rfq", id, "Cancelled RFQ")
	h.GetRFQ(w, r, id)
}

// RFQDashboard returns procurement dashboard statistics.
func (h *Handler) RFQDashboard(w http.ResponseWriter, r *http.Request) {
	type DashboardRFQ struct {
		ID            string `json:"id"`
		Title         string `json:"title"`
		Status        string `json:"status"`
		Deadline      string `json:"response_deadline"`
		SupplierCount int    `json:"supplier_count"`
		ResponseCount int    `json:"response_count"`
		LineCount     int    `json:"line_count"`
	}
	type Dashboard struct {
		OpenRFQs          int            `json:"open_rfqs"`
		PendingResponses  int            `json:"pending_responses"`
		AcceptedThisMonth int            `json:"accepted_this_month"`
		RFQs              []DashboardRFQ `json:"rfqs"`
	}

	var dash Dashboard
	h.DB.QueryRow(`SELECT COUNT(*) FROM rfqs WHERE status IN ('draft','sent','partially_quoted','fully_quoted')`).Scan(&dash.OpenRFQs)
	h.DB.QueryRow(`SELECT COUNT(*) FROM supplier_rfqs WHERE response_status='pending'`).Scan(&dash.PendingResponses)
	monthStart := h.now().Format("2006-01") + "-01"
	h.DB.QueryRow(`SELECT COUNT(*) FROM rfqs WHERE status='quote_accepted' AND updated_at>=?`, monthStart).Scan(&dash.AcceptedThisMonth)

	rows, err := h.DB.Query(`SELECT r.id, r.title, r.status, COALESCE(r.response_deadline,''),
		(SELECT COUNT(*) FROM supplier_rfqs WHERE rfq_id=r.id) as supplier_count,
		(SELECT COUNT(*) FROM supplier_rfqs WHERE rfq_id=r.id AND response_status IN ('submitted','accepted','rejected')) as response_count,
		(SELECT COUNT(*) FROM rfq_line_items WHERE rfq_id=r.id) as line_count
		FROM rfqs r WHERE r.status IN ('draft','sent','partially_quoted','fully_quoted')
		ORDER BY r.created_at DESC`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var d DashboardRFQ
			rows.Scan(&d.ID, &d.Title, &d.Status, &d.Deadline, &d.SupplierCount, &d.ResponseCount, &d.LineCount)
			dash.RFQs = append(dash.RFQs, d)
		}
	}
	if dash.RFQs == nil {
		dash.RFQs = []DashboardRFQ{}
	}
	response.JSON(w, dash)
}

// RFQEmailBody renders the outbound request email for an RFQ. Dispatch
// itself happens outside the system; this gives the studio the text to
// paste into their mail client.
func (h *Handler) RFQEmailBody(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.loadRFQ(id)
	if err != nil {
		response.DomainErr(w, err)
		return
	}
	lines, err := h.loadLineItems(id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	subject := fmt.Sprintf("Request for Quote - %s (%s)", rec.Title, rec.ID)
	var sb strings.Builder
	sb.WriteString("Dear Supplier,\n\n")
	sb.WriteString(fmt.Sprintf("%s is requesting a quote for the following items (RFQ: %s).\n\n", h.StudioName, rec.ID))
	if rec.ResponseDeadline != "" {
		sb.WriteString(fmt.Sprintf("Please respond by: %s\n\n", rec.ResponseDeadline))
	}
	sb.WriteString("Items:\n")
	sb.WriteString(fmt.Sprintf("%-40s %8s  %s\n", "Description", "Qty", "Specifications"))
	sb.WriteString(strings.Repeat("-", 70) + "\n")
	for _, l := range lines {
		sb.WriteString(fmt.Sprintf("%-40s %8d  %s\n", l.Description, l.Quantity, l.Specifications))
	}
	sb.WriteString("\nPlease provide per item:\n")
	sb.WriteString("- Unit price\n- Lead time\n- Availability\n\n")
	sb.WriteString("Plus total shipping cost and overall quote validity.\n\n")
	sb.WriteString(fmt.Sprintf("Thank you,\n%s\n%s\n", h.StudioName, h.StudioEmail))

	response.JSON(w, map[string]string{
		"subject": subject,
		"body":    sb.String(),
	})
}

// MarkViewed records that a supplier opened the RFQ via their access
// token. Called from the supplier-facing link, so it resolves by token
// rather than id.
func (h *Handler) MarkViewed(w http.ResponseWriter, r *http.Request, token string) {
	var srID int
	var rfqID string
	var viewedAt *string
	err := h.DB.QueryRow(`SELECT id, rfq_id, viewed_at FROM supplier_rfqs WHERE access_token=?`, token).Scan(&srID, &rfqID, &viewedAt)
	if err != nil {
		response.DomainErr(w, &rfq.NotFoundError{Entity: "invitation", ID: token})
		return
	}
	if viewedAt == nil {
		now := h.nowString()
		h.DB.Exec(`UPDATE supplier_rfqs SET viewed_at=? WHERE id=?`, now, srID)
		viewedAt = &now
		h.Hub.BroadcastChange("rfq", "viewed", rfqID)
	}
	response.JSON(w, map[string]interface{}{"rfq_id": rfqID, "viewed_at": viewedAt})
}
