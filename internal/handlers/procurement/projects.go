package procurement

import (
	"net/http"

	"studioops/internal/models"
	"studioops/internal/response"
	"studioops/internal/rfq"
	"studioops/internal/validation"
)

// ListProjects returns all projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	query := `SELECT id, name, COALESCE(client_name,''), status, created_at FROM projects`
	var args []interface{}
	if s := r.URL.Query().Get("status"); s != "" {
		query += " WHERE status=?"
		args = append(args, s)
	}
	query += " ORDER BY created_at DESC"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	items := []models.Project{}
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.ClientName, &p.Status, &p.CreatedAt); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		items = append(items, p)
	}
	response.JSON(w, items)
}

// CreateProject creates a project for RFQs to hang off.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var p models.Project
	if err := response.DecodeBody(r, &p); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "name", p.Name)
	if p.Status != "" {
		validation.ValidateEnum(ve, "status", p.Status, validation.ValidProjectStatuses)
	}
	if ve.HasErrors() {
		response.DomainErr(w, &rfq.ValidationError{Field: ve.Errors[0].Field, Message: ve.Errors[0].Message})
		return
	}
	if p.Status == "" {
		p.Status = "active"
	}
	p.ID = h.NextIDFunc("PRJ", "projects", 4)
	p.CreatedAt = h.nowString()

	_, err := h.DB.Exec(`INSERT INTO projects (id, name, client_name, status, created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.Name, p.ClientName, p.Status, p.CreatedAt)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.LogAudit(r, "create", "project", p.ID, "Created project: "+p.Name)
	w.WriteHeader(201)
	response.JSON(w, p)
}

// ListAudit returns audit log entries, optionally filtered by module
// and record.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	query := `SELECT id, username, COALESCE(ip_address,''), action, module, record_id, COALESCE(summary,''), created_at FROM audit_log WHERE 1=1`
	var args []interface{}
	if m := r.URL.Query().Get("module"); m != "" {
		query += " AND module=?"
		args = append(args, m)
	}
	if rid := r.URL.Query().Get("record_id"); rid != "" {
		query += " AND record_id=?"
		args = append(args, rid)
	}
	query += " ORDER BY id DESC LIMIT 500"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	items := []models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.IPAddress, &e.Action, &e.Module, &e.RecordID, &e.Summary, &e.CreatedAt); err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		items = append(items, e)
	}
	response.JSON(w, items)
}
