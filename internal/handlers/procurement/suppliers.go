package procurement

import (
	"database/sql"
	"net/http"

	"studioops/internal/models"
	"studioops/internal/response"
	"studioops/internal/rfq"
	"studioops/internal/validation"
)

const supplierColumns = `id, name, COALESCE(contact_name,''), COALESCE(contact_email,''), COALESCE(contact_phone,''),
	COALESCE(address,''), COALESCE(notes,''), status, created_at`

func scanSupplier(scan func(dest ...interface{}) error) (models.Supplier, error) {
	var s models.Supplier
	err := scan(&s.ID, &s.Name, &s.ContactName, &s.ContactEmail, &s.ContactPhone, &s.Address, &s.Notes, &s.Status, &s.CreatedAt)
	return s, err
}

// ListSuppliers returns the supplier directory, optionally filtered by
// status or a name search.
func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	query := `SELECT ` + supplierColumns + ` FROM suppliers WHERE 1=1`
	var args []interface{}
	if s := r.URL.Query().Get("status"); s != "" {
		query += " AND status=?"
		args = append(args, s)
	}
	if search := r.URL.Query().Get("search"); search != "" {
		query += " AND (name LIKE ? OR contact_name LIKE ? OR contact_email LIKE ?)"
		term := "%" + search + "%"
		args = append(args, term, term, term)
	}
	query += " ORDER BY name"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	items := []models.Supplier{}
	for rows.Next() {
		s, err := scanSupplier(rows.Scan)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		items = append(items, s)
	}
	response.JSON(w, items)
}

// GetSupplier returns a single supplier.
func (h *Handler) GetSupplier(w http.ResponseWriter, r *http.Request, id string) {
	row := h.DB.QueryRow(`SELECT `+supplierColumns+` FROM suppliers WHERE id=?`, id)
	s, err := scanSupplier(row.Scan)
	if err == sql.ErrNoRows {
		response.DomainErr(w, &rfq.NotFoundError{Entity: "supplier", ID: id})
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSON(w, s)
}

func validateSupplier(s *models.Supplier) error {
	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "name", s.Name)
	if s.ContactEmail != "" {
		validation.ValidateEmail(ve, "contact_email", s.ContactEmail)
	}
	if s.Status != "" {
		validation.ValidateEnum(ve, "status", s.Status, validation.ValidSupplierStatuses)
	}
	if ve.HasErrors() {
		return &rfq.ValidationError{Field: ve.Errors[0].Field, Message: ve.Errors[0].Message}
	}
	return nil
}

// CreateSupplier registers a new supplier.
func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var s models.Supplier
	if err := response.DecodeBody(r, &s); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	if err := validateSupplier(&s); err != nil {
		response.DomainErr(w, err)
		return
	}
	if s.Status == "" {
		s.Status = "active"
	}
	s.ID = h.NextIDFunc("SUP", "suppliers", 4)
	s.CreatedAt = h.nowString()

	_, err := h.DB.Exec(`INSERT INTO suppliers (id, name, contact_name, contact_email, contact_phone, address, notes, status, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		s.ID, s.Name, s.ContactName, s.ContactEmail, s.ContactPhone, s.Address, s.Notes, s.Status, s.CreatedAt)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.LogAudit(r, "create", "supplier", s.ID, "Registered supplier: "+s.Name)
	w.WriteHeader(201)
	response.JSON(w, s)
}

// UpdateSupplier updates a supplier's contact details and status.
func (h *Handler) UpdateSupplier(w http.ResponseWriter, r *http.Request, id string) {
	var existing string
	if err := h.DB.QueryRow(`SELECT id FROM suppliers WHERE id=?`, id).Scan(&existing); err != nil {
		response.DomainErr(w, &rfq.NotFoundError{Entity: "supplier", ID: id})
		return
	}

	var s models.Supplier
	if err := response.DecodeBody(r, &s); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	if err := validateSupplier(&s); err != nil {
		response.DomainErr(w, err)
		return
	}
	if s.Status == "" {
		s.Status = "active"
	}

	_, err := h.DB.Exec(`UPDATE suppliers SET name=?, contact_name=?, contact_email=?, contact_phone=?, address=?, notes=?, status=? WHERE id=?`,
		s.Name, s.ContactName, s.ContactEmail, s.ContactPhone, s.Address, s.Notes, s.Status, id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.LogAudit(r, "update", "supplier", id, "Updated supplier")
	h.GetSupplier(w, r, id)
}
