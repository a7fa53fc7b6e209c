package models

// APIResponse is the standard JSON envelope for all API responses.
type APIResponse struct {
	Data  interface{} `json:"data,omitempty"`
	Meta  *Meta       `json:"meta,omitempty"`
	Error string      `json:"error,omitempty"`
	Kind  string      `json:"kind,omitempty"`
}

// Meta carries pagination metadata.
type Meta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Project is the owning project an RFQ is issued for.
type Project struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ClientName string `json:"client_name"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

// Supplier is a registered vendor the studio procures from.
type Supplier struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	Address      string `json:"address"`
	Notes        string `json:"notes"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

// RFQ is a request for quotation issued against a project.
type RFQ struct {
	ID               string        `json:"id"`
	Number           string        `json:"number"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	Status           string        `json:"status"`
	ProjectID        string        `json:"project_id"`
	CreatedBy        string        `json:"created_by"`
	CreatedAt        string        `json:"created_at"`
	UpdatedAt        string        `json:"updated_at"`
	SentAt           *string       `json:"sent_at"`
	ResponseDeadline string        `json:"response_deadline"`
	ValidUntil       string        `json:"valid_until"`
	LockVersion      int           `json:"lock_version"`
	LineItems        []RFQLineItem `json:"line_items,omitempty"`
	Suppliers        []SupplierRFQ `json:"suppliers,omitempty"`
	Quotes           []Quote       `json:"quotes,omitempty"`
}

// RFQLineItem is one requested item/quantity within an RFQ.
type RFQLineItem struct {
	ID             int    `json:"id"`
	RFQID          string `json:"rfq_id"`
	Description    string `json:"description"`
	Quantity       int    `json:"quantity"`
	Specifications string `json:"specifications"`
	SortOrder      int    `json:"sort_order"`
}

// SupplierRFQ is the per-supplier invitation/response record for one RFQ.
// Either SupplierID references a registered supplier or VendorName and
// VendorEmail identify a free-text vendor.
type SupplierRFQ struct {
	ID             int     `json:"id"`
	RFQID          string  `json:"rfq_id"`
	SupplierID     string  `json:"supplier_id"`
	SupplierName   string  `json:"supplier_name,omitempty"`
	VendorName     string  `json:"vendor_name"`
	VendorEmail    string  `json:"vendor_email"`
	AccessToken    string  `json:"access_token,omitempty"`
	SentAt         *string `json:"sent_at"`
	ViewedAt       *string `json:"viewed_at"`
	ResponseStatus string  `json:"response_status"`
}

// Quote is one versioned quote submitted by a supplier against a SupplierRFQ.
type Quote struct {
	ID            string          `json:"id"`
	SupplierRFQID int             `json:"supplier_rfq_id"`
	QuoteNumber   string          `json:"quote_number"`
	Version       int             `json:"version"`
	Status        string          `json:"status"`
	TotalAmount   float64         `json:"total_amount"`
	ShippingCost  float64         `json:"shipping_cost"`
	LeadTimeDays  *int            `json:"lead_time_days"`
	ValidUntil    string          `json:"valid_until"`
	SubmittedAt   string          `json:"submitted_at"`
	Notes         string          `json:"notes"`
	LineItems     []QuoteLineItem `json:"line_items,omitempty"`
}

// QuoteLineItem is one priced line within a Quote, bound to exactly one
// RFQLineItem via RFQLineItemID.
type QuoteLineItem struct {
	ID            int     `json:"id"`
	QuoteID       string  `json:"quote_id"`
	RFQLineItemID int     `json:"rfq_line_item_id"`
	UnitPrice     float64 `json:"unit_price"`
	Quantity      int     `json:"quantity"`
	TotalPrice    float64 `json:"total_price"`
	LeadTimeDays  *int    `json:"lead_time_days"`
	Availability  string  `json:"availability"`
	Notes         string  `json:"notes"`
}

// ClientQuote is the buyer-facing quote document generated from one or
// more accepted supplier quotes.
type ClientQuote struct {
	ID          string   `json:"id"`
	RFQID       string   `json:"rfq_id"`
	ProjectID   string   `json:"project_id"`
	QuoteIDs    []string `json:"quote_ids"`
	TotalAmount float64  `json:"total_amount"`
	CreatedBy   string   `json:"created_by"`
	CreatedAt   string   `json:"created_at"`
}

// AuditEntry is a single audit log record.
type AuditEntry struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	IPAddress string `json:"ip_address"`
	Action    string `json:"action"`
	Module    string `json:"module"`
	RecordID  string `json:"record_id"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}
