package procurement_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"studioops/internal/handlers/procurement"
	"studioops/internal/models"
	"studioops/internal/testutil"
)

var (
	idMu      sync.Mutex
	idCounter int
)

func newTestHandler(db *sql.DB) *procurement.Handler {
	return &procurement.Handler{
		DB:           db,
		StudioName:   "Test Studio",
		StudioEmail:  "studio@example.com",
		ExportRowCap: 5000,
		NextIDFunc: func(prefix, table string, digits int) string {
			idMu.Lock()
			defer idMu.Unlock()
			idCounter++
			return fmt.Sprintf("%s-%0*d", prefix, digits, idCounter)
		},
	}
}

func resetIDCounter() {
	idMu.Lock()
	defer idMu.Unlock()
	idCounter = 0
}

func insertTestRFQ(t *testing.T, db *sql.DB, id, title, status string) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO rfqs (id, number, title, status, created_by, created_at, updated_at) VALUES (?, ?, ?, ?, 'testuser', datetime('now'), datetime('now'))",
		id, id, title, status,
	)
	if err != nil {
		t.Fatalf("Failed to insert test RFQ: %v", err)
	}
}

func insertTestLineItem(t *testing.T, db *sql.DB, rfqID, description string, qty int) int {
	t.Helper()
	res, err := db.Exec(
		"INSERT INTO rfq_line_items (rfq_id, description, quantity) VALUES (?, ?, ?)",
		rfqID, description, qty,
	)
	if err != nil {
		t.Fatalf("Failed to insert test line item: %v", err)
	}
	id, _ := res.LastInsertId()
	return int(id)
}

func insertTestSupplier(t *testing.T, db *sql.DB, id, name string) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO suppliers (id, name, created_at) VALUES (?, ?, datetime('now'))",
		id, name,
	)
	if err != nil {
		t.Fatalf("Failed to insert test supplier: %v", err)
	}
}

func insertTestSupplierRFQ(t *testing.T, db *sql.DB, rfqID, supplierID, responseStatus string) int {
	t.Helper()
	res, err := db.Exec(
		"INSERT INTO supplier_rfqs (rfq_id, supplier_id, access_token, sent_at, response_status) VALUES (?, ?, ?, datetime('now'), ?)",
		rfqID, supplierID, "token-"+supplierID, responseStatus,
	)
	if err != nil {
		t.Fatalf("Failed to insert test supplier RFQ: %v", err)
	}
	id, _ := res.LastInsertId()
	return int(id)
}

func insertTestQuote(t *testing.T, db *sql.DB, id string, supplierRFQID, version int, status string, total float64) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO quotes (id, supplier_rfq_id, version, status, total_amount, shipping_cost, submitted_at) VALUES (?, ?, ?, ?, ?, 0, datetime('now'))",
		id, supplierRFQID, version, status, total,
	)
	if err != nil {
		t.Fatalf("Failed to insert test quote: %v", err)
	}
}

func insertTestQuoteLine(t *testing.T, db *sql.DB, quoteID string, lineItemID, qty int, unitPrice, totalPrice float64) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO quote_line_items (quote_id, rfq_line_item_id, unit_price, quantity, total_price) VALUES (?, ?, ?, ?, ?)",
		quoteID, lineItemID, unitPrice, qty, totalPrice,
	)
	if err != nil {
		t.Fatalf("Failed to insert test quote line: %v", err)
	}
}

func postJSON(t *testing.T, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest("POST", "/api/v1/rfqs", &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeResp(t *testing.T, w *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func rfqStatus(t *testing.T, db *sql.DB, id string) string {
	t.Helper()
	var status string
	if err := db.QueryRow("SELECT status FROM rfqs WHERE id=?", id).Scan(&status); err != nil {
		t.Fatalf("Failed to read RFQ status: %v", err)
	}
	return status
}

func TestListRFQs_Empty(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	req := httptest.NewRequest("GET", "/api/v1/rfqs", nil)
	w := httptest.NewRecorder()
	h.ListRFQs(w, req)

	if w.Code != 200 {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	resp := decodeResp(t, w)
	items, ok := resp.Data.([]interface{})
	if !ok {
		t.Fatalf("Expected data to be an array")
	}
	if len(items) != 0 {
		t.Errorf("Expected empty array, got %d RFQs", len(items))
	}
}

func TestListRFQs_StatusFilter(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "draft")
	insertTestRFQ(t, testDB, "RFQ-002", "Lighting", "sent")
	insertTestRFQ(t, testDB, "RFQ-003", "Flooring", "sent")

	req := httptest.NewRequest("GET", "/api/v1/rfqs?status=sent", nil)
	w := httptest.NewRecorder()
	h.ListRFQs(w, req)

	resp := decodeResp(t, w)
	items := resp.Data.([]interface{})
	if len(items) != 2 {
		t.Errorf("Expected 2 sent RFQs, got %d", len(items))
	}
}

func TestCreateRFQ_Success(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	body := map[string]interface{}{
		"title":             "Living room furniture",
		"description":       "Phase 1 items",
		"response_deadline": "2026-12-31",
		"line_items": []map[string]interface{}{
			{"description": "Velvet sofa", "quantity": 2},
			{"description": "Oak side table", "quantity": 4, "specifications": "120x60cm"},
		},
	}
	w := httptest.NewRecorder()
	h.CreateRFQ(w, postJSON(t, body))

	if w.Code != 201 {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeResp(t, w)
	created := resp.Data.(map[string]interface{})
	if created["status"] != "draft" {
		t.Errorf("Expected draft status, got %v", created["status"])
	}
	lines := created["line_items"].([]interface{})
	if len(lines) != 2 {
		t.Errorf("Expected 2 line items, got %d", len(lines))
	}
}

func TestCreateRFQ_MissingTitle(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	w := httptest.NewRecorder()
	h.CreateRFQ(w, postJSON(t, map[string]interface{}{"description": "no title"}))

	if w.Code != 400 {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	resp := decodeResp(t, w)
	if resp.Kind != "validation" {
		t.Errorf("Expected validation kind, got %q", resp.Kind)
	}
}

func TestCreateRFQ_NonPositiveQuantity(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	body := map[string]interface{}{
		"title": "Bad quantities",
		"line_items": []map[string]interface{}{
			{"description": "Rug", "quantity": 0},
		},
	}
	w := httptest.NewRecorder()
	h.CreateRFQ(w, postJSON(t, body))

	if w.Code != 400 {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestGetRFQ_NotFound(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	req := httptest.NewRequest("GET", "/api/v1/rfqs/RFQ-999", nil)
	w := httptest.NewRecorder()
	h.GetRFQ(w, req, "RFQ-999")

	if w.Code != 404 {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestGetRFQ_LazyExpiry(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestRFQ(t, testDB, "RFQ-001", "Stale RFQ", "sent")
	testDB.Exec("UPDATE rfqs SET response_deadline='2000-01-01' WHERE id='RFQ-001'")

	req := httptest.NewRequest("GET", "/api/v1/rfqs/RFQ-001", nil)
	w := httptest.NewRecorder()
	h.GetRFQ(w, req, "RFQ-001")

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	resp := decodeResp(t, w)
	rec := resp.Data.(map[string]interface{})
	if rec["status"] != "expired" {
		t.Errorf("Expected expired status, got %v", rec["status"])
	}
	// Expiry is persisted, not just rendered.
	if got := rfqStatus(t, testDB, "RFQ-001"); got != "expired" {
		t.Errorf("Expected persisted expired status, got %q", got)
	}
}

func TestGetRFQ_TerminalNeverExpires(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestRFQ(t, testDB, "RFQ-001", "Old but cancelled", "cancelled")
	testDB.Exec("UPDATE rfqs SET response_deadline='2000-01-01' WHERE id='RFQ-001'")

	req := httptest.NewRequest("GET", "/api/v1/rfqs/RFQ-001", nil)
	w := httptest.NewRecorder()
	h.GetRFQ(w, req, "RFQ-001")

	resp := decodeResp(t, w)
	rec := resp.Data.(map[string]interface{})
	if rec["status"] != "cancelled" {
		t.Errorf("Expected cancelled status, got %v", rec["status"])
	}
}

func TestUpdateRFQ_SentRejected(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestRFQ(t, testDB, "RFQ-001", "Sent already", "sent")

	w := httptest.NewRecorder()
	h.UpdateRFQ(w, postJSON(t, map[string]interface{}{"title": "New title"}), "RFQ-001")

	if w.Code != 409 {
		t.Errorf("Expected status 409, got %d", w.Code)
	}
	resp := decodeResp(t, w)
	if resp.Kind != "invalid_transition" {
		t.Errorf("Expected invalid_transition kind, got %q", resp.Kind)
	}
}

func TestDeleteRFQ_Guard(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestRFQ(t, testDB, "RFQ-001", "Sent", "sent")
	req := httptest.NewRequest("DELETE", "/api/v1/rfqs/RFQ-001", nil)
	w := httptest.NewRecorder()
	h.DeleteRFQ(w, req, "RFQ-001")
	if w.Code != 409 {
		t.Errorf("Expected status 409 deleting sent RFQ, got %d", w.Code)
	}

	insertTestRFQ(t, testDB, "RFQ-002", "Draft", "draft")
	w = httptest.NewRecorder()
	h.DeleteRFQ(w, req, "RFQ-002")
	if w.Code != 200 {
		t.Errorf("Expected status 200 deleting draft RFQ, got %d", w.Code)
	}

	insertTestRFQ(t, testDB, "RFQ-003", "Cancelled", "cancelled")
	w = httptest.NewRecorder()
	h.DeleteRFQ(w, req, "RFQ-003")
	if w.Code != 200 {
		t.Errorf("Expected status 200 deleting cancelled RFQ, got %d", w.Code)
	}
}

func TestSendRFQ_Success(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestSupplier(t, testDB, "SUP-001", "Nordic Textiles")
	insertTestSupplier(t, testDB, "SUP-002", "Oak & Iron")
	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "draft")
	insertTestLineItem(t, testDB, "RFQ-001", "Linen curtains", 6)

	body := map[string]interface{}{"supplier_ids": []string{"SUP-001", "SUP-002"}}
	w := httptest.NewRecorder()
	h.SendRFQ(w, postJSON(t, body), "RFQ-001")

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := rfqStatus(t, testDB, "RFQ-001"); got != "sent" {
		t.Errorf("Expected sent status, got %q", got)
	}

	var count int
	testDB.QueryRow("SELECT COUNT(*) FROM supplier_rfqs WHERE rfq_id='RFQ-001'").Scan(&count)
	if count != 2 {
		t.Errorf("Expected 2 invitations, got %d", count)
	}
	var token string
	testDB.QueryRow("SELECT access_token FROM supplier_rfqs WHERE supplier_id='SUP-001'").Scan(&token)
	if token == "" {
		t.Errorf("Expected an access token to be minted")
	}
}

func TestSendRFQ_IdempotentPerSupplier(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestSupplier(t, testDB, "SUP-001", "Nordic Textiles")
	insertTestSupplier(t, testDB, "SUP-002", "Oak & Iron")
	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "draft")
	insertTestLineItem(t, testDB, "RFQ-001", "Linen curtains", 6)

	w := httptest.NewRecorder()
	h.SendRFQ(w, postJSON(t, map[string]interface{}{"supplier_ids": []string{"SUP-001"}}), "RFQ-001")
	if w.Code != 200 {
		t.Fatalf("First send failed: %d", w.Code)
	}

	// Repeat with the original supplier plus a new one: only the new
	// supplier gets a fresh invitation.
	w = httptest.NewRecorder()
	h.SendRFQ(w, postJSON(t, map[string]interface{}{"supplier_ids": []string{"SUP-001", "SUP-002"}}), "RFQ-001")
	if w.Code != 200 {
		t.Fatalf("Second send failed: %d: %s", w.Code, w.Body.String())
	}

	var count int
	testDB.QueryRow("SELECT COUNT(*) FROM supplier_rfqs WHERE rfq_id='RFQ-001'").Scan(&count)
	if count != 2 {
		t.Errorf("Expected 2 invitations after repeated send, got %d", count)
	}
	testDB.QueryRow("SELECT COUNT(*) FROM supplier_rfqs WHERE supplier_id='SUP-001'").Scan(&count)
	if count != 1 {
		t.Errorf("Expected 1 invitation for SUP-001, got %d", count)
	}
}

func TestSendRFQ_NoLineItems(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestSupplier(t, testDB, "SUP-001", "Nordic Textiles")
	insertTestRFQ(t, testDB, "RFQ-001", "Empty RFQ", "draft")

	w := httptest.NewRecorder()
	h.SendRFQ(w, postJSON(t, map[string]interface{}{"supplier_ids": []string{"SUP-001"}}), "RFQ-001")

	if w.Code != 400 {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestSendRFQ_EmptySelection(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "draft")
	insertTestLineItem(t, testDB, "RFQ-001", "Linen curtains", 6)

	w := httptest.NewRecorder()
	h.SendRFQ(w, postJSON(t, map[string]interface{}{"supplier_ids": []string{}}), "RFQ-001")

	if w.Code != 400 {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestSendRFQ_FreeTextVendor(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "draft")
	insertTestLineItem(t, testDB, "RFQ-001", "Linen curtains", 6)

	body := map[string]interface{}{
		"vendors": []map[string]string{{"name": "Atelier Brass", "email": "quotes@atelierbrass.example"}},
	}
	w := httptest.NewRecorder()
	h.SendRFQ(w, postJSON(t, body), "RFQ-001")

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var vendorName string
	testDB.QueryRow("SELECT vendor_name FROM supplier_rfqs WHERE rfq_id='RFQ-001'").Scan(&vendorName)
	if vendorName != "Atelier Brass" {
		t.Errorf("Expected free-text vendor invitation, got %q", vendorName)
	}
}

func TestCancelRFQ_ThenSendRejected(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestSupplier(t, testDB, "SUP-001", "Nordic Textiles")
	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "draft")
	insertTestLineItem(t, testDB, "RFQ-001", "Linen curtains", 6)

	req := httptest.NewRequest("POST", "/api/v1/rfqs/RFQ-001/cancel", nil)
	w := httptest.NewRecorder()
	h.CancelRFQ(w, req, "RFQ-001")
	if w.Code != 200 {
		t.Fatalf("Cancel failed: %d", w.Code)
	}
	if got := rfqStatus(t, testDB, "RFQ-001"); got != "cancelled" {
		t.Errorf("Expected cancelled status, got %q", got)
	}

	w = httptest.NewRecorder()
	h.SendRFQ(w, postJSON(t, map[string]interface{}{"supplier_ids": []string{"SUP-001"}}), "RFQ-001")
	if w.Code != 409 {
		t.Errorf("Expected status 409 sending cancelled RFQ, got %d", w.Code)
	}
}

func TestRFQEmailBody(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "draft")
	insertTestLineItem(t, testDB, "RFQ-001", "Linen curtains", 6)

	req := httptest.NewRequest("GET", "/api/v1/rfqs/RFQ-001/email", nil)
	w := httptest.NewRecorder()
	h.RFQEmailBody(w, req, "RFQ-001")

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	resp := decodeResp(t, w)
	data := resp.Data.(map[string]interface{})
	body := data["body"].(string)
	if !strings.Contains(body, "Linen curtains") {
		t.Errorf("Expected email body to list line items")
	}
	if !strings.Contains(body, "Test Studio") {
		t.Errorf("Expected email body to carry the studio name")
	}
}

func TestMarkViewed(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestSupplier(t, testDB, "SUP-001", "Nordic Textiles")
	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "sent")
	insertTestSupplierRFQ(t, testDB, "RFQ-001", "SUP-001", "pending")

	req := httptest.NewRequest("POST", "/api/v1/supplier-rfqs/token-SUP-001/viewed", nil)
	w := httptest.NewRecorder()
	h.MarkViewed(w, req, "token-SUP-001")

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var viewedAt sql.NullString
	testDB.QueryRow("SELECT viewed_at FROM supplier_rfqs WHERE access_token='token-SUP-001'").Scan(&viewedAt)
	if !viewedAt.Valid || viewedAt.String == "" {
		t.Errorf("Expected viewed_at to be recorded")
	}

	// Unknown token is a 404.
	w = httptest.NewRecorder()
	h.MarkViewed(w, req, "bogus")
	if w.Code != 404 {
		t.Errorf("Expected status 404 for unknown token, got %d", w.Code)
	}
}

func TestRFQDashboard(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "draft")
	insertTestRFQ(t, testDB, "RFQ-002", "Lighting", "sent")
	insertTestRFQ(t, testDB, "RFQ-003", "Closed out", "cancelled")

	req := httptest.NewRequest("GET", "/api/v1/rfqs/dashboard", nil)
	w := httptest.NewRecorder()
	h.RFQDashboard(w, req)

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	resp := decodeResp(t, w)
	dash := resp.Data.(map[string]interface{})
	if int(dash["open_rfqs"].(float64)) != 2 {
		t.Errorf("Expected 2 open RFQs, got %v", dash["open_rfqs"])
	}
}

func TestListRFQs_PaginationMeta(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "draft")
	insertTestRFQ(t, testDB, "RFQ-002", "Lighting", "sent")
	insertTestRFQ(t, testDB, "RFQ-003", "Flooring", "sent")

	req := httptest.NewRequest("GET", "/api/v1/rfqs?page=2&limit=2", nil)
	w := httptest.NewRecorder()
	h.ListRFQs(w, req)

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	resp := decodeResp(t, w)
	items := resp.Data.([]interface{})
	if len(items) != 1 {
		t.Errorf("Expected 1 RFQ on the second page, got %d", len(items))
	}
	if resp.Meta == nil {
		t.Fatal("Expected pagination meta on the listing")
	}
	if resp.Meta.Total != 3 || resp.Meta.Page != 2 || resp.Meta.Limit != 2 {
		t.Errorf("Expected meta total=3 page=2 limit=2, got %+v", resp.Meta)
	}
}

func TestUpdateRFQ_ReplacesLineItems(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "draft")
	insertTestLineItem(t, testDB, "RFQ-001", "Linen curtains", 6)
	insertTestLineItem(t, testDB, "RFQ-001", "Tie-backs", 12)

	body := map[string]interface{}{
		"title": "Curtains, revised",
		"line_items": []map[string]interface{}{
			{"description": "Wool curtains", "quantity": 4},
		},
	}
	w := httptest.NewRecorder()
	h.UpdateRFQ(w, postJSON(t, body), "RFQ-001")
	if w.Code != 200 {
		t.Fatalf("Update failed: %d: %s", w.Code, w.Body.String())
	}

	var count int
	testDB.QueryRow("SELECT COUNT(*) FROM rfq_line_items WHERE rfq_id='RFQ-001'").Scan(&count)
	if count != 1 {
		t.Errorf("Expected line items replaced, got %d rows", count)
	}
	var description string
	testDB.QueryRow("SELECT description FROM rfq_line_items WHERE rfq_id='RFQ-001'").Scan(&description)
	if description != "Wool curtains" {
		t.Errorf("Expected replaced line item, got %q", description)
	}
	var title string
	var lockVersion int
	testDB.QueryRow("SELECT title, lock_version FROM rfqs WHERE id='RFQ-001'").Scan(&title, &lockVersion)
	if title != "Curtains, revised" {
		t.Errorf("Expected updated title, got %q", title)
	}
	if lockVersion != 1 {
		t.Errorf("Expected lock version bumped to 1, got %d", lockVersion)
	}
}

func TestCancelRFQ_ConcurrentWriterStaleState(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestRFQ(t, testDB, "RFQ-001", "Lighting", "sent")

	// A competing writer lands between the status read and the guarded
	// update, invalidating the lock version the cancel was read under.
	calls := 0
	h.NowFunc = func() time.Time {
		calls++
		if calls == 2 {
			if _, err := testDB.Exec("UPDATE rfqs SET lock_version=lock_version+1 WHERE id='RFQ-001'"); err != nil {
				t.Errorf("Concurrent update failed: %v", err)
			}
		}
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}

	req := httptest.NewRequest("POST", "/api/v1/rfqs/RFQ-001/cancel", nil)
	w := httptest.NewRecorder()
	h.CancelRFQ(w, req, "RFQ-001")

	if w.Code != 412 {
		t.Fatalf("Expected status 412, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeResp(t, w)
	if resp.Kind != "stale_state" {
		t.Errorf("Expected stale_state kind, got %q", resp.Kind)
	}
	if got := rfqStatus(t, testDB, "RFQ-001"); got != "sent" {
		t.Errorf("Expected stale cancel to leave the RFQ untouched, got %q", got)
	}
}

func TestCreateRFQ_AuditRecordsActorAndIP(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	body := map[string]interface{}{
		"title": "Hallway lighting",
		"line_items": []map[string]interface{}{
			{"description": "Brass sconce", "quantity": 3},
		},
	}
	req := postJSON(t, body)
	req.Header.Set("X-User", "lena")
	req.Header.Set("X-Forwarded-For", "10.1.2.3, 172.16.0.1")
	w := httptest.NewRecorder()
	h.CreateRFQ(w, req)
	if w.Code != 201 {
		t.Fatalf("Create failed: %d: %s", w.Code, w.Body.String())
	}

	var username, ip string
	err := testDB.QueryRow("SELECT username, ip_address FROM audit_log WHERE module='rfq' AND action='create'").Scan(&username, &ip)
	if err != nil {
		t.Fatalf("Failed to read audit row: %v", err)
	}
	if username != "lena" {
		t.Errorf("Expected audit row attributed to lena, got %q", username)
	}
	if ip != "10.1.2.3" {
		t.Errorf("Expected first forwarded-for hop as client IP, got %q", ip)
	}
}
