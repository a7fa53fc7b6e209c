package procurement_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"studioops/internal/testutil"
)

func TestCompareRFQ_Bands(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestSupplier(t, testDB, "SUP-A", "Nordic Textiles")
	insertTestSupplier(t, testDB, "SUP-B", "Oak & Iron")
	insertTestSupplier(t, testDB, "SUP-C", "Atelier Brass")
	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "fully_quoted")
	lineID := insertTestLineItem(t, testDB, "RFQ-001", "Linen curtains", 10)
	srA := insertTestSupplierRFQ(t, testDB, "RFQ-001", "SUP-A", "submitted")
	srB := insertTestSupplierRFQ(t, testDB, "RFQ-001", "SUP-B", "submitted")
	srC := insertTestSupplierRFQ(t, testDB, "RFQ-001", "SUP-C", "submitted")

	insertTestQuote(t, testDB, "QTE-A", srA, 1, "submitted", 100)
	insertTestQuoteLine(t, testDB, "QTE-A", lineID, 10, 10, 100)
	insertTestQuote(t, testDB, "QTE-B", srB, 1, "submitted", 115)
	insertTestQuoteLine(t, testDB, "QTE-B", lineID, 10, 11.5, 115)
	insertTestQuote(t, testDB, "QTE-C", srC, 1, "submitted", 140)
	insertTestQuoteLine(t, testDB, "QTE-C", lineID, 10, 14, 140)

	req := httptest.NewRequest("GET", "/api/v1/rfqs/RFQ-001/compare", nil)
	w := httptest.NewRecorder()
	h.CompareRFQ(w, req, "RFQ-001")

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeResp(t, w)
	c := resp.Data.(map[string]interface{})

	matrix := c["matrix"].(map[string]interface{})
	row := matrix[itoa(lineID)].(map[string]interface{})
	band := func(quoteID string) string {
		return row[quoteID].(map[string]interface{})["band"].(string)
	}
	if band("QTE-A") != "BEST" {
		t.Errorf("Expected QTE-A BEST, got %q", band("QTE-A"))
	}
	if band("QTE-B") != "MODERATE" {
		t.Errorf("Expected QTE-B MODERATE (15%% over best), got %q", band("QTE-B"))
	}
	if band("QTE-C") != "HIGH" {
		t.Errorf("Expected QTE-C HIGH (40%% over best), got %q", band("QTE-C"))
	}

	best := c["best_prices"].(map[string]interface{})[itoa(lineID)].(map[string]interface{})
	if best["quote_id"] != "QTE-A" || best["price"].(float64) != 100 {
		t.Errorf("Expected best price QTE-A@100, got %v", best)
	}

	summary := c["summary"].(map[string]interface{})
	if summary["quote_count"].(float64) != 3 {
		t.Errorf("Expected 3 quotes in summary, got %v", summary["quote_count"])
	}
	if summary["lowest_total"].(float64) != 100 || summary["highest_total"].(float64) != 140 {
		t.Errorf("Expected totals 100..140, got %v..%v", summary["lowest_total"], summary["highest_total"])
	}
}

func TestCompareRFQ_LatestVersionOnly(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestSupplier(t, testDB, "SUP-A", "Nordic Textiles")
	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "partially_quoted")
	lineID := insertTestLineItem(t, testDB, "RFQ-001", "Linen curtains", 10)
	srA := insertTestSupplierRFQ(t, testDB, "RFQ-001", "SUP-A", "submitted")

	insertTestQuote(t, testDB, "QTE-A1", srA, 1, "submitted", 120)
	insertTestQuoteLine(t, testDB, "QTE-A1", lineID, 10, 12, 120)
	insertTestQuote(t, testDB, "QTE-A2", srA, 2, "submitted", 110)
	insertTestQuoteLine(t, testDB, "QTE-A2", lineID, 10, 11, 110)

	req := httptest.NewRequest("GET", "/api/v1/rfqs/RFQ-001/compare", nil)
	w := httptest.NewRecorder()
	h.CompareRFQ(w, req, "RFQ-001")

	resp := decodeResp(t, w)
	c := resp.Data.(map[string]interface{})
	quotes := c["quotes"].([]interface{})
	if len(quotes) != 1 {
		t.Fatalf("Expected only the latest version under comparison, got %d quotes", len(quotes))
	}
	q := quotes[0].(map[string]interface{})
	if q["id"] != "QTE-A2" {
		t.Errorf("Expected latest version QTE-A2, got %v", q["id"])
	}
}

func TestCompareRFQ_RejectedVersionExcluded(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestSupplier(t, testDB, "SUP-A", "Nordic Textiles")
	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "partially_quoted")
	lineID := insertTestLineItem(t, testDB, "RFQ-001", "Linen curtains", 10)
	srA := insertTestSupplierRFQ(t, testDB, "RFQ-001", "SUP-A", "submitted")

	insertTestQuote(t, testDB, "QTE-A1", srA, 1, "submitted", 120)
	insertTestQuoteLine(t, testDB, "QTE-A1", lineID, 10, 12, 120)
	insertTestQuote(t, testDB, "QTE-A2", srA, 2, "rejected", 110)
	insertTestQuoteLine(t, testDB, "QTE-A2", lineID, 10, 11, 110)

	req := httptest.NewRequest("GET", "/api/v1/rfqs/RFQ-001/compare", nil)
	w := httptest.NewRecorder()
	h.CompareRFQ(w, req, "RFQ-001")

	resp := decodeResp(t, w)
	c := resp.Data.(map[string]interface{})
	quotes := c["quotes"].([]interface{})
	if len(quotes) != 1 {
		t.Fatalf("Expected 1 quote under comparison, got %d", len(quotes))
	}
	if quotes[0].(map[string]interface{})["id"] != "QTE-A1" {
		t.Errorf("Expected the latest valid version QTE-A1, got %v", quotes[0].(map[string]interface{})["id"])
	}
}

func TestCompareRFQ_NoBidIsAbsent(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestSupplier(t, testDB, "SUP-A", "Nordic Textiles")
	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "partially_quoted")
	lineA := insertTestLineItem(t, testDB, "RFQ-001", "Linen curtains", 10)
	lineB := insertTestLineItem(t, testDB, "RFQ-001", "Brass rods", 4)
	srA := insertTestSupplierRFQ(t, testDB, "RFQ-001", "SUP-A", "submitted")

	// SUP-A only bids on the curtains.
	insertTestQuote(t, testDB, "QTE-A", srA, 1, "submitted", 100)
	insertTestQuoteLine(t, testDB, "QTE-A", lineA, 10, 10, 100)

	req := httptest.NewRequest("GET", "/api/v1/rfqs/RFQ-001/compare", nil)
	w := httptest.NewRecorder()
	h.CompareRFQ(w, req, "RFQ-001")

	resp := decodeResp(t, w)
	c := resp.Data.(map[string]interface{})
	matrix := c["matrix"].(map[string]interface{})
	if _, ok := matrix[itoa(lineA)]; !ok {
		t.Errorf("Expected a matrix row for the bid line")
	}
	if _, ok := matrix[itoa(lineB)]; ok {
		t.Errorf("Expected no matrix row for the unbid line, absence not zero")
	}
	if _, ok := c["best_prices"].(map[string]interface{})[itoa(lineB)]; ok {
		t.Errorf("Expected no best price for the unbid line")
	}
}

func TestExportCompare_CSV(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestSupplier(t, testDB, "SUP-A", "Nordic Textiles")
	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "partially_quoted")
	lineID := insertTestLineItem(t, testDB, "RFQ-001", "Linen curtains", 10)
	srA := insertTestSupplierRFQ(t, testDB, "RFQ-001", "SUP-A", "submitted")
	insertTestQuote(t, testDB, "QTE-A", srA, 1, "submitted", 100)
	insertTestQuoteLine(t, testDB, "QTE-A", lineID, 10, 10, 100)

	req := httptest.NewRequest("GET", "/api/v1/rfqs/RFQ-001/compare/export?format=csv", nil)
	w := httptest.NewRecorder()
	h.ExportCompare(w, req, "RFQ-001")

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Expected text/csv, got %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Line Item") || !strings.Contains(body, "Band") {
		t.Errorf("Expected CSV header row, got %q", body)
	}
	if !strings.Contains(body, "Nordic Textiles") || !strings.Contains(body, "BEST") {
		t.Errorf("Expected data row with supplier and band, got %q", body)
	}
}

func TestExportCompare_Xlsx(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)

	insertTestSupplier(t, testDB, "SUP-A", "Nordic Textiles")
	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "partially_quoted")
	lineID := insertTestLineItem(t, testDB, "RFQ-001", "Linen curtains", 10)
	srA := insertTestSupplierRFQ(t, testDB, "RFQ-001", "SUP-A", "submitted")
	insertTestQuote(t, testDB, "QTE-A", srA, 1, "submitted", 100)
	insertTestQuoteLine(t, testDB, "QTE-A", lineID, 10, 10, 100)

	req := httptest.NewRequest("GET", "/api/v1/rfqs/RFQ-001/compare/export?format=xlsx", nil)
	w := httptest.NewRecorder()
	h.ExportCompare(w, req, "RFQ-001")

	if w.Code != 200 {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Expected xlsx content type, got %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Errorf("Expected non-empty xlsx payload")
	}
}

func TestExportCompare_RowCap(t *testing.T) {
	resetIDCounter()
	testDB := testutil.SetupTestDB(t)
	defer testDB.Close()
	h := newTestHandler(testDB)
	h.ExportRowCap = 1

	insertTestSupplier(t, testDB, "SUP-A", "Nordic Textiles")
	insertTestRFQ(t, testDB, "RFQ-001", "Curtains", "partially_quoted")
	lineA := insertTestLineItem(t, testDB, "RFQ-001", "Linen curtains", 10)
	lineB := insertTestLineItem(t, testDB, "RFQ-001", "Brass rods", 4)
	srA := insertTestSupplierRFQ(t, testDB, "RFQ-001", "SUP-A", "submitted")
	insertTestQuote(t, testDB, "QTE-A", srA, 1, "submitted", 148)
	insertTestQuoteLine(t, testDB, "QTE-A", lineA, 10, 10, 100)
	insertTestQuoteLine(t, testDB, "QTE-A", lineB, 4, 12, 48)

	req := httptest.NewRequest("GET", "/api/v1/rfqs/RFQ-001/compare/export?format=csv", nil)
	w := httptest.NewRecorder()
	h.ExportCompare(w, req, "RFQ-001")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 { // header + one capped row
		t.Errorf("Expected header plus 1 capped row, got %d lines", len(lines))
	}
}
