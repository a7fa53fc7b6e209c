package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "modernc.org/sqlite"
)

// SetupTestDB creates an in-memory SQLite database with foreign keys
// enabled and the full schema created.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	testDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	if _, err := testDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}
	createTables(t, testDB)
	return testDB
}

func createTables(t *testing.T, db *sql.DB) {
	t.Helper()
	schemas := []string{
		`CREATE TABLE projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			client_name TEXT DEFAULT '',
			status TEXT DEFAULT 'active',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE suppliers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			contact_name TEXT DEFAULT '',
			contact_email TEXT DEFAULT '',
			contact_phone TEXT DEFAULT '',
			address TEXT DEFAULT '',
			notes TEXT DEFAULT '',
			status TEXT DEFAULT 'active',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE rfqs (
			id TEXT PRIMARY KEY,
			number TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			status TEXT DEFAULT 'draft' CHECK(status IN ('draft','sent','partially_quoted','fully_quoted','quote_accepted','cancelled','expired')),
			project_id TEXT DEFAULT '',
			created_by TEXT DEFAULT 'system',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			sent_at DATETIME,
			response_deadline TEXT DEFAULT '',
			valid_until TEXT DEFAULT '',
			lock_version INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE rfq_line_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rfq_id TEXT NOT NULL,
			description TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK(quantity > 0),
			specifications TEXT DEFAULT '',
			sort_order INTEGER DEFAULT 0,
			FOREIGN KEY (rfq_id) REFERENCES rfqs(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE supplier_rfqs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rfq_id TEXT NOT NULL,
			supplier_id TEXT DEFAULT '',
			vendor_name TEXT DEFAULT '',
			vendor_email TEXT DEFAULT '',
			access_token TEXT DEFAULT '',
			sent_at DATETIME,
			viewed_at DATETIME,
			response_status TEXT DEFAULT 'pending' CHECK(response_status IN ('pending','submitted','accepted','rejected','declined')),
			FOREIGN KEY (rfq_id) REFERENCES rfqs(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE quotes (
			id TEXT PRIMARY KEY,
			supplier_rfq_id INTEGER NOT NULL,
			quote_number TEXT DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			status TEXT DEFAULT 'submitted' CHECK(status IN ('submitted','accepted','rejected')),
			total_amount REAL NOT NULL DEFAULT 0,
			shipping_cost REAL NOT NULL DEFAULT 0,
			lead_time_days INTEGER,
			valid_until TEXT DEFAULT '',
			submitted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			notes TEXT DEFAULT '',
			UNIQUE(supplier_rfq_id, version),
			FOREIGN KEY (supplier_rfq_id) REFERENCES supplier_rfqs(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE quote_line_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			quote_id TEXT NOT NULL,
			rfq_line_item_id INTEGER NOT NULL,
			unit_price REAL NOT NULL,
			quantity INTEGER NOT NULL,
			total_price REAL NOT NULL,
			lead_time_days INTEGER,
			availability TEXT DEFAULT '',
			notes TEXT DEFAULT '',
			FOREIGN KEY (quote_id) REFERENCES quotes(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE client_quotes (
			id TEXT PRIMARY KEY,
			rfq_id TEXT NOT NULL,
			project_id TEXT DEFAULT '',
			quote_ids TEXT NOT NULL DEFAULT '[]',
			total_amount REAL NOT NULL DEFAULT 0,
			created_by TEXT DEFAULT 'system',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (rfq_id) REFERENCES rfqs(id) ON DELETE RESTRICT
		)`,
		`CREATE TABLE audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT DEFAULT 'system',
			ip_address TEXT DEFAULT '',
			action TEXT NOT NULL,
			module TEXT NOT NULL,
			record_id TEXT NOT NULL,
			summary TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX idx_quotes_accepted_once ON quotes(supplier_rfq_id) WHERE status='accepted'`,
	}
	for _, schema := range schemas {
		if _, err := db.Exec(schema); err != nil {
			t.Fatalf("Failed to create table: %v\nSchema: %s", err, schema)
		}
	}
}

// DoJSON performs a request against a handler func that needs no path
// params and returns the recorder.
func DoJSON(t *testing.T, handler http.HandlerFunc, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}
