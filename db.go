package main

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var db *sql.DB

func initDB(path string) error {
	// Close previous connection if any (prevents goroutine leaks in tests)
	if db != nil {
		db.Close()
	}
	var err error
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err = sql.Open("sqlite", path+sep+"_journal_mode=WAL&_busy_timeout=10000&_foreign_keys=1")
	if err != nil {
		return err
	}

	// SQLite handles 1 writer + multiple readers with WAL mode.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	// Explicitly set WAL mode (some drivers don't parse connection string params correctly)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000"); err != nil {
		return fmt.Errorf("set busy_timeout: %w", err)
	}
	// Ensure foreign keys are enforced for every connection
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	return runMigrations()
}

func runMigrations() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			client_name TEXT DEFAULT '',
			status TEXT DEFAULT 'active' CHECK(status IN ('active','on_hold','completed','archived')),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS suppliers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			contact_name TEXT DEFAULT '',
			contact_email TEXT DEFAULT '',
			contact_phone TEXT DEFAULT '',
			address TEXT DEFAULT '',
			notes TEXT DEFAULT '',
			status TEXT DEFAULT 'active' CHECK(status IN ('active','preferred','inactive','blocked')),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS rfqs (
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
		`CREATE TABLE IF NOT EXISTS rfq_line_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rfq_id TEXT NOT NULL,
			description TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK(quantity > 0),
			specifications TEXT DEFAULT '',
			sort_order INTEGER DEFAULT 0,
			FOREIGN KEY (rfq_id) REFERENCES rfqs(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS supplier_rfqs (
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
		`CREATE TABLE IF NOT EXISTS quotes (
			id TEXT PRIMARY KEY,
			supplier_rfq_id INTEGER NOT NULL,
			quote_number TEXT DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			status TEXT DEFAULT 'submitted' CHECK(status IN ('submitted','accepted','rejected')),
			total_amount REAL NOT NULL DEFAULT 0 CHECK(total_amount >= 0),
			shipping_cost REAL NOT NULL DEFAULT 0 CHECK(shipping_cost >= 0),
			lead_time_days INTEGER,
			valid_until TEXT DEFAULT '',
			submitted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			notes TEXT DEFAULT '',
			UNIQUE(supplier_rfq_id, version),
			FOREIGN KEY (supplier_rfq_id) REFERENCES supplier_rfqs(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS quote_line_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			quote_id TEXT NOT NULL,
			rfq_line_item_id INTEGER NOT NULL,
			unit_price REAL NOT NULL CHECK(unit_price >= 0),
			quantity INTEGER NOT NULL CHECK(quantity > 0),
			total_price REAL NOT NULL CHECK(total_price >= 0),
			lead_time_days INTEGER,
			availability TEXT DEFAULT '',
			notes TEXT DEFAULT '',
			FOREIGN KEY (quote_id) REFERENCES quotes(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS client_quotes (
			id TEXT PRIMARY KEY,
			rfq_id TEXT NOT NULL,
			project_id TEXT DEFAULT '',
			quote_ids TEXT NOT NULL DEFAULT '[]',
			total_amount REAL NOT NULL DEFAULT 0,
			created_by TEXT DEFAULT 'system',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (rfq_id) REFERENCES rfqs(id) ON DELETE RESTRICT
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT DEFAULT 'system',
			ip_address TEXT DEFAULT '',
			action TEXT NOT NULL,
			module TEXT NOT NULL,
			record_id TEXT NOT NULL,
			summary TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, t := range tables {
		if _, err := db.Exec(t); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_rfq_line_items_rfq_id ON rfq_line_items(rfq_id)",
		"CREATE INDEX IF NOT EXISTS idx_supplier_rfqs_rfq_id ON supplier_rfqs(rfq_id)",
		"CREATE INDEX IF NOT EXISTS idx_quotes_supplier_rfq_id ON quotes(supplier_rfq_id)",
		"CREATE INDEX IF NOT EXISTS idx_quote_line_items_quote_id ON quote_line_items(quote_id)",
		"CREATE INDEX IF NOT EXISTS idx_client_quotes_rfq_id ON client_quotes(rfq_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_log_module_record ON audit_log(module, record_id)",
		// At most one accepted quote per supplier invitation.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_quotes_accepted_once ON quotes(supplier_rfq_id) WHERE status='accepted'",
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("index migration: %w", err)
		}
	}
	return nil
}

// nextID generates human-readable sequential IDs like RFQ-2026-0042.
func nextID(prefix string, table string, digits int) string {
	year := time.Now().Format("2006")
	pattern := prefix + "-" + year + "-%"
	var maxID sql.NullString
	db.QueryRow("SELECT id FROM "+table+" WHERE id LIKE ? ORDER BY id DESC LIMIT 1", pattern).Scan(&maxID)

	next := 1
	if maxID.Valid {
		parts := strings.Split(maxID.String, "-")
		if len(parts) >= 3 {
			if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
				next = n + 1
			}
		}
	}
	return fmt.Sprintf("%s-%s-%0*d", prefix, year, digits, next)
}
