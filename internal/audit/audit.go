package audit

import (
	"database/sql"
	"log"
	"net/http"
	"strings"

	"studioops/internal/websocket"
)

// Log writes an audit row and broadcasts the change to connected
// clients. Audit failures are logged, never propagated: losing an audit
// row must not fail the operation it describes.
func Log(db *sql.DB, hub *websocket.Hub, username, ip, action, module, recordID, summary string) {
	_, err := db.Exec("INSERT INTO audit_log (username, ip_address, action, module, record_id, summary) VALUES (?, ?, ?, ?, ?, ?)",
		username, ip, action, module, recordID, summary)
	if err != nil {
		log.Printf("audit log error: %v", err)
	}
	hub.BroadcastChange(module, action, recordID)
}

// Username resolves the acting user from the X-User header set by the
// studio's authenticating proxy. Requests without one act as "system".
func Username(r *http.Request) string {
	if u := strings.TrimSpace(r.Header.Get("X-User")); u != "" {
		return u
	}
	return "system"
}

// ClientIP extracts the real client IP from the request (handles
// proxies).
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
