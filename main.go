package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"

	"studioops/internal/config"
	"studioops/internal/handlers/procurement"
	"studioops/internal/response"
	"studioops/internal/websocket"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("config load failed:", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	if err := initDB(cfg.DBPath); err != nil {
		log.Fatal("DB init failed:", err)
	}

	hub := websocket.NewHub()

	proc := &procurement.Handler{
		DB:           db,
		Hub:          hub,
		NextIDFunc:   nextID,
		StudioName:   cfg.StudioName,
		StudioEmail:  cfg.StudioEmail,
		ExportRowCap: cfg.ExportRowCap,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.Serve(hub, w, r)
	})

	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
		path = strings.TrimSuffix(path, "/")
		parts := strings.Split(path, "/")

		switch {
		// RFQs
		case path == "rfqs/dashboard" && r.Method == "GET":
			proc.RFQDashboard(w, r)
		case parts[0] == "rfqs" && len(parts) == 1 && r.Method == "GET":
			proc.ListRFQs(w, r)
		case parts[0] == "rfqs" && len(parts) == 1 && r.Method == "POST":
			proc.CreateRFQ(w, r)
		case parts[0] == "rfqs" && len(parts) == 2 && r.Method == "GET":
			proc.GetRFQ(w, r, parts[1])
		case parts[0] == "rfqs" && len(parts) == 2 && r.Method == "PUT":
			proc.UpdateRFQ(w, r, parts[1])
		case parts[0] == "rfqs" && len(parts) == 2 && r.Method == "DELETE":
			proc.DeleteRFQ(w, r, parts[1])
		case parts[0] == "rfqs" && len(parts) == 3 && parts[2] == "send" && r.Method == "POST":
			proc.SendRFQ(w, r, parts[1])
		case parts[0] == "rfqs" && len(parts) == 3 && parts[2] == "cancel" && r.Method == "POST":
			proc.CancelRFQ(w, r, parts[1])
		case parts[0] == "rfqs" && len(parts) == 3 && parts[2] == "compare" && r.Method == "GET":
			proc.CompareRFQ(w, r, parts[1])
		case parts[0] == "rfqs" && len(parts) == 4 && parts[2] == "compare" && parts[3] == "export" && r.Method == "GET":
			proc.ExportCompare(w, r, parts[1])
		case parts[0] == "rfqs" && len(parts) == 3 && parts[2] == "email" && r.Method == "GET":
			proc.RFQEmailBody(w, r, parts[1])
		case parts[0] == "rfqs" && len(parts) == 3 && parts[2] == "quotes" && r.Method == "POST":
			proc.SubmitQuote(w, r, parts[1])
		case parts[0] == "rfqs" && len(parts) == 3 && parts[2] == "quotes" && r.Method == "GET":
			proc.ListQuotes(w, r, parts[1])
		case parts[0] == "rfqs" && len(parts) == 3 && parts[2] == "client-quote" && r.Method == "POST":
			proc.CreateClientQuote(w, r, parts[1])

		// Quotes
		case parts[0] == "quotes" && len(parts) == 3 && parts[2] == "accept" && r.Method == "POST":
			proc.AcceptQuote(w, r, parts[1])
		case parts[0] == "quotes" && len(parts) == 3 && parts[2] == "reject" && r.Method == "POST":
			proc.RejectQuote(w, r, parts[1])

		// Supplier invitations
		case parts[0] == "supplier-rfqs" && len(parts) == 3 && parts[2] == "decline" && r.Method == "POST":
			proc.DeclineSupplierRFQ(w, r, parts[1])
		case parts[0] == "supplier-rfqs" && len(parts) == 3 && parts[2] == "viewed" && r.Method == "POST":
			proc.MarkViewed(w, r, parts[1])

		// Suppliers
		case parts[0] == "suppliers" && len(parts) == 1 && r.Method == "GET":
			proc.ListSuppliers(w, r)
		case parts[0] == "suppliers" && len(parts) == 1 && r.Method == "POST":
			proc.CreateSupplier(w, r)
		case parts[0] == "suppliers" && len(parts) == 2 && r.Method == "GET":
			proc.GetSupplier(w, r, parts[1])
		case parts[0] == "suppliers" && len(parts) == 2 && r.Method == "PUT":
			proc.UpdateSupplier(w, r, parts[1])

		// Projects
		case parts[0] == "projects" && len(parts) == 1 && r.Method == "GET":
			proc.ListProjects(w, r)
		case parts[0] == "projects" && len(parts) == 1 && r.Method == "POST":
			proc.CreateProject(w, r)

		// Client quotes
		case parts[0] == "client-quotes" && len(parts) == 1 && r.Method == "GET":
			proc.ListClientQuotes(w, r)
		case parts[0] == "client-quotes" && len(parts) == 2 && r.Method == "GET":
			proc.GetClientQuote(w, r, parts[1])

		// Audit
		case parts[0] == "audit" && len(parts) == 1 && r.Method == "GET":
			proc.ListAudit(w, r)

		default:
			response.Err(w, "not found", 404)
		}
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("studioops listening on %s (db %s)", addr, cfg.DBPath)
	log.Fatal(http.ListenAndServe(addr, mux))
}
