package procurement

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"studioops/internal/models"
	"studioops/internal/response"
	"studioops/internal/rfq"
)

// compareCell is one quote's bid for one line item in the comparison
// matrix.
type compareCell struct {
	UnitPrice    float64 `json:"unit_price"`
	Quantity     int     `json:"quantity"`
	TotalPrice   float64 `json:"total_price"`
	LeadTimeDays *int    `json:"lead_time_days"`
	Availability string  `json:"availability"`
	Notes        string  `json:"notes"`
	Band         string  `json:"band"`
	Best         bool    `json:"best"`
}

type comparison struct {
	RFQ        models.RFQ                     `json:"rfq"`
	LineItems  []models.RFQLineItem           `json:"line_items"`
	Suppliers  []models.SupplierRFQ           `json:"suppliers"`
	Quotes     []models.Quote                 `json:"quotes"`
	Matrix     map[int]map[string]compareCell `json:"matrix"`
	BestPrices map[int]rfq.BestPrice          `json:"best_prices"`
	Summary    *rfq.Summary                   `json:"summary"`
}

// buildComparison assembles the comparison view: the latest valid quote
// per supplier fanned out over the RFQ's line items, with price bands
// relative to the per-item best bid, plus the aggregate summary.
func (h *Handler) buildComparison(id string) (*comparison, error) {
	rec, err := h.loadRFQ(id)
	if err != nil {
		return nil, err
	}
	c := &comparison{RFQ: rec, Matrix: map[int]map[string]compareCell{}, BestPrices: map[int]rfq.BestPrice{}}
	if c.LineItems, err = h.loadLineItems(id); err != nil {
		return nil, err
	}
	if c.Suppliers, err = h.loadSupplierRFQs(id); err != nil {
		return nil, err
	}
	if c.Quotes, err = h.loadComparisonQuotes(id); err != nil {
		return nil, err
	}

	for _, li := range c.LineItems {
		if best := rfq.BestPriceForItem(li.ID, c.Quotes); best != nil {
			c.BestPrices[li.ID] = *best
		}
		row := map[string]compareCell{}
		for _, m := range rfq.MatchLineItem(li.ID, c.Quotes) {
			band, _ := rfq.Classify(m.Quote.ID, li.ID, c.Quotes)
			row[m.Quote.ID] = compareCell{
				UnitPrice:    m.Line.UnitPrice,
				Quantity:     m.Line.Quantity,
				TotalPrice:   m.Line.TotalPrice,
				LeadTimeDays: m.Line.LeadTimeDays,
				Availability: m.Line.Availability,
				Notes:        m.Line.Notes,
				Band:         string(band),
				Best:         band == rfq.BandBest,
			}
		}
		if len(row) > 0 {
			c.Matrix[li.ID] = row
		}
	}
	c.Summary = rfq.Aggregate(c.Quotes)
	return c, nil
}

// CompareRFQ returns the quote comparison matrix for an RFQ.
func (h *Handler) CompareRFQ(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.buildComparison(id)
	if err != nil {
		response.DomainErr(w, err)
		return
	}
	response.JSON(w, c)
}

// ExportCompare exports the comparison matrix as CSV or xlsx, one row
// per line item and bidding quote.
func (h *Handler) ExportCompare(w http.ResponseWriter, r *http.Request, id string) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	c, err := h.buildComparison(id)
	if err != nil {
		response.DomainErr(w, err)
		return
	}

	// Supplier display name per quote.
	names := make(map[int]string, len(c.Suppliers))
	for _, s := range c.Suppliers {
		name := s.SupplierName
		if name == "" {
			name = s.VendorName
		}
		names[s.ID] = name
	}

	headers := []string{"Line Item", "Qty Requested", "Supplier", "Quote", "Version", "Unit Price", "Quantity", "Total Price", "Lead Time Days", "Availability", "Band"}
	var data [][]string
	for _, li := range c.LineItems {
		for _, q := range c.Quotes {
			line, ok := rfq.MatchedLine(q, li.ID)
			if !ok {
				continue
			}
			band, _ := rfq.Classify(q.ID, li.ID, c.Quotes)
			lead := ""
			if line.LeadTimeDays != nil {
				lead = strconv.Itoa(*line.LeadTimeDays)
			}
			data = append(data, []string{
				li.Description, strconv.Itoa(li.Quantity), names[q.SupplierRFQID],
				q.ID, strconv.Itoa(q.Version),
				fmt.Sprintf("%.2f", line.UnitPrice), strconv.Itoa(line.Quantity), fmt.Sprintf("%.2f", line.TotalPrice),
				lead, line.Availability, string(band),
			})
			if h.ExportRowCap > 0 && len(data) >= h.ExportRowCap {
				break
			}
		}
		if h.ExportRowCap > 0 && len(data) >= h.ExportRowCap {
			break
		}
	}

	h.LogAudit(r, "export", "rfq", id, fmt.Sprintf("Exported comparison (%s, %d rows)", format, len(data)))

	if format == "xlsx" {
		exportExcel(w, "Comparison", headers, data)
	} else {
		exportCSV(w, id+"-comparison.csv", headers, data)
	}
}

// exportCSV writes rows as a CSV attachment.
func exportCSV(w http.ResponseWriter, filename string, headers []string, data [][]string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(headers); err != nil {
		http.Error(w, "Failed to write CSV headers", 500)
		return
	}
	for _, row := range data {
		if err := writer.Write(row); err != nil {
			http.Error(w, "Failed to write CSV row", 500)
			return
		}
	}
}

// exportExcel writes rows as an xlsx attachment with a styled header row.
func exportExcel(w http.ResponseWriter, sheetName string, headers []string, data [][]string) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		http.Error(w, "Failed to create Excel sheet", 500)
		return
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		http.Error(w, "Failed to create header style", 500)
		return
	}

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	for rowIdx, row := range data {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}
	for i := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 18)
	}
	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", strings.ToLower(sheetName)))

	if err := f.Write(w); err != nil {
		http.Error(w, "Failed to write Excel file", 500)
		return
	}
}
