package rfq

import (
	"fmt"
	"math"

	"studioops/internal/models"
)

// Summary holds RFQ-wide metrics across all valid quotes.
type Summary struct {
	QuoteCount       int     `json:"quote_count"`
	LowestTotal      float64 `json:"lowest_total"`
	HighestTotal     float64 `json:"highest_total"`
	AverageTotal     float64 `json:"average_total"`
	ShortestLeadTime *int    `json:"shortest_lead_time"`
	LongestLeadTime  *int    `json:"longest_lead_time"`
}

// ValidQuotes filters to quotes that participate in comparison and
// aggregation: submitted or accepted. Rejected quotes are excluded.
func ValidQuotes(quotes []models.Quote) []models.Quote {
	var out []models.Quote
	for _, q := range quotes {
		if q.Status == QuoteSubmitted || q.Status == QuoteAccepted {
			out = append(out, q)
		}
	}
	return out
}

// Aggregate computes lowest/highest/average totals and the lead-time
// range over the valid quotes. Quotes without a stated lead time are
// excluded from the lead-time min/max, not treated as zero days. Returns
// nil when there are no valid quotes so callers render an empty state
// instead of a zeroed metrics panel.
func Aggregate(quotes []models.Quote) *Summary {
	valid := ValidQuotes(quotes)
	if len(valid) == 0 {
		return nil
	}
	s := &Summary{QuoteCount: len(valid)}
	var sum float64
	for i, q := range valid {
		if i == 0 || q.TotalAmount < s.LowestTotal {
			s.LowestTotal = q.TotalAmount
		}
		if i == 0 || q.TotalAmount > s.HighestTotal {
			s.HighestTotal = q.TotalAmount
		}
		sum += q.TotalAmount
		if q.LeadTimeDays != nil {
			d := *q.LeadTimeDays
			if s.ShortestLeadTime == nil || d < *s.ShortestLeadTime {
				lt := d
				s.ShortestLeadTime = &lt
			}
			if s.LongestLeadTime == nil || d > *s.LongestLeadTime {
				lt := d
				s.LongestLeadTime = &lt
			}
		}
	}
	s.AverageTotal = sum / float64(len(valid))
	return s
}

// moneyEpsilon absorbs float rounding when checking monetary sums.
const moneyEpsilon = 0.005

// ValidateQuoteTotals checks the arithmetic consistency of a submitted
// quote: each line's total must equal unit price times quantity, and the
// quote total must equal the line totals plus shipping. Inconsistencies
// are reported, never silently recomputed.
func ValidateQuoteTotals(q models.Quote) error {
	var lineSum float64
	for i, line := range q.LineItems {
		if line.Quantity <= 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("line_items[%d].quantity", i),
				Message: "must be a positive integer",
			}
		}
		if line.UnitPrice < 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("line_items[%d].unit_price", i),
				Message: "must be non-negative",
			}
		}
		expected := line.UnitPrice * float64(line.Quantity)
		if math.Abs(expected-line.TotalPrice) > moneyEpsilon {
			return &ValidationError{
				Field:   fmt.Sprintf("line_items[%d].total_price", i),
				Message: fmt.Sprintf("does not equal unit_price × quantity (%.2f)", expected),
			}
		}
		lineSum += line.TotalPrice
	}
	if math.Abs(lineSum+q.ShippingCost-q.TotalAmount) > moneyEpsilon {
		return &ValidationError{
			Field:   "total_amount",
			Message: fmt.Sprintf("does not equal line totals plus shipping (%.2f)", lineSum+q.ShippingCost),
		}
	}
	return nil
}
