package rfq

import "studioops/internal/models"

// LineItemMatch pairs a quote with the line it bids on a given RFQ line
// item.
type LineItemMatch struct {
	Quote models.Quote
	Line  models.QuoteLineItem
}

// MatchLineItem resolves, for one RFQ line item, the quote lines that
// reference it across the given quotes. A quote contributes at most one
// matched line: the first one encountered wins, since duplicate bids on
// the same item are a data-quality defect and must not be merged. Quotes
// with no matching line are absent from the result — absence means
// "no bid", never a zero price. Iteration preserves the caller's quote
// ordering.
func MatchLineItem(rfqLineItemID int, quotes []models.Quote) []LineItemMatch {
	var matches []LineItemMatch
	for _, q := range quotes {
		for _, line := range q.LineItems {
			if line.RFQLineItemID == rfqLineItemID {
				matches = append(matches, LineItemMatch{Quote: q, Line: line})
				break
			}
		}
	}
	return matches
}

// MatchedLine returns the line a specific quote bids on the item, if any.
func MatchedLine(quote models.Quote, rfqLineItemID int) (models.QuoteLineItem, bool) {
	for _, line := range quote.LineItems {
		if line.RFQLineItemID == rfqLineItemID {
			return line, true
		}
	}
	return models.QuoteLineItem{}, false
}
