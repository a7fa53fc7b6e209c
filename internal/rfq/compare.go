package rfq

import "studioops/internal/models"

// Band classifies a quote's price on one line item relative to the best
// bid. The 10% and 20% cutoffs are fixed product behavior, not tunables.
type Band string

const (
	BandBest        Band = "BEST"
	BandCompetitive Band = "COMPETITIVE"
	BandModerate    Band = "MODERATE"
	BandHigh        Band = "HIGH"
)

// BestPrice identifies the lowest bid on one RFQ line item.
type BestPrice struct {
	QuoteID string  `json:"quote_id"`
	Price   float64 `json:"price"`
}

// BestPriceForItem computes the minimum line total among all quotes
// bidding on the item, or nil when nobody bid. On a tie the quote
// appearing first in the given ordering wins, so callers must pass a
// stable ordering (submission time) for reproducible results.
func BestPriceForItem(rfqLineItemID int, quotes []models.Quote) *BestPrice {
	var best *BestPrice
	for _, m := range MatchLineItem(rfqLineItemID, quotes) {
		if best == nil || m.Line.TotalPrice < best.Price {
			best = &BestPrice{QuoteID: m.Quote.ID, Price: m.Line.TotalPrice}
		}
	}
	return best
}

// Classify bands one quote's bid on one line item. The second return is
// false when the quote did not bid on the item. Which quote holds BEST
// can depend on iteration order under ties, but the band of any fixed
// quote is a pure function of its price and the best price.
func Classify(quoteID string, rfqLineItemID int, quotes []models.Quote) (Band, bool) {
	best := BestPriceForItem(rfqLineItemID, quotes)
	if best == nil {
		return "", false
	}
	var price float64
	found := false
	for _, q := range quotes {
		if q.ID != quoteID {
			continue
		}
		if line, ok := MatchedLine(q, rfqLineItemID); ok {
			price = line.TotalPrice
			found = true
		}
		break
	}
	if !found {
		return "", false
	}
	if best.QuoteID == quoteID {
		return BandBest, true
	}
	return ClassifyPrice(price, best.Price), true
}

// ClassifyPrice bands a price against the best price on the same item:
// more than 20% above is HIGH, more than 10% is MODERATE, anything up to
// and including 10% is COMPETITIVE. Boundaries are strictly greater-than.
func ClassifyPrice(price, best float64) Band {
	diffPct := (price - best) / best * 100
	switch {
	case diffPct > 20:
		return BandHigh
	case diffPct > 10:
		return BandModerate
	default:
		return BandCompetitive
	}
}
