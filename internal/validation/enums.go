package validation

// Common enum values - these MUST match DB CHECK constraints in db.go.
var (
	ValidRFQStatuses = []string{
		"draft", "sent", "partially_quoted", "fully_quoted",
		"quote_accepted", "cancelled", "expired",
	}
	ValidQuoteStatuses    = []string{"submitted", "accepted", "rejected"}
	ValidResponseStatuses = []string{"pending", "submitted", "accepted", "rejected", "declined"}
	ValidSupplierStatuses = []string{"active", "preferred", "inactive", "blocked"}
	ValidProjectStatuses  = []string{"active", "on_hold", "completed", "archived"}
)
