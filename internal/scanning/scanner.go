package scanning

import "time"

// ReceiptData contains the fields extracted from a receipt
type ReceiptData struct {
	MerchantName string    `json:"merchant_name"`
	PurchasedAt  time.Time `json:"purchased_at"`
	TotalAmount  float64   `json:"total_amount"`
}

// Scanner defines the interface for receipt extraction
type Scanner interface {
	// ScanReceipt analyzes a receipt document and extracts its fields
	ScanReceipt(data []byte, contentType string) (*ReceiptData, error)
	// Close closes the scanner and releases resources
	Close() error
}

// Static returns the same extraction for every document. It stands in for
// a real extractor when no model is configured.
type Static struct {
	Data ReceiptData
}

// DefaultStatic is the fixed extraction the service has always answered with
var DefaultStatic = ReceiptData{
	MerchantName: "Dummy Store",
	PurchasedAt:  time.Date(2025, 6, 27, 15, 4, 5, 0, time.UTC),
	TotalAmount:  100.00,
}

// NewStatic creates a Static scanner returning DefaultStatic
func NewStatic() *Static {
	return &Static{Data: DefaultStatic}
}

// ScanReceipt returns the configured data
func (s *Static) ScanReceipt(data []byte, contentType string) (*ReceiptData, error) {
	out := s.Data
	return &out, nil
}

// Close is a no-op
func (s *Static) Close() error {
	return nil
}
