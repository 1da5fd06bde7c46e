package receipt

import "time"

// File is an uploaded document awaiting validation and processing
type File struct {
	ID   int64  `json:"id"`
	Name string `json:"file_name"`
	// Path is the public path of the stored bytes, e.g. "uploads/3_receipt.pdf"
	Path          string    `json:"file_path"`
	IsValid       bool      `json:"is_valid"`
	InvalidReason string    `json:"invalid_reason,omitempty"`
	ReceiptID     int64     `json:"receipt_id,omitempty"` // set once processed
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Processed reports whether a receipt has been extracted from the file
func (f *File) Processed() bool {
	return f.ReceiptID != 0
}

// Receipt is the structured data extracted from a processed file
type Receipt struct {
	ID           int64     `json:"id"`
	PurchasedAt  time.Time `json:"purchased_at"`
	MerchantName string    `json:"merchant_name"`
	TotalAmount  float64   `json:"total_amount"`
	FilePath     string    `json:"file_path"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
