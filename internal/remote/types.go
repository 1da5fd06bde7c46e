package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ID is an identifier exactly as the service encoded it (JSON number or
// string). It is sent back verbatim so identifiers round-trip unmodified.
type ID struct {
	raw []byte
}

// ParseID builds an ID from user input. Integers become JSON numbers, anything
// else a JSON string.
func ParseID(s string) ID {
	s = strings.TrimSpace(s)
	if s == "" {
		return ID{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ID{raw: []byte(strconv.FormatInt(n, 10))}
	}
	raw, _ := json.Marshal(s)
	return ID{raw: raw}
}

// IsZero reports whether the ID was absent or null
func (id ID) IsZero() bool {
	return len(id.raw) == 0 || string(id.raw) == "null"
}

// String returns the identifier without JSON quoting
func (id ID) String() string {
	if id.IsZero() {
		return ""
	}
	var s string
	if err := json.Unmarshal(id.raw, &s); err == nil {
		return s
	}
	return string(id.raw)
}

// Equal reports whether both IDs carry the same encoding
func (id ID) Equal(other ID) bool {
	return bytes.Equal(id.raw, other.raw)
}

// MarshalJSON implements json.Marshaler
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return id.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler. Only numbers, strings and null
// are accepted.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		id.raw = nil
		return nil
	}
	var probe any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&probe); err != nil {
		return fmt.Errorf("decoding id: %w", err)
	}
	switch probe.(type) {
	case string, json.Number:
	default:
		return fmt.Errorf("id must be a number or string, got %s", data)
	}
	id.raw = append([]byte(nil), data...)
	return nil
}

// Document is a file chosen for upload
type Document struct {
	Name string
	Data []byte
}

// ReadDocument loads a document from disk
func ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading document: %w", err)
	}
	return Document{Name: filepath.Base(path), Data: data}, nil
}

// IsEmpty reports whether the document has no name or no content
func (d Document) IsEmpty() bool {
	return strings.TrimSpace(d.Name) == "" || len(d.Data) == 0
}

// ContentType returns the MIME type sent with the multipart part
func (d Document) ContentType() string {
	if strings.EqualFold(filepath.Ext(d.Name), ".pdf") {
		return "application/pdf"
	}
	return "application/octet-stream"
}

// UploadResult holds the identifiers the service assigned to an upload
type UploadResult struct {
	FileID   ID     `json:"file_id"`
	FileName string `json:"file_name"`
	FilePath string `json:"file_path,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Validation is the verdict of a validate call
type Validation struct {
	IsValid       bool
	InvalidReason string
}

// Record is the structured data returned by a process call
type Record struct {
	Message      string
	ID           ID
	MerchantName string
	PurchasedAt  time.Time
	TotalAmount  float64
}

// Receipt is a stored receipt as returned by the read endpoints
type Receipt struct {
	ID           ID
	MerchantName string
	PurchasedAt  time.Time
	TotalAmount  float64
	FilePath     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type fileRef struct {
	FileID   ID     `json:"file_id"`
	FileName string `json:"file_name"`
}

type validateResponse struct {
	IsValid       *bool  `json:"is_valid"`
	InvalidReason string `json:"invalid_reason"`
}

type processResponse struct {
	Message string `json:"message"`
	// older services spell the key "messagge"
	Messagge     string   `json:"messagge"`
	ID           ID       `json:"id"`
	MerchantName string   `json:"merchant_name"`
	PurchasedAt  string   `json:"purchased_at"`
	TotalAmount  *float64 `json:"total_amount"`
}

func (p processResponse) record() (Record, error) {
	if p.TotalAmount == nil {
		return Record{}, fmt.Errorf("missing total_amount")
	}
	purchasedAt, err := parseTimestamp("purchased_at", p.PurchasedAt, true)
	if err != nil {
		return Record{}, err
	}
	message := p.Message
	if message == "" {
		message = p.Messagge
	}
	return Record{
		Message:      message,
		ID:           p.ID,
		MerchantName: p.MerchantName,
		PurchasedAt:  purchasedAt,
		TotalAmount:  *p.TotalAmount,
	}, nil
}

type receiptResponse struct {
	ID           ID      `json:"id"`
	MerchantName string  `json:"merchant_name"`
	PurchasedAt  string  `json:"purchased_at"`
	TotalAmount  float64 `json:"total_amount"`
	FilePath     string  `json:"file_path"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type listResponse struct {
	Receipts []receiptResponse `json:"receipts"`
}

func (r receiptResponse) receipt() (Receipt, error) {
	if r.ID.IsZero() {
		return Receipt{}, fmt.Errorf("missing id")
	}
	purchasedAt, err := parseTimestamp("purchased_at", r.PurchasedAt, false)
	if err != nil {
		return Receipt{}, err
	}
	createdAt, err := parseTimestamp("created_at", r.CreatedAt, false)
	if err != nil {
		return Receipt{}, err
	}
	updatedAt, err := parseTimestamp("updated_at", r.UpdatedAt, false)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{
		ID:           r.ID,
		MerchantName: r.MerchantName,
		PurchasedAt:  purchasedAt,
		TotalAmount:  r.TotalAmount,
		FilePath:     r.FilePath,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

// parseTimestamp parses an RFC 3339 field. Fractional seconds are accepted.
func parseTimestamp(field, value string, required bool) (time.Time, error) {
	if value == "" {
		if required {
			return time.Time{}, fmt.Errorf("missing %s", field)
		}
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", field, err)
	}
	return t, nil
}
