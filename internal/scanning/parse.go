package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timestampFormats are tried in order when the model does not answer RFC 3339
var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
}

const unknownMerchant = "Unknown Merchant"

type rawReceipt struct {
	MerchantName string   `json:"merchant_name"`
	PurchasedAt  string   `json:"purchased_at"`
	TotalAmount  *float64 `json:"total_amount"`
}

// parseReceiptJSON parses the JSON answer of a model. A missing or
// unreadable timestamp falls back to now.
func parseReceiptJSON(text string, now time.Time) (*ReceiptData, error) {
	// Remove markdown code blocks if present
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var raw rawReceipt
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	if raw.TotalAmount == nil {
		return nil, fmt.Errorf("no total amount in response")
	}
	if *raw.TotalAmount < 0 {
		return nil, fmt.Errorf("negative total amount %.2f", *raw.TotalAmount)
	}

	data := &ReceiptData{
		MerchantName: strings.TrimSpace(raw.MerchantName),
		PurchasedAt:  parseTimestamp(raw.PurchasedAt, now),
		TotalAmount:  *raw.TotalAmount,
	}
	if data.MerchantName == "" {
		data.MerchantName = unknownMerchant
	}

	return data, nil
}

func parseTimestamp(value string, now time.Time) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return now.UTC()
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t.UTC()
		}
	}
	return now.UTC()
}
