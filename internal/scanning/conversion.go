package scanning

import (
	"bytes"
	"fmt"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// receiptScanPrompt is the prompt sent along with the rendered receipt
const receiptScanPrompt = `You are analyzing a receipt or invoice document. Carefully read all text in the image and extract the following information:

1. **Merchant Name**: The store or business name, usually the largest text at the top of the receipt.

2. **Purchase Time**: The transaction date and, if printed, the time. Convert it to RFC 3339 format (YYYY-MM-DDTHH:MM:SSZ). If no time is printed use 00:00:00.

3. **Total Amount**: The final total, grand total or amount due, usually at the bottom and labeled "TOTAL" or "Amount Due". Extract only the numeric value (e.g., 42.75 for ₹42.75).

Return ONLY valid JSON in this exact format:
{
  "merchant_name": "Store Name",
  "purchased_at": "YYYY-MM-DDTHH:MM:SSZ",
  "total_amount": 0.00
}

Important:
- The amount must be a number (not a string)
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// pdfToImage renders the first page of a PDF as PNG
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	// Most receipts are a single page
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// prepareImageData turns a document into PNG bytes a vision model accepts.
// PDFs are rendered; PNGs pass through unchanged.
func prepareImageData(data []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	switch mimeType {
	case "application/pdf":
		pngData, err := pdfToImage(data)
		if err != nil {
			return nil, fmt.Errorf("converting PDF to image: %w", err)
		}
		return pngData, nil
	case "image/png":
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}
}
