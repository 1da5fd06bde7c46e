// Package remote is a thin client for the receipt-processing service. Every
// method issues exactly one HTTP request; nothing is retried or cached.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// ProgressFunc wraps an upload body, e.g. to drive a progress bar
type ProgressFunc func(body io.Reader, size int64) io.Reader

// Client talks to the receipt service
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	progress ProgressFunc
}

// NewClient creates a Client using http.DefaultClient
func NewClient(baseURL string) (*Client, error) {
	return NewClientWithHTTP(baseURL, http.DefaultClient)
}

// NewClientWithHTTP creates a Client with a custom HTTP client
func NewClientWithHTTP(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: u,
		http:    httpClient,
	}, nil
}

// SetProgress installs a wrapper for upload bodies
func (c *Client) SetProgress(fn ProgressFunc) {
	c.progress = fn
}

// BaseURL returns the service origin the client was created with
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Upload sends the document as a multipart form
func (c *Client) Upload(ctx context.Context, doc Document) (UploadResult, error) {
	const op = "upload"
	if doc.IsEmpty() {
		return UploadResult{}, &Error{Op: op, Err: ErrEmptyDocument}
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(doc.Name)))
	header.Set("Content-Type", doc.ContentType())
	part, err := writer.CreatePart(header)
	if err != nil {
		return UploadResult{}, transportError(op, fmt.Errorf("creating form file: %w", err))
	}
	if _, err := part.Write(doc.Data); err != nil {
		return UploadResult{}, transportError(op, fmt.Errorf("writing form file: %w", err))
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, transportError(op, fmt.Errorf("closing form: %w", err))
	}

	size := int64(body.Len())
	var reader io.Reader = body
	if c.progress != nil {
		reader = c.progress(reader, size)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("upload"), reader)
	if err != nil {
		return UploadResult{}, transportError(op, fmt.Errorf("creating request: %w", err))
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result UploadResult
	status, err := c.do(op, req, &result)
	if err != nil {
		return UploadResult{}, err
	}
	if result.FileID.IsZero() || result.FileName == "" {
		return UploadResult{}, malformedError(op, status, errors.New("missing file_id or file_name"))
	}
	return result, nil
}

// Validate asks the service to check a previously uploaded file
func (c *Client) Validate(ctx context.Context, fileID ID, fileName string) (Validation, error) {
	const op = "validate"
	req, err := c.jsonRequest(ctx, "validate", fileRef{FileID: fileID, FileName: fileName})
	if err != nil {
		return Validation{}, transportError(op, err)
	}

	var resp validateResponse
	status, err := c.do(op, req, &resp)
	if err != nil {
		return Validation{}, err
	}
	if resp.IsValid == nil {
		return Validation{}, malformedError(op, status, errors.New("missing is_valid"))
	}

	v := Validation{IsValid: *resp.IsValid}
	if !v.IsValid {
		v.InvalidReason = resp.InvalidReason
		if v.InvalidReason == "" {
			v.InvalidReason = "Unknown"
		}
	}
	return v, nil
}

// Process asks the service to extract a receipt from a validated file
func (c *Client) Process(ctx context.Context, fileID ID, fileName string) (Record, error) {
	const op = "process"
	req, err := c.jsonRequest(ctx, "process", fileRef{FileID: fileID, FileName: fileName})
	if err != nil {
		return Record{}, transportError(op, err)
	}

	var resp processResponse
	status, err := c.do(op, req, &resp)
	if err != nil {
		return Record{}, err
	}
	record, err := resp.record()
	if err != nil {
		return Record{}, malformedError(op, status, err)
	}
	return record, nil
}

// ListReceipts returns every stored receipt
func (c *Client) ListReceipts(ctx context.Context) ([]Receipt, error) {
	const op = "list receipts"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("receipts"), nil)
	if err != nil {
		return nil, transportError(op, fmt.Errorf("creating request: %w", err))
	}

	var resp listResponse
	status, err := c.do(op, req, &resp)
	if err != nil {
		return nil, err
	}

	receipts := make([]Receipt, 0, len(resp.Receipts))
	for i, r := range resp.Receipts {
		receipt, err := r.receipt()
		if err != nil {
			return nil, malformedError(op, status, fmt.Errorf("receipt %d: %w", i, err))
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

// GetReceipt returns a single receipt
func (c *Client) GetReceipt(ctx context.Context, id string) (Receipt, error) {
	const op = "get receipt"
	if strings.TrimSpace(id) == "" {
		return Receipt{}, &Error{Op: op, Err: errors.New("receipt id required")}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("receipts", url.PathEscape(id)), nil)
	if err != nil {
		return Receipt{}, transportError(op, fmt.Errorf("creating request: %w", err))
	}

	var resp receiptResponse
	status, err := c.do(op, req, &resp)
	if err != nil {
		return Receipt{}, err
	}
	receipt, err := resp.receipt()
	if err != nil {
		return Receipt{}, malformedError(op, status, err)
	}
	return receipt, nil
}

// FileURL resolves a file path returned by the service against its origin
func (c *Client) FileURL(filePath string) (string, error) {
	ref, err := url.Parse(filePath)
	if err != nil {
		return "", fmt.Errorf("parsing file path: %w", err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	origin := &url.URL{Scheme: c.baseURL.Scheme, Host: c.baseURL.Host, Path: "/"}
	return origin.ResolveReference(ref).String(), nil
}

func (c *Client) endpoint(elem ...string) string {
	return c.baseURL.JoinPath(elem...).String()
}

func (c *Client) jsonRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends the request and decodes a 2xx JSON body into out. It returns the
// response status alongside any error.
func (c *Client) do(op string, req *http.Request, out any) (int, error) {
	req.Header.Set("Accept", "application/json")
	slog.Debug("Calling receipt service", "op", op, "method", req.Method, "url", req.URL.String())

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, transportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, transportError(op, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Debug("Receipt service returned an error", "op", op, "status", resp.StatusCode)
		return resp.StatusCode, &Error{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
			Err:        ErrStatus,
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, malformedError(op, resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
