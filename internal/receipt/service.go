package receipt

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/zombor/receipt-workflow/internal/scanning"
)

// UploadsPrefix is prepended to stored names to form the public file path
const UploadsPrefix = "uploads"

const (
	pdfExtension   = ".pdf"
	pdfContentType = "application/pdf"
	pdfMagic       = "%PDF-"

	reasonMissingOnDisk = "File not found on disk"
	reasonInvalidPDF    = "Invalid PDF format"
)

// Sentinel errors mapped to HTTP statuses by the server
var (
	ErrNotPDF          = errors.New("only PDF files are allowed")
	ErrFileNotFound    = errors.New("file with given ID and name does not exist")
	ErrOutdatedFile    = errors.New("outdated file_id; validate the latest uploaded version of this file")
	ErrMissingOnDisk   = errors.New("file not found on disk")
	ErrNotValidated    = errors.New("file is not valid; validate it before processing")
	ErrReceiptNotFound = errors.New("receipt not found")
)

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service implements upload, validation and processing of receipt files
type Service struct {
	db         DB
	scanner    scanning.Scanner
	storage    Storage
	timeSource TimeSource
}

// NewService creates a new Service with the default time source
func NewService(db DB, scanner scanning.Scanner, storage Storage) *Service {
	return NewServiceWithDeps(db, scanner, storage, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, timeSrc TimeSource) *Service {
	return &Service{
		db:         db,
		scanner:    scanner,
		storage:    storage,
		timeSource: timeSrc,
	}
}

// storedName turns a public file path back into a storage name
func storedName(filePath string) string {
	return strings.TrimPrefix(filePath, UploadsPrefix+"/")
}

// Upload stores a PDF and records it as a new file. Uploading the same
// name again creates a newer file that supersedes the old one.
func (s *Service) Upload(filename string, data []byte) (*File, error) {
	if !strings.EqualFold(filepath.Ext(filename), pdfExtension) {
		return nil, ErrNotPDF
	}

	id, err := s.db.NextFileID()
	if err != nil {
		return nil, fmt.Errorf("reserving file id: %w", err)
	}
	now := s.timeSource.Now()

	saved, err := s.storage.Save(fmt.Sprintf("%d_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	file := &File{
		ID:        id,
		Name:      filename,
		Path:      path.Join(UploadsPrefix, saved),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.SaveFile(file); err != nil {
		// Clean up the stored bytes if the record cannot be written
		if delErr := s.storage.Delete(saved); delErr != nil {
			slog.Warn("Failed to delete file", "file_path", file.Path, "error", delErr)
		}
		return nil, fmt.Errorf("saving file to database: %w", err)
	}

	slog.Info("File uploaded", "file_id", file.ID, "file_name", file.Name, "file_path", file.Path, "size", len(data))
	return file, nil
}

// lookup returns the file matching both id and name
func (s *Service) lookup(id int64, name string) (*File, error) {
	file, err := s.db.GetFile(id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting file: %w", err)
	}
	if file.Name != name {
		return nil, ErrFileNotFound
	}
	return file, nil
}

// Validate checks that the stored bytes are a PDF and records the verdict.
// A file missing from disk is recorded as invalid and ErrMissingOnDisk is
// returned along with it.
func (s *Service) Validate(id int64, name string) (*File, error) {
	file, err := s.lookup(id, name)
	if err != nil {
		return nil, err
	}

	latest, err := s.db.LatestFileID(name)
	if err != nil {
		return nil, fmt.Errorf("getting latest file id: %w", err)
	}
	if latest != id {
		return nil, ErrOutdatedFile
	}

	data, readErr := s.storage.Get(storedName(file.Path))
	switch {
	case readErr != nil:
		slog.Error("Failed to read uploaded file", "file_id", id, "file_path", file.Path, "error", readErr)
		s.setVerdict(file, false, reasonMissingOnDisk)
	case !bytes.HasPrefix(data, []byte(pdfMagic)):
		s.setVerdict(file, false, reasonInvalidPDF)
	default:
		s.setVerdict(file, true, "")
	}

	if err := s.db.SaveFile(file); err != nil {
		return nil, fmt.Errorf("saving validation status: %w", err)
	}
	if readErr != nil {
		return file, ErrMissingOnDisk
	}
	return file, nil
}

func (s *Service) setVerdict(file *File, valid bool, reason string) {
	file.IsValid = valid
	file.InvalidReason = reason
	file.UpdatedAt = s.timeSource.Now()
}

// Process extracts the receipt from a validated file. A file that was
// already processed returns its stored receipt and true.
func (s *Service) Process(id int64, name string) (*Receipt, bool, error) {
	file, err := s.lookup(id, name)
	if err != nil {
		return nil, false, err
	}

	data, err := s.storage.Get(storedName(file.Path))
	if err != nil {
		slog.Error("Failed to read uploaded file", "file_id", id, "file_path", file.Path, "error", err)
		return nil, false, ErrMissingOnDisk
	}
	if !file.IsValid {
		return nil, false, ErrNotValidated
	}

	if file.Processed() {
		receipt, err := s.db.GetReceipt(file.ReceiptID)
		if err != nil {
			return nil, false, fmt.Errorf("getting processed receipt: %w", err)
		}
		return receipt, true, nil
	}

	extracted, err := s.scanner.ScanReceipt(data, pdfContentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"file_id", id,
			"file_name", name,
			"file_size", len(data),
			"error", err,
		)
		return nil, false, fmt.Errorf("scanning receipt: %w", err)
	}

	now := s.timeSource.Now()
	receipt := &Receipt{
		PurchasedAt:  extracted.PurchasedAt,
		MerchantName: extracted.MerchantName,
		TotalAmount:  extracted.TotalAmount,
		FilePath:     file.Path,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	file.UpdatedAt = now

	if err := s.db.SaveReceipt(receipt, file); err != nil {
		return nil, false, fmt.Errorf("saving receipt to database: %w", err)
	}

	slog.Info("Receipt processed", "file_id", id, "receipt_id", receipt.ID, "merchant_name", receipt.MerchantName)
	return receipt, false, nil
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id int64) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// GetUpload returns the bytes stored under name
func (s *Service) GetUpload(name string) ([]byte, error) {
	data, err := s.storage.Get(name)
	if err != nil {
		return nil, fmt.Errorf("getting uploaded file: %w", err)
	}
	return data, nil
}
