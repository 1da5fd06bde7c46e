package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// maxUploadSize bounds the multipart body of an upload
const maxUploadSize = int64(50 << 20) // 50MB

// fileRequest is the body of /validate and /process
type fileRequest struct {
	FileID   int64  `json:"file_id"`
	FileName string `json:"file_name"`
}

type uploadResponse struct {
	Message  string `json:"message"`
	FileID   int64  `json:"file_id"`
	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
}

type validateResponse struct {
	FileID        int64  `json:"file_id"`
	FileName      string `json:"file_name"`
	IsValid       bool   `json:"is_valid"`
	InvalidReason string `json:"invalid_reason,omitempty"`
}

type processResponse struct {
	Message      string    `json:"message"`
	ID           int64     `json:"id"`
	MerchantName string    `json:"merchant_name"`
	PurchasedAt  time.Time `json:"purchased_at"`
	TotalAmount  float64   `json:"total_amount"`
}

type listResponse struct {
	Receipts []*Receipt `json:"receipts"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes {"error": message}
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

func decodeFileRequest(r *http.Request) (fileRequest, bool) {
	var body fileRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slog.Error("Error decoding request body", "error", err)
		return body, false
	}
	return body, body.FileID > 0 && body.FileName != ""
}

// handleRoot answers a liveness probe
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Receipt service is running"})
}

// handleUpload stores a PDF sent as the multipart field "file"
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large. Maximum size is 50MB.")
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	file, err := s.service.Upload(header.Filename, data)
	if errors.Is(err, ErrNotPDF) {
		writeError(w, http.StatusBadRequest, "Only PDF files are allowed")
		return
	}
	if err != nil {
		slog.Error("Error uploading file", "filename", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save file")
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:  "File uploaded successfully",
		FileID:   file.ID,
		FileName: file.Name,
		FilePath: file.Path,
	})
}

// handleValidate checks that an uploaded file is a PDF
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeFileRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	file, err := s.service.Validate(body.FileID, body.FileName)
	switch {
	case errors.Is(err, ErrFileNotFound):
		writeError(w, http.StatusNotFound, "File with given ID and name does not exist")
		return
	case errors.Is(err, ErrOutdatedFile):
		writeError(w, http.StatusConflict, "Outdated file_id. Please validate the latest uploaded version of this file.")
		return
	case errors.Is(err, ErrMissingOnDisk):
		writeJSON(w, http.StatusNotFound, validateResponse{
			FileID:        file.ID,
			FileName:      file.Name,
			IsValid:       false,
			InvalidReason: file.InvalidReason,
		})
		return
	case err != nil:
		slog.Error("Error validating file", "file_id", body.FileID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to validate file")
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{
		FileID:        file.ID,
		FileName:      file.Name,
		IsValid:       file.IsValid,
		InvalidReason: file.InvalidReason,
	})
}

// handleProcess extracts the receipt from a validated file
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeFileRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipt, already, err := s.service.Process(body.FileID, body.FileName)
	switch {
	case errors.Is(err, ErrFileNotFound):
		writeError(w, http.StatusNotFound, "File not found in database")
		return
	case errors.Is(err, ErrMissingOnDisk):
		writeError(w, http.StatusNotFound, "File does not exist on disk")
		return
	case errors.Is(err, ErrNotValidated):
		writeError(w, http.StatusBadRequest, "File is not valid. Please validate it before processing.")
		return
	case err != nil:
		slog.Error("Error processing file", "file_id", body.FileID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process receipt")
		return
	}

	message := "Receipt processed successfully"
	if already {
		message = "Receipt was already processed"
	}
	writeJSON(w, http.StatusOK, processResponse{
		Message:      message,
		ID:           receipt.ID,
		MerchantName: receipt.MerchantName,
		PurchasedAt:  receipt.PurchasedAt,
		TotalAmount:  receipt.TotalAmount,
	})
}

// handleListReceipts returns all processed receipts
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch receipts")
		return
	}

	writeJSON(w, http.StatusOK, listResponse{Receipts: receipts})
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "Receipt not found")
		return
	}

	receipt, err := s.service.GetReceipt(id)
	if errors.Is(err, ErrReceiptNotFound) {
		writeError(w, http.StatusNotFound, "Receipt not found")
		return
	}
	if err != nil {
		slog.Error("Error getting receipt", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch receipt")
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// handleGetUpload serves the bytes behind a receipt's file_path
func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.GetUpload(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Type", pdfContentType)
	w.Write(data)
}
