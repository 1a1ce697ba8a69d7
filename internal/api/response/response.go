// Package response writes API responses.
package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ramonehamilton/deckstats/internal/export"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// SuccessResponse wraps a single result.
type SuccessResponse struct {
	Data any `json:"data"`
}

// ListResponse is a list of rows with the total count before any limit.
type ListResponse struct {
	Data       any `json:"data"`
	TotalCount int `json:"total_count"`
}

// JSON encodes data with the given status. A nil data writes no body.
func JSON(w http.ResponseWriter, status int, data any) {
	if data == nil {
		w.WriteHeader(status)
		return
	}
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, SuccessResponse{Data: data})
}

func List(w http.ResponseWriter, data any, totalCount int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, TotalCount: totalCount})
}

func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, SuccessResponse{Data: data})
}

// Error writes err as an ErrorResponse with the given status.
func Error(w http.ResponseWriter, status int, err error) {
	JSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
		Code:    status,
	})
}

// HTML writes an HTML document.
func HTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// CSV writes rows as a CSV attachment named filename.
func CSV(w http.ResponseWriter, filename string, rows any) {
	var buf bytes.Buffer
	if err := export.Write(&buf, export.FormatCSV, rows); err != nil {
		Error(w, http.StatusInternalServerError, fmt.Errorf("failed to encode csv: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
