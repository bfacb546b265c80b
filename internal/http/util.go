package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"wisefido-readmission/internal/domain"
)

const maxBodyBytes = 1 << 20

// writeJSON encodes v before writing the status; an unencodable v becomes a 500
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		if rec, ok := w.(*statusRecorder); ok {
			rec.err = fmt.Errorf("failed to encode response: %w", err)
		}
		status = http.StatusInternalServerError
		data, _ = json.Marshal(ErrorResponse{Detail: http.StatusText(status)})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

// errMalformedBody request body is not the expected JSON document
var errMalformedBody = errors.New("malformed request body")

func readBodyJSON(r *http.Request, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", errMalformedBody)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

// ErrorResponse body of every non-2xx response
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// statusForError maps domain errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPatientNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPatientAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidMeasurement),
		errors.Is(err, domain.ErrInvalidPatient),
		errors.Is(err, domain.ErrInvalidAdmission):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCacheUnavailable),
		errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	detail := err.Error()
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		detail = http.StatusText(status)
	}
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

// pageParams reads offset and limit query parameters (defaults 0 and 100)
func pageParams(r *http.Request) (int, int) {
	q := r.URL.Query()
	return parseInt(q.Get("offset"), 0), parseInt(q.Get("limit"), 100)
}
